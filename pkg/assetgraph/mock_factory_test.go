package assetgraph

import (
	"testing"
	"time"
)

func TestMockFactoryBuildsScannableScenario(t *testing.T) {
	f := NewMockFactory()

	f.AddFirewallRule("fw-open", "INGRESS", true)
	f.AddComputeInstance("instance-a", true, time.Hour)
	f.AddBucket("bucket-a", true, "instance-a")
	f.AddGKENodePool("pool-default", 3, 2)

	f.Graph.AddEdge("fw-open", "instance-a")
	f.Graph.CloseAndWait()

	if f.Graph.GetNode("fw-open") == nil {
		t.Fatal("expected firewall rule node")
	}
	if f.Graph.GetNode("instance-a").TypeStr() != "gcp-compute-instance" {
		t.Errorf("expected gcp-compute-instance type, got %s", f.Graph.GetNode("instance-a").TypeStr())
	}
	if f.Graph.GetNode("bucket-a") == nil {
		t.Fatal("expected bucket node")
	}
	if f.Graph.GetNode("pool-default").TypeStr() != "gke-node-pool" {
		t.Errorf("expected gke-node-pool type, got %s", f.Graph.GetNode("pool-default").TypeStr())
	}

	AnalyzeReachability(f.Graph)
	if f.Graph.GetNode("instance-a").Reachability != ReachabilityReachable {
		t.Errorf("instance-a should be reachable from the open firewall rule")
	}
}
