package router_test

import (
	"testing"

	"github.com/aegis-scan/aegis/pkg/engine/router"
	"github.com/aegis-scan/aegis/pkg/scan"
)

func assets() []scan.Asset {
	return []scan.Asset{
		{Type: scan.AssetFirewallRule, Name: "allow-ssh", Metadata: scan.FirewallMetadata{SourceRanges: []string{"0.0.0.0/0"}}},
		{Type: scan.AssetFirewallRule, Name: "allow-internal", Metadata: scan.FirewallMetadata{SourceRanges: []string{"10.0.0.0/8"}}},
		{Type: scan.AssetComputeInstance, Name: "web-01", Metadata: scan.ComputeMetadata{NetworkInterfaces: []scan.NetworkInterface{{HasExternalIP: true}}}},
		{Type: scan.AssetComputeInstance, Name: "worker-01", Metadata: scan.ComputeMetadata{NetworkInterfaces: []scan.NetworkInterface{{HasExternalIP: false}}}},
		{Type: scan.AssetObjectBucket, Name: "public-bucket", Metadata: scan.BucketMetadata{PublicAccessPrevention: "inherited"}},
		{Type: scan.AssetObjectBucket, Name: "locked-bucket", Metadata: scan.BucketMetadata{PublicAccessPrevention: "enforced"}},
		{Type: scan.AssetSQLInstance, Name: "public-db", Metadata: scan.SQLMetadata{PublicIP: "1.2.3.4"}},
		{Type: scan.AssetSQLInstance, Name: "private-db", Metadata: scan.SQLMetadata{PrivateIP: "10.0.0.5"}},
		{Type: scan.AssetLogSummary, Name: "cloud-logging-summary", Metadata: scan.LogSummaryMetadata{}},
	}
}

func TestPartitionIsTotalAndDisjoint(t *testing.T) {
	public, private := router.Partition(assets())

	if len(public)+len(private) != len(assets()) {
		t.Fatalf("partition is not total: %d public + %d private != %d total", len(public), len(private), len(assets()))
	}

	seen := make(map[string]bool)
	for _, a := range public {
		seen[a.Name] = true
	}
	for _, a := range private {
		if seen[a.Name] {
			t.Fatalf("asset %q appears in both partitions", a.Name)
		}
	}
}

func TestPartitionPerTypePredicates(t *testing.T) {
	public, private := router.Partition(assets())

	wantPublic := map[string]bool{"allow-ssh": true, "web-01": true, "public-bucket": true, "public-db": true}
	for _, a := range public {
		if !wantPublic[a.Name] {
			t.Errorf("asset %q should not be public", a.Name)
		}
		delete(wantPublic, a.Name)
	}
	if len(wantPublic) != 0 {
		t.Errorf("missing expected public assets: %v", wantPublic)
	}

	wantPrivate := map[string]bool{"allow-internal": true, "worker-01": true, "locked-bucket": true, "private-db": true, "cloud-logging-summary": true}
	for _, a := range private {
		if !wantPrivate[a.Name] {
			t.Errorf("asset %q should not be private", a.Name)
		}
		delete(wantPrivate, a.Name)
	}
	if len(wantPrivate) != 0 {
		t.Errorf("missing expected private assets: %v", wantPrivate)
	}
}
