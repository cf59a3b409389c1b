package assetgraph

import "testing"

func TestAnalyzeImpactCountsDirectAndCascadingDependents(t *testing.T) {
	g := NewGraph()
	g.AddNode("fw-open", "gcp-firewall-rule", nil)
	g.AddNode("instance-a", "gcp-compute-instance", nil)
	g.AddNode("bucket-a", "gcp-object-bucket", nil)
	g.AddEdge("fw-open", "instance-a")
	g.AddEdge("instance-a", "bucket-a")
	g.CloseAndWait()

	g.MarkExposed("instance-a", 8)
	g.MarkExposed("bucket-a", 4)

	report := g.AnalyzeImpact("fw-open")
	if report == nil {
		t.Fatal("expected a non-nil impact report")
	}
	if len(report.DirectImpact) != 1 || report.DirectImpact[0].IDStr() != "instance-a" {
		t.Errorf("expected instance-a as the sole direct dependent, got %+v", report.DirectImpact)
	}
	if len(report.CascadingImpact) != 1 || report.CascadingImpact[0].IDStr() != "bucket-a" {
		t.Errorf("expected bucket-a as the sole cascading dependent, got %+v", report.CascadingImpact)
	}
	if report.TotalRiskScore != 8 {
		t.Errorf("expected total risk score 8 (direct dependents only), got %d", report.TotalRiskScore)
	}
}

func TestAnalyzeImpactUnknownNodeReturnsNil(t *testing.T) {
	g := NewGraph()
	g.CloseAndWait()

	if g.AnalyzeImpact("does-not-exist") != nil {
		t.Error("expected nil impact report for an unknown node ID")
	}
}

func TestRankImpactOrdersDescendingByRiskScore(t *testing.T) {
	g := NewGraph()
	g.AddNode("fw-low", "gcp-firewall-rule", nil)
	g.AddNode("fw-high", "gcp-firewall-rule", nil)
	g.AddNode("instance-low", "gcp-compute-instance", nil)
	g.AddNode("instance-high", "gcp-compute-instance", nil)
	g.AddEdge("fw-low", "instance-low")
	g.AddEdge("fw-high", "instance-high")
	g.CloseAndWait()

	g.MarkExposed("instance-low", 2)
	g.MarkExposed("instance-high", 9)

	ranked := RankImpact(g, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked reports, got %d", len(ranked))
	}
	if ranked[0].TargetNode.IDStr() != "fw-high" {
		t.Errorf("expected fw-high ranked first (higher risk score), got %s", ranked[0].TargetNode.IDStr())
	}
}
