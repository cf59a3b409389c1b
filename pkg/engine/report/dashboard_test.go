package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aegis-scan/aegis/pkg/scan"
)

func TestBuildAssetGraphAddsNodePerAsset(t *testing.T) {
	assets := []scan.Asset{
		{
			Type: scan.AssetFirewallRule,
			Name: "allow-all-ingress",
			Metadata: scan.FirewallMetadata{
				Direction:    "INGRESS",
				SourceRanges: []string{"0.0.0.0/0"},
			},
		},
		{
			Type: scan.AssetComputeInstance,
			Name: "web-1",
			Metadata: scan.ComputeMetadata{
				NetworkInterfaces: []scan.NetworkInterface{{Network: "default", HasExternalIP: true}},
			},
		},
		{
			Type: scan.AssetComputeInstance,
			Name: "db-1",
			Metadata: scan.ComputeMetadata{
				NetworkInterfaces: []scan.NetworkInterface{{Network: "default", HasExternalIP: false}},
			},
		},
	}

	g := BuildAssetGraph(assets)

	if g.GetNode("firewall-rule/allow-all-ingress") == nil {
		t.Fatal("expected a firewall rule node")
	}
	if g.GetNode("compute-instance/web-1") == nil {
		t.Fatal("expected a compute instance node")
	}
}

func TestGenerateDashboardWritesNonEmptyHTML(t *testing.T) {
	findings := []scan.Finding{
		{RuleCode: "FW-OPEN-INGRESS", Title: "Firewall allows 0.0.0.0/0", Severity: scan.SeverityCritical, Location: "allow-all-ingress", Status: scan.StatusTodo},
		{RuleCode: "BUCKET-PUBLIC", Title: "Bucket is publicly readable", Severity: scan.SeverityHigh, Location: "bucket-a", Status: scan.StatusTodo},
	}

	assets := []scan.Asset{
		{
			Type:     scan.AssetFirewallRule,
			Name:     "allow-all-ingress",
			Metadata: scan.FirewallMetadata{Direction: "INGRESS", SourceRanges: []string{"0.0.0.0/0"}},
		},
	}
	g := BuildAssetGraph(assets)

	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.html")

	if err := GenerateDashboard(findings, g, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read generated dashboard: %v", err)
	}
	html := string(data)

	if !strings.Contains(html, "FW-OPEN-INGRESS") {
		t.Error("expected dashboard to embed finding rule codes")
	}
	if !strings.Contains(html, "AEGIS") {
		t.Error("expected dashboard to carry the product header")
	}
}

func TestGenerateDashboardIncludesImpactTable(t *testing.T) {
	assets := []scan.Asset{
		{
			Type:     scan.AssetFirewallRule,
			Name:     "allow-all-ingress",
			Metadata: scan.FirewallMetadata{Direction: "INGRESS", SourceRanges: []string{"0.0.0.0/0"}},
		},
		{
			Type: scan.AssetComputeInstance,
			Name: "web-1",
			Metadata: scan.ComputeMetadata{
				NetworkInterfaces: []scan.NetworkInterface{{Network: "default", HasExternalIP: true}},
			},
		},
	}
	g := BuildAssetGraph(assets)

	html, err := RenderDashboard(nil, g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "Highest-Impact Assets") {
		t.Error("expected the dashboard to carry the blast-radius impact table")
	}
	if !strings.Contains(html, "<td>") {
		t.Error("expected at least one rendered impact table row")
	}
}

func TestGenerateDashboardHandlesNilGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.html")

	if err := GenerateDashboard(nil, nil, path); err != nil {
		t.Fatalf("unexpected error with nil graph and findings: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatal("expected a non-empty dashboard file even with no findings")
	}
}

func TestShortNameTrimsToTrailingSegment(t *testing.T) {
	if got := shortName("compute-instance/web-1"); got != "web-1" {
		t.Errorf("expected web-1, got %s", got)
	}
	if got := shortName("no-slash-id"); got != "no-slash-id" {
		t.Errorf("expected unchanged id, got %s", got)
	}
}
