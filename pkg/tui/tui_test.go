package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aegis-scan/aegis/pkg/engine/events"
	"github.com/aegis-scan/aegis/pkg/scan"
)

func sampleFindings() []scan.Finding {
	return []scan.Finding{
		{
			RuleCode:    "FW-OPEN-22",
			Title:       "Firewall rule allows SSH from 0.0.0.0/0",
			Description: "Ingress rule permits tcp:22 from any source.",
			Severity:    scan.SeverityCritical,
			Location:    "projects/demo/firewalls/allow-ssh",
			Status:      scan.StatusTodo,
			RemediationScript: "gcloud compute firewall-rules update allow-ssh --source-ranges=10.0.0.0/8",
		},
		{
			RuleCode:    "STORAGE-PUBLIC",
			Title:       "Bucket is publicly readable",
			Description: "allUsers has objectViewer on the bucket.",
			Severity:    scan.SeverityHigh,
			Location:    "projects/demo/buckets/demo-assets",
			Status:      scan.StatusTodo,
			Correlated:  true,
			Verdict:     "exposed alongside an over-permissive service account",
			Tactic:      "Exfiltration",
			Technique:   "Data from Cloud Storage Object",
		},
	}
}

func TestModelRendersScanningState(t *testing.T) {
	eventsCh := make(chan events.Event, 1)
	doneCh := make(chan Result, 1)
	model := NewModel("demo-account", eventsCh, doneCh)
	model.width = 100
	model.height = 30

	view := model.View()
	if !strings.Contains(view, "demo-account") {
		t.Errorf("expected HUD to show account id, got:\n%s", view)
	}
	if !strings.Contains(view, "Scanning account demo-account") {
		t.Errorf("expected list view to show scanning placeholder, got:\n%s", view)
	}
}

func TestModelAppliesEventUpdates(t *testing.T) {
	eventsCh := make(chan events.Event, 1)
	doneCh := make(chan Result, 1)
	model := NewModel("demo-account", eventsCh, doneCh)
	model.width = 100
	model.height = 30

	updated, _ := model.Update(eventMsg(events.Event{Kind: events.KindScanning, Message: "enumerating firewall rules"}))
	m := updated.(Model)

	if m.stage != string(events.KindScanning) {
		t.Errorf("expected stage to be updated to %q, got %q", events.KindScanning, m.stage)
	}
	if m.message != "enumerating firewall rules" {
		t.Errorf("expected message to be updated, got %q", m.message)
	}
}

func TestModelRendersFindingsAfterDone(t *testing.T) {
	eventsCh := make(chan events.Event, 1)
	doneCh := make(chan Result, 1)
	model := NewModel("demo-account", eventsCh, doneCh)
	model.width = 120
	model.height = 30

	updated, _ := model.Update(doneMsg(Result{State: scan.State{CorrelatedFindings: sampleFindings()}}))
	m := updated.(Model)

	if m.scanning {
		t.Fatal("expected scanning to be false after done message")
	}
	if len(m.findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(m.findings))
	}
	// Critical severity must sort before High.
	if m.findings[0].Severity != scan.SeverityCritical {
		t.Errorf("expected critical finding first, got %s", m.findings[0].Severity)
	}

	view := m.View()
	if !strings.Contains(view, "FW-OPEN-22") {
		t.Errorf("expected list view to show rule code, got:\n%s", view)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	detail := updated.(Model)
	detailView := detail.View()
	if !strings.Contains(detailView, "Firewall rule allows SSH") {
		t.Errorf("expected details view to show finding title, got:\n%s", detailView)
	}
	if !strings.Contains(detailView, "gcloud compute firewall-rules update") {
		t.Errorf("expected details view to show remediation script, got:\n%s", detailView)
	}
}

func TestModelRendersErrorState(t *testing.T) {
	eventsCh := make(chan events.Event, 1)
	doneCh := make(chan Result, 1)
	model := NewModel("demo-account", eventsCh, doneCh)

	updated, _ := model.Update(doneMsg(Result{Err: errors.New("discovery failed: permission denied")}))
	m := updated.(Model)

	view := m.View()
	if !strings.Contains(view, "permission denied") {
		t.Errorf("expected error footer, got:\n%s", view)
	}
}
