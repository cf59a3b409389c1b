package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aegis-scan/aegis/pkg/engine/persistence"
	"github.com/aegis-scan/aegis/pkg/scan"
)

func newAccount(t *testing.T, s *Store) persistence.Account {
	t.Helper()
	acct, err := s.CreateAccount(context.Background(), persistence.Account{ProjectID: "proj-1", Name: "acme"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return acct
}

func TestSaveFindingsDeduplicatesOnRuleCodeAndLocation(t *testing.T) {
	s := New()
	acct := newAccount(t, s)
	ctx := context.Background()

	first := []scan.Finding{
		{RuleCode: "gcp_002", Location: "Firewall: allow-ssh", Status: scan.StatusTodo},
	}
	n, err := s.SaveFindings(ctx, acct.ID, first)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 inserted, got %d err=%v", n, err)
	}

	resolved := []scan.Finding{
		{RuleCode: "gcp_002", Location: "Firewall: allow-ssh", Status: scan.StatusResolved},
	}
	_, err = s.SaveFindings(ctx, acct.ID, resolved)
	if err != nil {
		t.Fatalf("SaveFindings: %v", err)
	}

	found, err := s.ListFindings(ctx, acct.ID, "", "")
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected one finding on record, got %d", len(found))
	}
	if found[0].Status != scan.StatusTodo {
		t.Errorf("expected existing record to keep its status, got %q", found[0].Status)
	}
}

func TestSaveFindingsInsertsGenuinelyNewPairs(t *testing.T) {
	s := New()
	acct := newAccount(t, s)
	ctx := context.Background()

	n, err := s.SaveFindings(ctx, acct.ID, []scan.Finding{
		{RuleCode: "gcp_002", Location: "Firewall: allow-ssh"},
		{RuleCode: "gcp_004", Location: "Bucket: public-assets"},
	})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 inserted, got %d err=%v", n, err)
	}
}

func TestListFindingsOrdersBySeverityThenDiscoveredAtDescending(t *testing.T) {
	s := New()
	acct := newAccount(t, s)
	ctx := context.Background()

	now := time.Now()
	_, err := s.SaveFindings(ctx, acct.ID, []scan.Finding{
		{RuleCode: "r1", Location: "l1", Severity: scan.SeverityLow, DiscoveredAt: now},
		{RuleCode: "r2", Location: "l2", Severity: scan.SeverityCritical, DiscoveredAt: now.Add(-time.Hour)},
		{RuleCode: "r3", Location: "l3", Severity: scan.SeverityCritical, DiscoveredAt: now},
		{RuleCode: "r4", Location: "l4", Severity: scan.SeverityHigh, DiscoveredAt: now},
	})
	if err != nil {
		t.Fatalf("SaveFindings: %v", err)
	}

	found, err := s.ListFindings(ctx, acct.ID, "", "")
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(found) != 4 {
		t.Fatalf("expected 4 findings, got %d", len(found))
	}
	if found[0].RuleCode != "r3" || found[1].RuleCode != "r2" {
		t.Fatalf("expected critical findings newest-first, got order %v", ruleCodes(found))
	}
	if found[2].RuleCode != "r4" || found[3].RuleCode != "r1" {
		t.Fatalf("expected high then low after critical, got order %v", ruleCodes(found))
	}
}

func ruleCodes(findings []scan.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.RuleCode
	}
	return out
}

func TestUpdateAccountOnlyTouchesProvidedFields(t *testing.T) {
	s := New()
	acct := newAccount(t, s)
	ctx := context.Background()

	newName := "acme-renamed"
	updated, err := s.UpdateAccount(ctx, acct.ID, persistence.AccountUpdate{Name: &newName})
	if err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	if updated.Name != newName {
		t.Errorf("expected name updated, got %q", updated.Name)
	}
	if updated.ProjectID != acct.ProjectID {
		t.Errorf("expected untouched fields preserved, got %q", updated.ProjectID)
	}
}

func TestDeleteAccountCascadesFindings(t *testing.T) {
	s := New()
	acct := newAccount(t, s)
	ctx := context.Background()

	if _, err := s.SaveFindings(ctx, acct.ID, []scan.Finding{{RuleCode: "r1", Location: "l1"}}); err != nil {
		t.Fatalf("SaveFindings: %v", err)
	}
	if err := s.DeleteAccount(ctx, acct.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := s.ListFindings(ctx, acct.ID, "", ""); err == nil {
		t.Error("expected ListFindings to fail after account deletion")
	}
}

func TestCreateAndCompleteScanLog(t *testing.T) {
	s := New()
	acct := newAccount(t, s)
	ctx := context.Background()

	id, err := s.CreateScanLog(ctx, scan.ScanLog{AccountID: acct.ID, Status: scan.ScanLogRunning})
	if err != nil {
		t.Fatalf("CreateScanLog: %v", err)
	}
	err = s.CompleteScanLog(ctx, id, scan.ScanLogSuccess, "scan complete", []scan.ScanLogEntry{
		{Service: "compute", Status: scan.ScanStatusSuccess, AssetCount: 3},
	})
	if err != nil {
		t.Fatalf("CompleteScanLog: %v", err)
	}
}
