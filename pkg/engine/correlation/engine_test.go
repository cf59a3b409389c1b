package correlation

import (
	"testing"

	"github.com/aegis-scan/aegis/pkg/scan"
)

func TestCorrelatePassThroughWhenNoLogLines(t *testing.T) {
	findings := []scan.Finding{{RuleCode: "gcp_002", Title: "x", Location: "Firewall: allow-ssh"}}
	result := Correlate(findings, nil)

	if len(result.Findings) != 1 || result.Findings[0].Title != "x" {
		t.Fatalf("expected pass-through, got %+v", result.Findings)
	}
	if result.ActiveCount != 0 || len(result.Evidence) != 0 {
		t.Fatalf("expected no active exploits and no evidence, got %+v", result)
	}
}

func TestCorrelateUnknownRuleCodePassesThrough(t *testing.T) {
	findings := []scan.Finding{{RuleCode: "unknown_999", Title: "x", Location: "Whatever: y"}}
	result := Correlate(findings, []string{"some log line mentioning y"})

	if len(result.Findings) != 1 || result.Findings[0].Correlated {
		t.Fatalf("unknown rule code should pass through unchanged, got %+v", result.Findings)
	}
}

func TestCorrelateOpenSSHBruteForceScenario(t *testing.T) {
	findings := []scan.Finding{{
		RuleCode:    "gcp_002",
		Title:       "Firewall 'allow-ssh' allows unrestricted SSH",
		Description: "desc",
		Severity:    scan.SeverityHigh,
		Location:    "Firewall: allow-ssh",
	}}
	logLines := []string{
		"WARNING allow-ssh: Failed password for root",
		"WARNING allow-ssh: Invalid user admin",
	}

	result := Correlate(findings, logLines)

	if len(result.Findings) != 1 {
		t.Fatalf("expected one correlated finding, got %d", len(result.Findings))
	}
	f := result.Findings[0]
	if f.RuleCode != "gcp_002" || f.Severity != scan.SeverityCritical || !f.Correlated {
		t.Fatalf("unexpected upgraded finding: %+v", f)
	}
	if f.Verdict != "Brute Force Attempt in Progress" || f.Technique != "T1110" {
		t.Fatalf("unexpected verdict/technique: %+v", f)
	}
	if result.ActiveCount != 1 {
		t.Fatalf("expected active_exploit_count=1, got %d", result.ActiveCount)
	}
	if len(result.Evidence) != 1 {
		t.Fatalf("expected one evidence sample, got %d", len(result.Evidence))
	}
	ev := result.Evidence[0]
	hasFailedPassword, hasInvalidUser := false, false
	for _, p := range ev.MatchedPatterns {
		if p == "Failed password" {
			hasFailedPassword = true
		}
		if p == "Invalid user" {
			hasInvalidUser = true
		}
	}
	if !hasFailedPassword || !hasInvalidUser {
		t.Fatalf("expected matched_patterns to include Failed password and Invalid user, got %v", ev.MatchedPatterns)
	}
}

func TestCorrelatePublicBucketNoLogsStaysUncorrelated(t *testing.T) {
	findings := []scan.Finding{{
		RuleCode: "gcp_004",
		Title:    "Bucket 'x' is publicly accessible",
		Severity: scan.SeverityCritical,
		Location: "Bucket: x",
	}}
	result := Correlate(findings, nil)

	if len(result.Findings) != 1 || result.Findings[0].Correlated {
		t.Fatalf("expected uncorrelated pass-through, got %+v", result.Findings)
	}
	if result.ActiveCount != 0 {
		t.Fatalf("expected active_exploit_count=0, got %d", result.ActiveCount)
	}
}

func TestCorrelateDoesNotMutateOriginalFinding(t *testing.T) {
	original := scan.Finding{RuleCode: "gcp_002", Title: "orig-title", Severity: scan.SeverityHigh, Location: "Firewall: allow-ssh"}
	snapshot := original

	Correlate([]scan.Finding{original}, []string{"allow-ssh: Failed password for root"})

	if original != snapshot {
		t.Fatalf("input finding was mutated: %+v vs snapshot %+v", original, snapshot)
	}
}

func TestExtractResourceName(t *testing.T) {
	cases := map[string]string{
		"Firewall: allow-ssh": "allow-ssh",
		"Cloud Logging":       "cloud-logging",
	}
	for in, want := range cases {
		if got := ExtractResourceName(in); got != want {
			t.Errorf("ExtractResourceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCorrelateEvidenceCapsAtFiveLogs(t *testing.T) {
	findings := []scan.Finding{{RuleCode: "gcp_002", Title: "t", Location: "Firewall: allow-ssh"}}
	logLines := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		logLines = append(logLines, "allow-ssh: Failed password attempt")
	}

	result := Correlate(findings, logLines)
	if len(result.Evidence) != 1 || len(result.Evidence[0].EvidenceLogs) != 5 {
		t.Fatalf("expected evidence capped at 5 logs, got %+v", result.Evidence)
	}
}
