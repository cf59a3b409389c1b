package intel

import (
	"strings"
	"testing"
)

func sampleStore() *Store {
	return NewStore([]Entry{
		{ID: "CVE-2023-1111", Text: "SSH brute force campaigns targeting exposed bastion hosts.", Severity: "high", CVSS: "7.5", Tactic: "TA0006", Technique: "T1110", Keywords: []string{"brute_force", "ssh", "password"}},
		{ID: "CVE-2023-2222", Text: "Public bucket misconfiguration leading to mass exfiltration.", Severity: "critical", CVSS: "9.1", Tactic: "TA0010", Technique: "T1530", Keywords: []string{"data_exfiltration", "bucket", "storage"}},
	})
}

func TestQueryRanksByKeywordOverlap(t *testing.T) {
	s := sampleStore()
	matches := s.Query("brute_force: repeated failed password attempts", 3)
	if len(matches) != 1 || matches[0].ID != "CVE-2023-1111" {
		t.Fatalf("expected brute-force entry matched, got %+v", matches)
	}
}

func TestQueryExcludesZeroOverlapEntries(t *testing.T) {
	s := sampleStore()
	matches := s.Query("totally unrelated query about nothing", 3)
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %+v", matches)
	}
}

func TestFormatContextReturnsEmptyForNilStore(t *testing.T) {
	if got := FormatContext(nil, "brute_force", "desc", ""); got != "" {
		t.Errorf("expected empty context for nil store, got %q", got)
	}
}

func TestFormatContextIncludesSeverityAndMitreMapping(t *testing.T) {
	s := sampleStore()
	got := FormatContext(s, "data_exfiltration", "bucket exposed to allUsers", "")
	if !strings.Contains(got, "CVE-2023-2222") || !strings.Contains(got, "T1530") || !strings.Contains(got, "9.1") {
		t.Errorf("expected formatted context with id/severity/mitre, got %q", got)
	}
}

func TestFormatContextReturnsEmptyForNoMatches(t *testing.T) {
	s := sampleStore()
	if got := FormatContext(s, "port_scan", "nmap sweep of subnet", ""); got != "" {
		t.Errorf("expected empty context for no matches, got %q", got)
	}
}
