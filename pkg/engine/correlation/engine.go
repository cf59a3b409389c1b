package correlation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aegis-scan/aegis/pkg/scan"
)

// Result is the correlation engine's output.
type Result struct {
	Findings    []scan.Finding
	ActiveCount int
	Evidence    []scan.EvidenceSample
}

// Correlate cross-references findings against logLines via Rules.
// Matching is case-insensitive; original findings are never mutated
// (copy-on-upgrade). When logLines is empty, the output equals the input
// verbatim. An unknown rule_code passes through unchanged.
func Correlate(findings []scan.Finding, logLines []string) Result {
	result := Result{Findings: make([]scan.Finding, 0, len(findings))}

	if len(logLines) == 0 {
		result.Findings = append(result.Findings, findings...)
		return result
	}

	lowerLines := make([]string, len(logLines))
	for i, l := range logLines {
		lowerLines[i] = strings.ToLower(l)
	}

	for _, f := range findings {
		rule, ok := Rules[f.RuleCode]
		if !ok {
			result.Findings = append(result.Findings, f)
			continue
		}

		resource := ExtractResourceName(f.Location)
		related := relatedLines(logLines, lowerLines, resource)
		matched := matchedPatterns(related, rule.LogPatterns)

		if len(matched) == 0 {
			result.Findings = append(result.Findings, f)
			continue
		}

		upgraded := f.Clone()
		upgraded.Severity = scan.SeverityCritical
		upgraded.Title = scan.ActiveMarker + f.Title
		upgraded.Description = f.Description + "\nCORRELATED: " + rule.Verdict + " — " + strconv.Itoa(len(related)) + " related log events."
		upgraded.Correlated = true
		upgraded.Verdict = rule.Verdict
		upgraded.Tactic = rule.Tactic
		upgraded.Technique = rule.Technique

		result.Findings = append(result.Findings, upgraded)
		result.ActiveCount++

		evidenceLogs := related
		if len(evidenceLogs) > 5 {
			evidenceLogs = evidenceLogs[:5]
		}
		result.Evidence = append(result.Evidence, scan.EvidenceSample{
			RuleCode:        f.RuleCode,
			Asset:           resource,
			Verdict:         rule.Verdict,
			Tactic:          rule.Tactic,
			Technique:       rule.Technique,
			EvidenceLogs:    evidenceLogs,
			MatchedPatterns: matched,
		})
	}

	return result
}

// relatedLines returns the original-cased lines (for evidence display)
// whose lowercased form contains the lowercased resource name.
func relatedLines(original, lower []string, resource string) []string {
	needle := strings.ToLower(resource)
	var related []string
	for i, l := range lower {
		if strings.Contains(l, needle) {
			related = append(related, original[i])
		}
	}
	return related
}

func matchedPatterns(related []string, patterns []string) []string {
	lowerRelated := make([]string, len(related))
	for i, l := range related {
		lowerRelated[i] = strings.ToLower(l)
	}

	var matched []string
	for _, p := range patterns {
		lowerP := strings.ToLower(p)
		for _, l := range lowerRelated {
			if strings.Contains(l, lowerP) {
				matched = append(matched, p)
				break
			}
		}
	}
	return matched
}

var nonAlnumRun = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// ExtractResourceName maps a Finding.Location to the bare resource name
// the correlation engine matches against log lines: "Firewall: X" -> "X";
// otherwise the whole string with non-alphanumeric runs collapsed to a
// single hyphen (e.g. "Cloud Logging" -> "cloud-logging"). Exported so
// other consumers of Finding.Location (CEL triage's asset lookup) can
// strip the same prefix before matching against scan.Asset.Name.
func ExtractResourceName(location string) string {
	if idx := strings.Index(location, ": "); idx >= 0 {
		return location[idx+2:]
	}
	collapsed := nonAlnumRun.ReplaceAllString(location, "-")
	return strings.Trim(strings.ToLower(collapsed), "-")
}
