// Package remediation turns findings into ready-to-run gcloud/gsutil
// scripts. It is pure and deterministic: no filesystem or network access,
// no side effects — callers decide whether and how to surface the script.
package remediation

import (
	"fmt"
	"strings"

	"github.com/aegis-scan/aegis/pkg/scan"
)

const generatedByMarker = "Generated by aegis remediation engine"

// Apply returns a copy of findings with RemediationScript populated for
// every finding whose RuleCode has a registered template. Findings without
// a registered template pass through unchanged. Original findings are
// never mutated.
func Apply(findings []scan.Finding, projectID string) []scan.Finding {
	out := make([]scan.Finding, len(findings))
	for i, f := range findings {
		out[i] = f
		tmpl, ok := Lookup(f.RuleCode)
		if !ok {
			continue
		}
		out[i].RemediationScript = render(tmpl, f, projectID)
	}
	return out
}

// render interpolates {asset} and {project_id} into tmpl's body and
// prepends a header block identifying the finding the script addresses.
// Applying render twice to the same finding and project yields
// byte-identical output.
func render(tmpl Template, f scan.Finding, projectID string) string {
	asset := extractAsset(f.Location)
	body := strings.NewReplacer("{asset}", asset, "{project_id}", projectID).Replace(tmpl.ScriptBody)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n", tmpl.Title))
	sb.WriteString(fmt.Sprintf("# rule: %s\n", f.RuleCode))
	sb.WriteString(fmt.Sprintf("# asset: %s\n", asset))
	sb.WriteString(fmt.Sprintf("# %s\n", generatedByMarker))
	if tmpl.Notes != "" {
		sb.WriteString(fmt.Sprintf("# notes: %s\n", tmpl.Notes))
	}
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	return sb.String()
}

// extractAsset pulls the resource name out of a "<prefix>: <name>"
// location string, e.g. "Firewall: allow-ssh" -> "allow-ssh". Locations
// without the separator pass through unchanged.
func extractAsset(location string) string {
	_, name, found := strings.Cut(location, ": ")
	if !found {
		return location
	}
	return name
}
