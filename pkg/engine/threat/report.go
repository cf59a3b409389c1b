package threat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	agentcost "github.com/aegis-scan/aegis/pkg/engine/metrics"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/scan"
)

const reportSystemPrompt = `You are a senior incident response analyst writing a formal incident report
for two audiences: executive leadership (2-3 sentence summary, key actions)
and technical responders (specific, actionable steps).

Respond with a JSON object with exactly these fields:
{"summary": "...", "timeline": "...", "action_plan": [{"action": "...", "urgency": "immediate|1hr|24hr|1week", "owner": "Security Team|IT Ops|Management"}], "recommendations": ["..."], "ioc_summary": ["..."], "mitre_techniques": ["T1110"]}

The summary must be concrete (IPs, counts, impact). Order action_plan by
urgency, most urgent first. Output only the JSON object.`

const activeIncidentsAddendumTemplate = `

## Active Incidents (Correlated — HIGHEST PRIORITY)
These findings have matching live log evidence of active exploitation. Lead
the executive summary with these. Include the specific remediation command
for each.

%s`

type reportActionStep struct {
	Action  string `json:"action"`
	Urgency string `json:"urgency"`
	Owner   string `json:"owner"`
}

type reportPayload struct {
	Summary         string              `json:"summary"`
	Timeline        string              `json:"timeline"`
	ActionPlan      []reportActionStep  `json:"action_plan"`
	Recommendations []string            `json:"recommendations"`
	IOCSummary      []string            `json:"ioc_summary"`
	MitreTechniques []string            `json:"mitre_techniques"`
}

// ReportResult is Report's output.
type ReportResult struct {
	Report  scan.IncidentReport
	Metrics scan.AgentMetrics
}

// Report generates an IncidentReport from classified threats, log
// samples, and detection statistics. No classified threats yields a
// trivial "no threats detected" report without an LLM call. A failed or
// malformed LLM call falls back to a template report built from the
// classified threats directly, one action-plan step per threat.
func Report(ctx context.Context, client llm.Client, classified []scan.ClassifiedThreat, logs []scan.LogLine, stats DetectionStats, evidence []scan.EvidenceSample) ReportResult {
	if len(classified) == 0 {
		return ReportResult{Report: scan.IncidentReport{
			ExecutiveSummary: "No threats detected in the analyzed logs.",
			SeverityCounts:   map[string]int{},
			GeneratedAt:      time.Now(),
		}}
	}

	severityCounts := countBySeverity(classified)

	started := time.Now()
	resp, err := client.Complete(ctx, ModelReport, llm.Request{
		System:      reportSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildReportPrompt(classified, logs, stats, evidence)}},
		MaxTokens:   4096,
		Temperature: 0.3,
	})
	metrics := scan.AgentMetrics{Stage: "report", Model: ModelReport, StartedAt: started, FinishedAt: time.Now()}
	if err != nil {
		return ReportResult{Report: templateReport(classified, severityCounts), Metrics: metrics}
	}
	metrics.InputTokens = resp.InputTokens
	metrics.OutputTokens = resp.OutputTokens
	metrics.CostUSD = agentcost.CostUSD(ModelReport, resp.InputTokens, resp.OutputTokens)

	var payload reportPayload
	if jsonErr := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &payload); jsonErr != nil {
		return ReportResult{Report: templateReport(classified, severityCounts), Metrics: metrics}
	}

	steps := make([]scan.ActionStep, len(payload.ActionPlan))
	for i, a := range payload.ActionPlan {
		steps[i] = scan.ActionStep{Description: a.Action, Urgency: orDefault(a.Urgency, "24hr"), Owner: orDefault(a.Owner, "Security Team")}
	}

	report := scan.IncidentReport{
		ExecutiveSummary:         payload.Summary,
		SeverityCounts:           severityCounts,
		Timeline:                 payload.Timeline,
		ActionPlan:               steps,
		StrategicRecommendations: payload.Recommendations,
		IOCs:                     payload.IOCSummary,
		Techniques:               payload.MitreTechniques,
		GeneratedAt:              time.Now(),
	}
	return ReportResult{Report: report, Metrics: metrics}
}

func countBySeverity(classified []scan.ClassifiedThreat) map[string]int {
	counts := map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0}
	for _, ct := range classified {
		if _, ok := counts[string(ct.Risk)]; ok {
			counts[string(ct.Risk)]++
		}
	}
	return counts
}

// templateReport builds a structured fallback report directly from
// classified threats when the LLM is unavailable — one action-plan step
// per threat, urgency derived from its risk level.
func templateReport(classified []scan.ClassifiedThreat, severityCounts map[string]int) scan.IncidentReport {
	critical := severityCounts["critical"]
	high := severityCounts["high"]

	severityNote := ""
	switch {
	case critical > 0:
		severityNote = fmt.Sprintf(" including %d critical", critical)
	case high > 0:
		severityNote = fmt.Sprintf(" including %d high-severity", high)
	}

	steps := make([]scan.ActionStep, len(classified))
	var iocs []string
	for i, ct := range classified {
		urgency := "1hr"
		if ct.Risk == scan.RiskCritical {
			urgency = "immediate"
		}
		steps[i] = scan.ActionStep{
			Description: fmt.Sprintf("Review %s threat: %s", strings.ToUpper(string(ct.Risk)), ct.Description),
			Urgency:     urgency,
			Owner:       "Security Team",
		}
		if ct.SourceIP != "" {
			iocs = append(iocs, ct.SourceIP)
		}
	}

	return scan.IncidentReport{
		ExecutiveSummary: fmt.Sprintf("Automated analysis found %d threats%s. Review the action plan below for recommended remediation steps.", len(classified), severityNote),
		SeverityCounts:   severityCounts,
		ActionPlan:       steps,
		IOCs:             iocs,
		GeneratedAt:      time.Now(),
	}
}

func buildReportPrompt(classified []scan.ClassifiedThreat, logs []scan.LogLine, stats DetectionStats, evidence []scan.EvidenceSample) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Detection Statistics\n- Total threats: %d\n- Rule-based: %d\n- AI-detected: %d\n\n",
		stats.TotalThreats, stats.RulesMatched, stats.AIDetections))

	sb.WriteString("## Classified Threats\n")
	for _, ct := range classified {
		sb.WriteString(fmt.Sprintf("- %s (%s, risk=%s score=%.1f): %s\n", ct.ThreatID, ct.Type, ct.Risk, ct.RiskScore, ct.Description))
	}

	sb.WriteString("\n## Log Timeline (samples)\n")
	shown := 0
	for _, l := range logs {
		if !l.IsValid || shown >= 20 {
			continue
		}
		sb.WriteString(fmt.Sprintf("[%d] %s %s: %s\n", l.Index, l.Timestamp, l.Source, l.Raw))
		shown++
	}

	if len(evidence) > 0 {
		var evBuf strings.Builder
		for _, ev := range evidence {
			evBuf.WriteString(fmt.Sprintf("- %s: %s (%s/%s) on %s\n", ev.RuleCode, ev.Verdict, ev.Tactic, ev.Technique, ev.Asset))
		}
		sb.WriteString(fmt.Sprintf(activeIncidentsAddendumTemplate, evBuf.String()))
	}
	return sb.String()
}
