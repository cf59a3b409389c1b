package threat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	agentcost "github.com/aegis-scan/aegis/pkg/engine/metrics"
	"github.com/aegis-scan/aegis/pkg/engine/oracle"
	"github.com/aegis-scan/aegis/pkg/engine/threat/intel"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/scan"
)

const classifySystemPrompt = `You are a cybersecurity risk classifier. For each detected threat, assign:

1. Risk level: critical, high, medium, low, or informational
2. Risk score: 0.0-10.0 (likelihood x impact x exploitability, normalized)
3. MITRE ATT&CK technique ID (e.g. T1110) and tactic (e.g. Initial Access)
4. Business impact assessment
5. Affected systems
6. Remediation priority (1 = highest)

Respond with a JSON array. Each object must have exactly these fields:
[{"threat_id": "...", "risk": "critical|high|medium|low|informational", "risk_score": 0.0, "mitre_technique": "T1110", "mitre_tactic": "Initial Access", "business_impact": "...", "affected_systems": ["..."], "remediation_priority": 1}]

Output only the JSON array.`

const correlationAddendumTemplate = `

## CORRELATION CONTEXT — ACTIVE EXPLOITS
These findings have matching live log evidence. They are ACTIVE EXPLOITS, not
theoretical risks. Force-escalate their risk to critical, set
remediation_priority to 1, and map mitre_technique/mitre_tactic from the
evidence below.

%s`

type classifyEntry struct {
	ThreatID            string   `json:"threat_id"`
	Risk                string   `json:"risk"`
	RiskScore           float64  `json:"risk_score"`
	MitreTechnique      string   `json:"mitre_technique"`
	MitreTactic         string   `json:"mitre_tactic"`
	BusinessImpact      string   `json:"business_impact"`
	AffectedSystems     []string `json:"affected_systems"`
	RemediationPriority int      `json:"remediation_priority"`
}

// ClassifyResult is Classify's output: threats risk-scored and sorted by
// ascending remediation priority.
type ClassifyResult struct {
	Threats []scan.ClassifiedThreat
	Metrics scan.AgentMetrics
}

// Classify risk-scores threats. When evidence (the correlation engine's
// active-exploit samples) is non-empty, it is appended to the prompt with
// an instruction to escalate the matching threats to critical/priority-1;
// the returned risk values are taken from the LLM's answer and are not
// overridden here. An empty threats input short-circuits without
// calling the LLM. A failed or malformed LLM call falls back to a
// per-threat classification from riskEngine (nil falls back to the flat
// medium/5.0 default) rather than failing the stage. intelStore may be
// nil; when set, each threat's prompt entry is enriched with matching
// threat-intelligence context.
func Classify(ctx context.Context, client llm.Client, riskEngine *oracle.RiskEngine, intelStore *intel.Store, threats []scan.Threat, evidence []scan.EvidenceSample) ClassifyResult {
	if len(threats) == 0 {
		return ClassifyResult{}
	}

	started := time.Now()
	resp, err := client.Complete(ctx, ModelClassify, llm.Request{
		System:      classifySystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildClassifyPrompt(threats, evidence, intelStore)}},
		MaxTokens:   2048,
		Temperature: 0.1,
	})
	metrics := scan.AgentMetrics{Stage: "classify", Model: ModelClassify, StartedAt: started, FinishedAt: time.Now()}
	if err != nil {
		return ClassifyResult{Threats: fallbackClassifyAll(threats, riskEngine), Metrics: metrics}
	}
	metrics.InputTokens = resp.InputTokens
	metrics.OutputTokens = resp.OutputTokens
	metrics.CostUSD = agentcost.CostUSD(ModelClassify, resp.InputTokens, resp.OutputTokens)

	var entries []classifyEntry
	if jsonErr := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &entries); jsonErr != nil {
		return ClassifyResult{Threats: fallbackClassifyAll(threats, riskEngine), Metrics: metrics}
	}

	byID := map[string]classifyEntry{}
	for _, e := range entries {
		byID[e.ThreatID] = e
	}

	classified := make([]scan.ClassifiedThreat, len(threats))
	for i, t := range threats {
		e, ok := byID[t.ThreatID]
		if !ok {
			classified[i] = fallbackClassify(t, i+1, riskEngine)
			continue
		}
		riskScore := orDefaultFloat(e.RiskScore, 5.0)
		if riskEngine != nil {
			riskEngine.Observe(t.Type, riskScore)
		}
		classified[i] = scan.ClassifiedThreat{
			Threat:               t,
			Risk:                 scan.Risk(orDefault(e.Risk, string(scan.RiskMedium))),
			RiskScore:            riskScore,
			MitreTechnique:       e.MitreTechnique,
			MitreTactic:          e.MitreTactic,
			BusinessImpact:       e.BusinessImpact,
			AffectedSystems:      e.AffectedSystems,
			RemediationPriority:  orDefaultInt(e.RemediationPriority, i+1),
		}
	}

	sort.SliceStable(classified, func(i, j int) bool {
		return classified[i].RemediationPriority < classified[j].RemediationPriority
	})
	return ClassifyResult{Threats: classified, Metrics: metrics}
}

func fallbackClassifyAll(threats []scan.Threat, riskEngine *oracle.RiskEngine) []scan.ClassifiedThreat {
	out := make([]scan.ClassifiedThreat, len(threats))
	for i, t := range threats {
		out[i] = fallbackClassify(t, i+1, riskEngine)
	}
	return out
}

// fallbackClassify assigns the spec's degraded-mode default: medium risk,
// remediation priority in encounter order, and a risk_score of 5.0 unless
// riskEngine has prior observations for this threat type (never true on a
// first call against a fresh engine, so the literal 5.0 fallback holds).
func fallbackClassify(t scan.Threat, priority int, riskEngine *oracle.RiskEngine) scan.ClassifiedThreat {
	score := 5.0
	if riskEngine != nil {
		score = riskEngine.FallbackScore(t.Type)
	}
	return scan.ClassifiedThreat{
		Threat:               t,
		Risk:                 scan.RiskMedium,
		RiskScore:            score,
		BusinessImpact:       "Unable to assess — classification failed",
		RemediationPriority:  priority,
	}
}

func buildClassifyPrompt(threats []scan.Threat, evidence []scan.EvidenceSample, intelStore *intel.Store) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Classify these %d detected threats:\n\n", len(threats)))
	for _, t := range threats {
		sb.WriteString(fmt.Sprintf("- %s (%s): %s", t.ThreatID, t.Type, t.Description))
		if t.SourceIP != "" {
			sb.WriteString(" [src=" + t.SourceIP + "]")
		}
		sb.WriteString("\n")
		if ctx := intel.FormatContext(intelStore, t.Type, t.Description, t.SourceIP); ctx != "" {
			sb.WriteString(ctx)
		}
	}
	if len(evidence) > 0 {
		var evBuf strings.Builder
		for _, ev := range evidence {
			evBuf.WriteString(fmt.Sprintf("- %s (%s): %s / %s, asset=%s\n", ev.RuleCode, ev.Verdict, ev.Tactic, ev.Technique, ev.Asset))
		}
		sb.WriteString(fmt.Sprintf(correlationAddendumTemplate, evBuf.String()))
	}
	return sb.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
