package threat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	agentcost "github.com/aegis-scan/aegis/pkg/engine/metrics"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/engine/threat/rules"
	"github.com/aegis-scan/aegis/pkg/scan"
)

const detectSystemPrompt = `You are a threat detection analyst reviewing cloud security logs.

A rule-based layer has already flagged the threats listed below. Your job is
to find ADDITIONAL threats the rules missed: subtle patterns, combinations of
benign-looking events, or attack types the rule set does not cover.

Respond with a JSON array, one object per additional threat you find:
[{"threat_id": "AI-<TYPE>-<N>", "type": "brute_force|port_scan|privilege_escalation|data_exfiltration|lateral_movement|reconnaissance|c2_communication|suspicious_activity", "confidence": 0.0-1.0, "source_log_indices": [0,1], "description": "...", "source_ip": "..."}]

If there is nothing to add, respond with an empty JSON array: []. Output only the JSON array.`

// DetectionStats summarizes one Detect run for the Report stage.
type DetectionStats struct {
	RulesMatched int
	AIDetections int
	TotalThreats int
}

// DetectResult is Detect's output.
type DetectResult struct {
	Threats []scan.Threat
	Stats   DetectionStats
	Metrics scan.AgentMetrics
}

type detectEntry struct {
	ThreatID         string  `json:"threat_id"`
	Type             string  `json:"type"`
	Confidence       float64 `json:"confidence"`
	SourceLogIndices []int   `json:"source_log_indices"`
	Description      string  `json:"description"`
	SourceIP         string  `json:"source_ip"`
}

// Detect runs the deterministic rule layer first, then asks the LLM for
// anything additional those rules missed. A failed or malformed AI call
// degrades gracefully to the rule-only result rather than failing the
// stage.
func Detect(ctx context.Context, client llm.Client, logs []scan.LogLine) DetectResult {
	validLogs := make([]scan.LogLine, 0, len(logs))
	for _, l := range logs {
		if l.IsValid {
			validLogs = append(validLogs, l)
		}
	}

	ruleThreats := rules.RunAll(validLogs)
	stats := DetectionStats{RulesMatched: len(ruleThreats)}

	started := time.Now()
	resp, err := client.Complete(ctx, ModelDetectAI, llm.Request{
		System:      detectSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildDetectPrompt(validLogs, ruleThreats)}},
		MaxTokens:   4096,
		Temperature: 0.2,
	})
	metrics := scan.AgentMetrics{Stage: "detect", Model: ModelDetectAI, StartedAt: started, FinishedAt: time.Now()}
	if err != nil {
		stats.TotalThreats = len(ruleThreats)
		return DetectResult{Threats: ruleThreats, Stats: stats, Metrics: metrics}
	}
	metrics.InputTokens = resp.InputTokens
	metrics.OutputTokens = resp.OutputTokens
	metrics.CostUSD = agentcost.CostUSD(ModelDetectAI, resp.InputTokens, resp.OutputTokens)

	aiThreats, ok := parseDetectResponse(resp.Content)
	if !ok {
		stats.TotalThreats = len(ruleThreats)
		return DetectResult{Threats: ruleThreats, Stats: stats, Metrics: metrics}
	}

	stats.AIDetections = len(aiThreats)
	all := append(ruleThreats, aiThreats...)
	stats.TotalThreats = len(all)
	return DetectResult{Threats: all, Stats: stats, Metrics: metrics}
}

func buildDetectPrompt(logs []scan.LogLine, ruleThreats []scan.Threat) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Already-detected threats (%d)\n", len(ruleThreats)))
	for _, t := range ruleThreats {
		sb.WriteString(fmt.Sprintf("- %s (%s, confidence %.2f): %s\n", t.ThreatID, t.Type, t.Confidence, t.Description))
	}
	sb.WriteString(fmt.Sprintf("\n## Log entries (%d)\n", len(logs)))
	for _, l := range logs {
		sb.WriteString(fmt.Sprintf("[%d] %s | %s | src=%s dst=%s user=%s | %s\n",
			l.Index, l.Timestamp, l.EventType, l.SourceIP, l.DestIP, l.User, l.Details))
	}
	return sb.String()
}

func parseDetectResponse(content string) ([]scan.Threat, bool) {
	var entries []detectEntry
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &entries); err != nil {
		return nil, false
	}
	threats := make([]scan.Threat, len(entries))
	for i, e := range entries {
		confidence := e.Confidence
		if confidence == 0 {
			confidence = 0.5
		}
		threats[i] = scan.Threat{
			ThreatID:         e.ThreatID,
			Type:             e.Type,
			Confidence:       confidence,
			SourceLogIndices: e.SourceLogIndices,
			Method:           "ai_detected",
			Description:      e.Description,
			SourceIP:         e.SourceIP,
		}
	}
	return threats, true
}
