package threat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aegis-scan/aegis/pkg/config"
	agentcost "github.com/aegis-scan/aegis/pkg/engine/metrics"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/scan"
)

const validateSystemPrompt = `You are a quality-assurance reviewer for a threat detection pipeline.

You are given a random sample of log entries the primary pipeline marked as
clean (no threats). Find any threat a rule-based or AI detector would have
missed: low-and-slow attacks, living-off-the-land techniques, or individually
benign events that together indicate compromise.

Respond with a JSON array, one object per missed threat:
[{"threat_id": "VAL-<TYPE>-<N>", "type": "brute_force|port_scan|privilege_escalation|data_exfiltration|lateral_movement|reconnaissance|c2_communication|suspicious_activity", "confidence": 0.0-1.0, "source_log_indices": [0], "description": "..."}]

If the sample is genuinely clean, respond with an empty JSON array: []. Output only the JSON array.`

// ValidateSummary records the sampling outcome for the Report stage.
type ValidateSummary struct {
	SampleSize int
	MissedCount int
}

// ValidateResult is Validate's output: the original threats plus any
// validator-detected additions, merged.
type ValidateResult struct {
	Threats []scan.Threat
	Summary ValidateSummary
	Metrics scan.AgentMetrics
}

// Validate samples config.ScanConfig.SampleSize of the logs not
// referenced by any already-detected threat and asks the LLM to re-check
// them. sampleIndices supplies the (deterministic, caller-chosen) indices
// into the clean-log pool to sample — callers needing true randomness
// pick these via math/rand before calling in, keeping Validate itself a
// pure function over its inputs.
func Validate(ctx context.Context, client llm.Client, cfg config.ScanConfig, logs []scan.LogLine, threats []scan.Threat, sampleIndices []int) ValidateResult {
	clean := selectCleanSample(logs, threats, sampleIndices, cfg)
	if len(clean) == 0 {
		return ValidateResult{Threats: threats}
	}

	started := time.Now()
	resp, err := client.Complete(ctx, ModelValidate, llm.Request{
		System:      validateSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildValidatePrompt(clean, len(threats))}},
		MaxTokens:   4096,
		Temperature: 0.2,
	})
	metrics := scan.AgentMetrics{Stage: "validate", Model: ModelValidate, StartedAt: started, FinishedAt: time.Now()}
	if err != nil {
		return ValidateResult{Threats: threats, Summary: ValidateSummary{SampleSize: len(clean)}, Metrics: metrics}
	}
	metrics.InputTokens = resp.InputTokens
	metrics.OutputTokens = resp.OutputTokens
	metrics.CostUSD = agentcost.CostUSD(ModelValidate, resp.InputTokens, resp.OutputTokens)

	found, ok := parseDetectResponse(resp.Content)
	if !ok {
		return ValidateResult{Threats: threats, Summary: ValidateSummary{SampleSize: len(clean)}, Metrics: metrics}
	}
	for i := range found {
		found[i].Method = "validator-detected"
	}

	merged := append(append([]scan.Threat{}, threats...), found...)
	return ValidateResult{
		Threats: merged,
		Summary: ValidateSummary{SampleSize: len(clean), MissedCount: len(found)},
		Metrics: metrics,
	}
}

// selectCleanSample returns the valid log lines not referenced by any
// threat's SourceLogIndices, restricted to sampleIndices (positions into
// the clean-log pool, already sized via cfg.SampleSize by the caller).
func selectCleanSample(logs []scan.LogLine, threats []scan.Threat, sampleIndices []int, cfg config.ScanConfig) []scan.LogLine {
	referenced := map[int]bool{}
	for _, t := range threats {
		for _, idx := range t.SourceLogIndices {
			referenced[idx] = true
		}
	}

	var clean []scan.LogLine
	for _, l := range logs {
		if l.IsValid && !referenced[l.Index] {
			clean = append(clean, l)
		}
	}
	if len(clean) == 0 {
		return nil
	}

	size := cfg.SampleSize(len(clean))
	if size == 0 {
		return nil
	}

	var sample []scan.LogLine
	for _, idx := range sampleIndices {
		if idx >= 0 && idx < len(clean) {
			sample = append(sample, clean[idx])
		}
		if len(sample) >= size {
			break
		}
	}
	if len(sample) == 0 {
		if size > len(clean) {
			size = len(clean)
		}
		sample = clean[:size]
	}
	return sample
}

func buildValidatePrompt(sample []scan.LogLine, detectedCount int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d threats already detected by the primary pipeline.\n\n", detectedCount))
	sb.WriteString(fmt.Sprintf("## Clean sample (%d entries)\n", len(sample)))
	for _, l := range sample {
		sb.WriteString(fmt.Sprintf("[%d] %s | %s | src=%s dst=%s user=%s | %s\n",
			l.Index, l.Timestamp, l.EventType, l.SourceIP, l.DestIP, l.User, l.Details))
	}
	return sb.String()
}
