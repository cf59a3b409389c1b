package metrics

import (
	"time"

	"github.com/aegis-scan/aegis/pkg/scan"
)

// Timer tracks one stage's wall-clock span and token usage, the Go
// equivalent of the pipeline's original context-manager-based agent timer.
type Timer struct {
	stage   string
	model   string
	started time.Time
}

// Start begins timing stage's call against model.
func Start(stage, model string) *Timer {
	return &Timer{stage: stage, model: model, started: time.Now()}
}

// Stop closes the timer and returns the populated AgentMetrics, with
// CostUSD computed from the cost table keyed by the timer's model.
func (t *Timer) Stop(inputTokens, outputTokens int) scan.AgentMetrics {
	return scan.AgentMetrics{
		Stage:        t.stage,
		Model:        t.model,
		StartedAt:    t.started,
		FinishedAt:   time.Now(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      CostUSD(t.model, inputTokens, outputTokens),
	}
}
