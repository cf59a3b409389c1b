package metrics

import "testing"

func TestTimerStopPopulatesMetrics(t *testing.T) {
	timer := Start("classify", "claude-sonnet-4-5-20250929")
	m := timer.Stop(100, 50)

	if m.Stage != "classify" || m.Model != "claude-sonnet-4-5-20250929" {
		t.Fatalf("unexpected stage/model: %+v", m)
	}
	if m.InputTokens != 100 || m.OutputTokens != 50 {
		t.Fatalf("unexpected token counts: %+v", m)
	}
	if m.FinishedAt.Before(m.StartedAt) {
		t.Errorf("expected FinishedAt >= StartedAt, got %+v", m)
	}
	if m.CostUSD <= 0 {
		t.Errorf("expected nonzero cost for a known model, got %.6f", m.CostUSD)
	}
}

func TestTimerStopZeroTokensZeroCost(t *testing.T) {
	timer := Start("ingest", "claude-haiku-4-5-20251001")
	m := timer.Stop(0, 0)
	if m.CostUSD != 0 {
		t.Errorf("expected zero cost, got %.6f", m.CostUSD)
	}
}
