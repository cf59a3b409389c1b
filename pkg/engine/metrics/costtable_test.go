package metrics

import "testing"

func TestCostUSDKnownModel(t *testing.T) {
	got := CostUSD("claude-haiku-4-5-20251001", 1_000_000, 1_000_000)
	want := 1.00 + 5.00
	if got != want {
		t.Errorf("expected %.2f, got %.2f", want, got)
	}
}

func TestCostUSDUnknownModelUsesDefaultRate(t *testing.T) {
	got := CostUSD("some-future-model", 1_000_000, 0)
	if got != defaultCost.Input {
		t.Errorf("expected default input rate %.2f, got %.2f", defaultCost.Input, got)
	}
}

func TestCostUSDZeroTokensIsZeroCost(t *testing.T) {
	if got := CostUSD("claude-opus-4-6", 0, 0); got != 0 {
		t.Errorf("expected zero cost for zero tokens, got %.4f", got)
	}
}
