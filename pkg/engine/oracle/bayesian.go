// Package oracle provides Classify's deterministic fallback risk scoring:
// when the LLM is unavailable, a threat's risk_score is not a flat
// constant but a decaying per-rule-code estimate seeded at the configured
// baseline and nudged by repeat observations within the engine's
// lifetime.
package oracle

import (
	"sync"

	"github.com/aegis-scan/aegis/pkg/config"
)

// RiskEngine tracks a decaying risk_score estimate per rule code.
type RiskEngine struct {
	Config  config.RiskConfig
	History map[string]float64
	Mu      sync.RWMutex
}

// NewRiskEngine returns a RiskEngine with no observation history.
func NewRiskEngine(cfg config.RiskConfig) *RiskEngine {
	return &RiskEngine{
		Config:  cfg,
		History: make(map[string]float64),
	}
}

// Observe records a new risk_score observation for ruleCode, blending it
// into the rule code's running estimate via the configured decay factor.
func (re *RiskEngine) Observe(ruleCode string, score float64) {
	re.Mu.Lock()
	defer re.Mu.Unlock()

	prev, ok := re.History[ruleCode]
	if !ok {
		re.History[ruleCode] = score
		return
	}
	re.History[ruleCode] = prev*re.Config.DecayFactor + score*(1-re.Config.DecayFactor)
}

// Escalate bumps ruleCode's risk estimate by the configured escalation
// boost, used when correlation evidence force-escalates a threat.
func (re *RiskEngine) Escalate(ruleCode string) {
	re.Mu.Lock()
	defer re.Mu.Unlock()

	current, ok := re.History[ruleCode]
	if !ok {
		current = re.Config.BaselineRisk
	}
	boosted := current + re.Config.EscalationBoost
	if boosted > 10 {
		boosted = 10
	}
	re.History[ruleCode] = boosted
}

// FallbackScore returns ruleCode's current risk_score estimate, or the
// configured baseline if ruleCode has never been observed — the literal
// 5.0 fallback (Classify's first-call, single-observation path) resolves
// to this with default config.
func (re *RiskEngine) FallbackScore(ruleCode string) float64 {
	re.Mu.RLock()
	defer re.Mu.RUnlock()

	if val, ok := re.History[ruleCode]; ok {
		return val
	}
	return re.Config.BaselineRisk
}
