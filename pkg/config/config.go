// Package config defines the scan engine's tunable parameters and their
// defaults, loaded via viper the same way the CLI loads every other
// setting (env vars prefixed AEGIS_, a config file, and flag overrides).
package config

import (
	"time"

	"github.com/aegis-scan/aegis/pkg/engine/policy"
)

// ScanConfig bounds the shape of a single scan run: how much log data to
// pull, when to switch into burst-mode ingestion, how the threat
// pipeline samples clean log lines for LLM validation, and the deadlines each
// stage is allotted.
type ScanConfig struct {
	// MaxLogEntries caps how many Cloud Logging entries Discovery pulls
	// per scan.
	MaxLogEntries int `mapstructure:"max_log_entries"`
	// LogWindowHours is how far back Discovery's log query looks.
	LogWindowHours int `mapstructure:"log_window_hours"`
	// BurstThreshold is the raw log-line count above which Ingest
	// switches to chunked fan-out instead of a single pass.
	BurstThreshold int `mapstructure:"burst_threshold"`
	// ChunkSize is the number of log lines per Ingest chunk once
	// BurstThreshold is exceeded.
	ChunkSize int `mapstructure:"chunk_size"`
	// PerStageDeadline is the configured time budget for one outer-graph
	// node. No stage reads it; nodes are bounded only by the ctx passed
	// to Runtime.Run.
	PerStageDeadline time.Duration `mapstructure:"per_stage_deadline"`
	// PerLLMCallDeadline is the configured time budget for one call
	// through llm.Client. The threat stages do not read it; each call is
	// bounded only by the ctx the stage receives.
	PerLLMCallDeadline time.Duration `mapstructure:"per_llm_call_deadline"`
	// SampleFraction is the fraction of the clean-log pool (valid log
	// lines referenced by no detected threat) Validate re-checks via the
	// LLM.
	SampleFraction float64 `mapstructure:"sample_fraction"`
	// SampleMin and SampleMax bound the absolute sample count derived
	// from SampleFraction.
	SampleMin int `mapstructure:"sample_min"`
	SampleMax int `mapstructure:"sample_max"`
	// KubeconfigPath, when set, is used to reach a GKE cluster's
	// Kubernetes API for the node-pool/workload census that supplements
	// compute-instance discovery. Empty means try the in-cluster
	// service account config instead; either way this is best-effort.
	KubeconfigPath string `mapstructure:"kubeconfig_path"`
	// TriageRules are optional operator-defined CEL triage rules run
	// against correlated findings before remediation. Empty (the
	// default) means the triage stage is a no-op.
	TriageRules []policy.DynamicRule `mapstructure:"triage_rules"`
}

// DefaultScanConfig returns the scan engine's out-of-the-box parameters.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		MaxLogEntries:      500,
		LogWindowHours:     24,
		BurstThreshold:     1000,
		ChunkSize:          200,
		PerStageDeadline:   300 * time.Second,
		PerLLMCallDeadline: 120 * time.Second,
		SampleFraction:     0.05,
		SampleMin:          1,
		SampleMax:          50,
	}
}

// SampleSize returns how many of n clean log lines Validate should re-check,
// clamped to [SampleMin, SampleMax] and never exceeding n itself.
func (c ScanConfig) SampleSize(n int) int {
	if n <= 0 {
		return 0
	}
	size := int(float64(n) * c.SampleFraction)
	if size < c.SampleMin {
		size = c.SampleMin
	}
	if size > c.SampleMax {
		size = c.SampleMax
	}
	if size > n {
		size = n
	}
	return size
}

// RiskConfig parameterizes the Bayesian fallback risk engine used by the
// Classify stage when the LLM is unavailable or returns no usable score.
type RiskConfig struct {
	// BaselineRisk is the risk_score (0-10 scale) seeded for a rule code
	// with no prior observations — matches the literal 5.0 fallback
	// Classify uses on total LLM failure.
	BaselineRisk float64 `mapstructure:"baseline_risk"`
	// DecayFactor discounts older observations when updating a rule
	// code's historical risk estimate.
	DecayFactor float64 `mapstructure:"decay_factor"`
	// EscalationBoost is the risk spike applied when a threat is
	// force-escalated by correlation evidence.
	EscalationBoost float64 `mapstructure:"escalation_boost"`
}

// DefaultRiskConfig returns the fallback risk engine's default parameters.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		BaselineRisk:    5.0,
		DecayFactor:     0.95,
		EscalationBoost: 1.0,
	}
}
