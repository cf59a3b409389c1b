// Package policy evaluates user-defined CEL expressions against findings
// after correlation, letting an operator declare triage rules ("always
// block public buckets tagged prod", "auto-ignore low severity recon
// probes on non-prod") without recompiling the scan engine.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DynamicRule is a user-defined triage rule.
type DynamicRule struct {
	ID          string   `json:"id"`
	Condition   string   `json:"condition"`    // CEL expression: "severity == 'critical' && correlated"
	Action      string   `json:"action"`       // "block", "warn", "approve", "ignore"
	Priority    int      `json:"priority"`     // Higher wins
	TargetKinds []string `json:"target_kinds"` // e.g. ["firewall-rule", "object-bucket"]
}

// CELEngine compiles and runs DynamicRules against findings.
type CELEngine struct {
	env               *cel.Env
	programs          map[string]cel.Program
	rules             map[string]DynamicRule
	index             map[string][]string // asset kind -> []RuleID
	violationsCounter metric.Int64Counter
}

// EvaluationContext is one finding projected into CEL-addressable fields.
type EvaluationContext struct {
	RuleCode   string                 `cel:"rule_code"`
	Kind       string                 `cel:"kind"` // asset type the finding is attached to
	Severity   string                 `cel:"severity"`
	Correlated bool                   `cel:"correlated"`
	Tags       map[string]string      `cel:"tags"`
	Props      map[string]interface{} `cel:"props"`
}

// NewCELEngine initializes the CEL environment used for triage rules.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("rule_code", decls.String),
			decls.NewVar("kind", decls.String),
			decls.NewVar("severity", decls.String),
			decls.NewVar("correlated", decls.Bool),
			decls.NewVar("tags", decls.NewMapType(decls.String, decls.String)),
			decls.NewVar("props", decls.NewMapType(decls.String, decls.Dyn)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	meter := otel.Meter("aegis/policy")
	violations, err := meter.Int64Counter("policy_triage_matches_total", metric.WithDescription("Total number of findings matched by a triage rule"))
	if err != nil {
		slog.Warn("failed to initialize policy metric", "error", err)
	}

	return &CELEngine{
		env:               env,
		programs:          make(map[string]cel.Program),
		rules:             make(map[string]DynamicRule),
		index:             make(map[string][]string),
		violationsCounter: violations,
	}, nil
}

// Compile prepares rules for execution.
func (e *CELEngine) Compile(rules []DynamicRule) error {
	for _, r := range rules {
		ast, issues := e.env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %s compilation error: %w", r.ID, issues.Err())
		}

		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("rule %s program creation error: %w", r.ID, err)
		}

		e.programs[r.ID] = prg
		e.rules[r.ID] = r

		if len(r.TargetKinds) == 0 {
			e.index["*"] = append(e.index["*"], r.ID)
		} else {
			for _, kind := range r.TargetKinds {
				if kind == "*" {
					e.index["*"] = append(e.index["*"], r.ID)
				} else {
					e.index[kind] = append(e.index[kind], r.ID)
				}
			}
		}
	}
	return nil
}

// Evaluate returns every rule whose condition matches evalCtx, sorted by
// priority (highest first, then rule ID for a stable order).
func (e *CELEngine) Evaluate(ctx context.Context, evalCtx EvaluationContext) ([]DynamicRule, error) {
	var matches []DynamicRule

	vars := map[string]interface{}{
		"rule_code":  evalCtx.RuleCode,
		"kind":       evalCtx.Kind,
		"severity":   evalCtx.Severity,
		"correlated": evalCtx.Correlated,
		"tags":       evalCtx.Tags,
		"props":      evalCtx.Props,
	}

	candidates := make([]string, 0, len(e.index[evalCtx.Kind])+len(e.index["*"]))
	candidates = append(candidates, e.index[evalCtx.Kind]...)
	candidates = append(candidates, e.index["*"]...)

	evaluated := make(map[string]bool)

	for _, id := range candidates {
		if evaluated[id] {
			continue
		}
		evaluated[id] = true

		prg, ok := e.programs[id]
		if !ok {
			continue
		}

		out, _, err := prg.Eval(vars)
		if err != nil {
			slog.Error("triage rule evaluation failed", "rule_id", id, "error", err)
			continue
		}

		if match, ok := out.Value().(bool); ok && match {
			if rule, exists := e.rules[id]; exists {
				matches = append(matches, rule)

				if e.violationsCounter != nil {
					e.violationsCounter.Add(ctx, 1, metric.WithAttributes(
						attribute.String("rule_id", id),
						attribute.String("asset_kind", evalCtx.Kind),
					))
				}
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].ID < matches[j].ID
	})

	return matches, nil
}
