package policy

import (
	"context"
	"testing"
)

func TestCELEngineTriage(t *testing.T) {
	engine, err := NewCELEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	rules := []DynamicRule{
		{
			ID:        "critical_alert",
			Condition: "severity == 'critical'",
			Action:    "alert",
		},
		{
			ID:        "prod_bucket_block",
			Condition: "kind == 'object-bucket' && tags.env == 'prod' && correlated",
			Action:    "block",
		},
	}

	if err := engine.Compile(rules); err != nil {
		t.Fatalf("compilation failed: %v", err)
	}

	ctx := context.Background()

	matches, _ := engine.Evaluate(ctx, EvaluationContext{
		Severity: "critical",
		Tags:     map[string]string{"env": "dev"},
	})
	if len(matches) != 1 || matches[0].ID != "critical_alert" {
		t.Errorf("scenario A failed. expected [critical_alert], got %v", matches)
	}

	matches, _ = engine.Evaluate(ctx, EvaluationContext{
		Kind:       "object-bucket",
		Severity:   "medium",
		Correlated: true,
		Tags:       map[string]string{"env": "prod"},
	})
	if len(matches) != 1 || matches[0].ID != "prod_bucket_block" {
		t.Errorf("scenario B failed. expected [prod_bucket_block], got %v", matches)
	}
}

func TestCELEnginePriorityOrdering(t *testing.T) {
	engine, err := NewCELEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	rules := []DynamicRule{
		{ID: "low_priority", Condition: "severity == 'high'", Priority: 1},
		{ID: "high_priority", Condition: "severity == 'high'", Priority: 10},
	}
	if err := engine.Compile(rules); err != nil {
		t.Fatalf("compilation failed: %v", err)
	}

	matches, _ := engine.Evaluate(context.Background(), EvaluationContext{Severity: "high"})
	if len(matches) != 2 || matches[0].ID != "high_priority" {
		t.Fatalf("expected high_priority rule first, got %v", matches)
	}
}
