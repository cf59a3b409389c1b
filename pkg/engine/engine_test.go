package engine

import (
	"context"
	"log/slog"
	"testing"

	internalconfig "github.com/aegis-scan/aegis/pkg/config"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
)

func TestEngineInitialization(t *testing.T) {
	cfg := Config{
		AccountID:     "acct-1",
		ProjectID:     "proj-1",
		Logger:        slog.Default(),
		SkipTelemetry: true,
	}

	eng, err := New(context.Background(), WithConfig(cfg), WithLogger(cfg.Logger))
	if err != nil {
		t.Fatalf("failed to initialize engine: %v", err)
	}
	if eng == nil {
		t.Fatal("engine instance should not be nil")
	}
	if eng.Risk == nil || eng.Intel == nil || eng.Notifier == nil {
		t.Error("New should construct risk engine, intel store, and notifier")
	}
}

func TestEngineInitializationDefaults(t *testing.T) {
	eng, err := New(context.Background(), WithConfig(Config{SkipTelemetry: true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.Logger == nil {
		t.Error("engine should have a default logger")
	}
}

func TestEngineRunMockProviderReachesFinalize(t *testing.T) {
	echo := llm.StaticClient("[]", 10, 5)

	cfg := Config{
		AccountID:         "acct-1",
		ProjectID:         "proj-1",
		RequestedServices: []string{"compute", "storage"},
		Scan:              internalconfig.DefaultScanConfig(),
		Risk:              internalconfig.DefaultRiskConfig(),
		SkipTelemetry:     true,
		Headless:          true,
	}

	eng, err := New(context.Background(), WithConfig(cfg), WithLLM(echo))
	if err != nil {
		t.Fatalf("failed to initialize engine: %v", err)
	}

	final, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if final.TotalAssets == 0 {
		t.Error("expected mock provider's fixture assets to populate TotalAssets")
	}
	if final.Status == "" {
		t.Error("expected a non-empty terminal status")
	}
}

func TestEngineRunStrictModePartialResult(t *testing.T) {
	cfg := Config{
		AccountID:     "acct-1",
		ProjectID:     "proj-1",
		Scan:          internalconfig.DefaultScanConfig(),
		Risk:          internalconfig.DefaultRiskConfig(),
		SkipTelemetry: true,
		Headless:      true,
		StrictMode:    true,
	}

	eng, err := New(context.Background(), WithConfig(cfg))
	if err != nil {
		t.Fatalf("failed to initialize engine: %v", err)
	}

	final, err := eng.Run(context.Background())
	if final.Partial && err == nil {
		t.Error("StrictMode should surface ErrPartialResult when State.Partial is set")
	}
}
