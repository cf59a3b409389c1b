package threat

import (
	"context"
	"errors"
	"testing"

	"github.com/aegis-scan/aegis/pkg/config"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
)

func TestIngestEmptyInputShortCircuits(t *testing.T) {
	result := Ingest(context.Background(), llm.FailingClient(errors.New("should not be called")), nil, config.DefaultScanConfig(), nil)
	if len(result.Logs) != 0 || len(result.Metrics) != 0 {
		t.Fatalf("expected empty result for empty input, got %+v", result)
	}
}

func TestIngestParsesResponseIntoLogLines(t *testing.T) {
	client := llm.StaticClient(`[{"event_type":"failed-auth","source_ip":"203.0.113.5","details":"bad login"}]`, 10, 5)
	result := Ingest(context.Background(), client, nil, config.DefaultScanConfig(), []string{"Jan 1 Failed password for root"})

	if len(result.Logs) != 1 || !result.Logs[0].IsValid {
		t.Fatalf("expected one valid parsed log, got %+v", result.Logs)
	}
	if result.Logs[0].SourceIP != "203.0.113.5" {
		t.Errorf("expected source ip to carry through, got %q", result.Logs[0].SourceIP)
	}
	if len(result.Metrics) != 1 || result.Metrics[0].InputTokens != 10 {
		t.Errorf("expected one metrics record, got %+v", result.Metrics)
	}
}

func TestIngestFallsBackToInvalidOnLLMFailure(t *testing.T) {
	client := llm.FailingClient(errors.New("rate limited"))
	result := Ingest(context.Background(), client, nil, config.DefaultScanConfig(), []string{"line one", "line two"})

	if len(result.Logs) != 2 {
		t.Fatalf("expected fallback logs for every raw line, got %d", len(result.Logs))
	}
	for _, l := range result.Logs {
		if l.IsValid {
			t.Errorf("expected invalid fallback entries, got %+v", l)
		}
	}
}

func TestIngestPadsMissingEntriesAsInvalid(t *testing.T) {
	client := llm.StaticClient(`[{"event_type":"info"}]`, 5, 5)
	result := Ingest(context.Background(), client, nil, config.DefaultScanConfig(), []string{"line one", "line two"})

	if len(result.Logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(result.Logs))
	}
	if !result.Logs[0].IsValid || result.Logs[1].IsValid {
		t.Fatalf("expected first entry valid and second padded invalid, got %+v", result.Logs)
	}
}

func TestIngestBurstModeOffsetsChunkIndices(t *testing.T) {
	cfg := config.DefaultScanConfig()
	cfg.BurstThreshold = 3
	cfg.ChunkSize = 2

	client := llm.NewMockClient(func(ctx context.Context, model string, req llm.Request) (llm.Response, error) {
		return llm.Response{Content: "[]"}, nil
	})

	rawLogs := make([]string, 5)
	for i := range rawLogs {
		rawLogs[i] = "line"
	}

	result := Ingest(context.Background(), client, nil, cfg, rawLogs)
	if len(result.Logs) != 5 {
		t.Fatalf("expected 5 logs across chunks, got %d", len(result.Logs))
	}
	seen := map[int]bool{}
	for _, l := range result.Logs {
		if seen[l.Index] {
			t.Fatalf("duplicate index %d across chunks", l.Index)
		}
		seen[l.Index] = true
	}
	if len(result.Metrics) != 3 {
		t.Fatalf("expected one metrics record per chunk (3 chunks of size 2), got %d", len(result.Metrics))
	}
}

func TestStripCodeFenceHandlesFencedJSON(t *testing.T) {
	got := stripCodeFence("```json\n[1,2,3]\n```")
	if got != "[1,2,3]" {
		t.Errorf("got %q", got)
	}
}
