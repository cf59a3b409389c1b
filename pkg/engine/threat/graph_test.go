package threat

import (
	"context"
	"testing"

	"github.com/aegis-scan/aegis/pkg/config"
	"github.com/aegis-scan/aegis/pkg/engine/events"
	"github.com/aegis-scan/aegis/pkg/engine/scangraph"
	"github.com/aegis-scan/aegis/pkg/engine/swarm"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/scan"
)

func newTestRuntime(client llm.Client) *scangraph.Runtime {
	rt := scangraph.New(swarm.NewEngine(), events.NopSink{})
	BuildGraph(rt, client, config.DefaultScanConfig(), nil, nil)
	rt.SetStart(NodeIngest)
	return rt
}

func TestGraphNoRawLogsShortCircuitsToEmptyReport(t *testing.T) {
	client := llm.NewMockClient(func(ctx context.Context, model string, req llm.Request) (llm.Response, error) {
		return llm.Response{Content: "[]"}, nil
	})
	rt := newTestRuntime(client)

	final, err := rt.Run(context.Background(), scan.State{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Report == nil || final.Report.ExecutiveSummary != "No threats detected in the analyzed logs." {
		t.Fatalf("expected empty report, got %+v", final.Report)
	}
}

func TestGraphParsedButNoThreatsGoesStraightToReport(t *testing.T) {
	calls := 0
	client := llm.NewMockClient(func(ctx context.Context, model string, req llm.Request) (llm.Response, error) {
		calls++
		if model == ModelIngest {
			return llm.Response{Content: `[{"event_type":"info"}]`}, nil
		}
		return llm.Response{Content: "[]"}, nil
	})
	rt := newTestRuntime(client)

	final, err := rt.Run(context.Background(), scan.State{RawLogLines: []string{"harmless request"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(final.Threats) != 0 || final.Report == nil {
		t.Fatalf("expected no threats and a report, got threats=%+v report=%+v", final.Threats, final.Report)
	}
}

func TestGraphSkipsIngestWhenLogsArePreParsed(t *testing.T) {
	ingestCalls := 0
	client := llm.NewMockClient(func(ctx context.Context, model string, req llm.Request) (llm.Response, error) {
		if model == ModelIngest {
			ingestCalls++
		}
		return llm.Response{Content: "[]"}, nil
	})
	rt := newTestRuntime(client)

	preParsed := []scan.LogLine{
		{Raw: "harmless request", IsValid: true},
	}
	final, err := rt.Run(context.Background(), scan.State{ParsedLogs: preParsed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ingestCalls != 0 {
		t.Errorf("expected the LLM-backed ingest to be skipped, but it was called %d times", ingestCalls)
	}
	if len(final.ParsedLogs) != 1 {
		t.Fatalf("expected the pre-parsed logs to pass through unchanged, got %+v", final.ParsedLogs)
	}
}

func TestGraphFullPipelineRunsEveryStage(t *testing.T) {
	client := llm.NewMockClient(func(ctx context.Context, model string, req llm.Request) (llm.Response, error) {
		switch req.System {
		case ingestSystemPrompt:
			return llm.Response{Content: `[{"event_type":"failed-auth","source_ip":"203.0.113.5"},{"event_type":"failed-auth","source_ip":"203.0.113.5"},{"event_type":"failed-auth","source_ip":"203.0.113.5"},{"event_type":"failed-auth","source_ip":"203.0.113.5"},{"event_type":"failed-auth","source_ip":"203.0.113.5"}]`}, nil
		case classifySystemPrompt:
			return llm.Response{Content: `[{"threat_id":"RULE-BRUTE-203_0_113_5","risk":"high","risk_score":7.0,"remediation_priority":1}]`}, nil
		case reportSystemPrompt:
			return llm.Response{Content: `{"summary":"brute force detected","action_plan":[{"action":"block ip","urgency":"immediate","owner":"Security Team"}]}`}, nil
		default:
			return llm.Response{Content: "[]"}, nil
		}
	})
	rt := newTestRuntime(client)

	rawLogs := make([]string, 5)
	for i := range rawLogs {
		rawLogs[i] = "Failed password for root"
	}

	final, err := rt.Run(context.Background(), scan.State{RawLogLines: rawLogs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(final.ClassifiedThreats) != 1 {
		t.Fatalf("expected one classified threat, got %+v", final.ClassifiedThreats)
	}
	if final.Report == nil || final.Report.ExecutiveSummary != "brute force detected" {
		t.Fatalf("expected report from LLM response, got %+v", final.Report)
	}
	if len(final.AgentMetrics) == 0 {
		t.Errorf("expected agent metrics recorded across stages")
	}
}
