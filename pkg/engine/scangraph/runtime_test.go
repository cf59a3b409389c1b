package scangraph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aegis-scan/aegis/pkg/engine/swarm"
	"github.com/aegis-scan/aegis/pkg/scan"
)

func intPtr(n int) *int { return &n }

func TestRunSequentialMergesOverwriteAndAppend(t *testing.T) {
	r := New(swarm.NewEngineWithConcurrency(2), nil)

	r.AddNode("a", func(ctx context.Context, s scan.State) (StateDelta, error) {
		return StateDelta{
			Assets:           []scan.Asset{{Name: "fw-1"}},
			AppendScanIssues: []scan.Finding{{RuleCode: "gcp_002"}},
			Status:           "discovering",
		}, nil
	})
	r.AddEdge("a", func(s scan.State) Edge { return Edge{Next: "b"} })

	r.AddNode("b", func(ctx context.Context, s scan.State) (StateDelta, error) {
		return StateDelta{
			AppendScanIssues: []scan.Finding{{RuleCode: "gcp_004"}},
			Status:           "scanning",
		}, nil
	})
	r.AddEdge("b", func(s scan.State) Edge { return Edge{Terminal: true} })

	r.SetStart("a")

	final, err := r.Run(context.Background(), scan.State{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(final.Assets) != 1 || final.Assets[0].Name != "fw-1" {
		t.Fatalf("overwrite field not merged: %+v", final.Assets)
	}
	if len(final.ScanIssues) != 2 {
		t.Fatalf("append field should accumulate across nodes, got %d", len(final.ScanIssues))
	}
	if final.Status != "scanning" {
		t.Fatalf("status should be last-write-wins, got %q", final.Status)
	}
	if final.EndedAt.IsZero() {
		t.Fatalf("terminal edge should stamp EndedAt")
	}
}

func TestRunNodeErrorMarksPartial(t *testing.T) {
	r := New(swarm.NewEngineWithConcurrency(1), nil)
	boom := errors.New("discovery unreachable")

	r.AddNode("a", func(ctx context.Context, s scan.State) (StateDelta, error) {
		return StateDelta{}, boom
	})
	r.SetStart("a")

	final, err := r.Run(context.Background(), scan.State{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
	if !final.Partial {
		t.Fatalf("state should be marked partial on node error")
	}
}

func TestRunNodePanicIsRecovered(t *testing.T) {
	r := New(swarm.NewEngineWithConcurrency(1), nil)

	r.AddNode("a", func(ctx context.Context, s scan.State) (StateDelta, error) {
		panic("unexpected nil dereference")
	})
	r.SetStart("a")

	_, err := r.Run(context.Background(), scan.State{})
	if err == nil {
		t.Fatalf("expected panic to surface as an error")
	}
}

func TestRunDispatchFansOutAndJoins(t *testing.T) {
	r := New(swarm.NewEngineWithConcurrency(4), nil)

	r.AddNode("dispatch", func(ctx context.Context, s scan.State) (StateDelta, error) {
		return StateDelta{Status: "dispatching"}, nil
	})
	r.AddEdge("dispatch", func(s scan.State) Edge {
		return Edge{
			Dispatches: []DispatchRecord{
				{Node: "chunk", SubState: scan.State{AssetsScanned: 0}},
				{Node: "chunk", SubState: scan.State{AssetsScanned: 1}},
				{Node: "chunk", SubState: scan.State{AssetsScanned: 2}},
			},
			JoinNode: "join",
		}
	})
	r.AddNode("chunk", func(ctx context.Context, sub scan.State) (StateDelta, error) {
		return StateDelta{AppendParsedLogs: []scan.LogLine{{Index: sub.AssetsScanned}}}, nil
	})
	r.AddNode("join", func(ctx context.Context, s scan.State) (StateDelta, error) {
		return StateDelta{Status: "joined"}, nil
	})
	r.AddEdge("join", func(s scan.State) Edge { return Edge{Terminal: true} })
	r.SetStart("dispatch")

	final, err := r.Run(context.Background(), scan.State{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(final.ParsedLogs) != 3 {
		t.Fatalf("expected 3 merged chunk deltas, got %d", len(final.ParsedLogs))
	}
	if final.Status != "joined" {
		t.Fatalf("join node should run after dispatch, got status %q", final.Status)
	}
}

func TestRunRespectsContextDeadline(t *testing.T) {
	r := New(swarm.NewEngineWithConcurrency(1), nil)
	r.AddNode("slow", func(ctx context.Context, s scan.State) (StateDelta, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return StateDelta{}, nil
		case <-ctx.Done():
			return StateDelta{}, ctx.Err()
		}
	})
	r.SetStart("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	final, err := r.Run(ctx, scan.State{})
	if err == nil {
		t.Fatalf("expected a deadline error")
	}
	if !final.Partial {
		t.Fatalf("state should be marked partial on deadline exceeded")
	}
}

var _ = intPtr
