// Package scangraph is the graph execution runtime shared by the outer
// scan graph (Discovery -> Router -> Dispatch -> Aggregate -> Threat
// Pipeline -> Finalize) and the inner threat graph (Ingest -> Detect ->
// Validate -> Classify -> Report). Run owns the ScanState and applies
// StateDeltas serially on the goroutine that calls it; dispatched nodes
// run in parallel but their deltas are merged only after all of them
// finish.
package scangraph

import (
	"context"
	"fmt"
	"time"

	"github.com/aegis-scan/aegis/pkg/engine/events"
	"github.com/aegis-scan/aegis/pkg/engine/swarm"
	"github.com/aegis-scan/aegis/pkg/scan"
)

// NodeFunc runs one graph node against a read-only projection of the
// current state and returns a StateDelta to be merged in by the runtime.
type NodeFunc func(ctx context.Context, s scan.State) (StateDelta, error)

// DispatchRecord describes one sub-invocation of a node, used by fan-out
// edges (the inner graph's burst-mode ingest chunking). SubState carries
// only the fields that chunk needs; the runtime merges each chunk's
// resulting delta back through the same reducers as a sequential step.
type DispatchRecord struct {
	Node     string
	SubState scan.State
}

// Edge is the routing decision returned after a node runs. Exactly one of
// Next, Dispatches, or Terminal applies.
type Edge struct {
	Next       string           // sequential continuation
	Dispatches []DispatchRecord // parallel fan-out, joined at JoinNode
	JoinNode   string
	Terminal   bool
}

// EdgeFunc decides the next edge given the state as it stands right after
// a node's delta has been merged.
type EdgeFunc func(s scan.State) Edge

// StateDelta is the concrete, non-reflective mirror of scan.State's
// field groups. Pointer fields use overwrite-if-non-nil semantics;
// Append-prefixed slice fields are concatenated onto the existing slice.
// A node leaves a field zero-valued/nil to mean "I did not touch this."
type StateDelta struct {
	Assets           []scan.Asset
	InitialFindings  []scan.Finding
	RawLogLines      []string
	ScanLog          *scan.ScanLog
	CredentialProbes []scan.CredentialServiceProbe

	PublicAssets  []scan.Asset
	PrivateAssets []scan.Asset

	AppendScanIssues    []scan.Finding
	AppendLogLines      []string
	AppendScannedAssets []scan.ScannedAssetRecord

	ScanType         scan.ScanType
	PublicScanCount  *int
	PrivateScanCount *int

	CorrelatedFindings []scan.Finding
	ActiveExploitCount *int
	Evidence           []scan.EvidenceSample

	ParsedLogs          []scan.LogLine
	AppendParsedLogs    []scan.LogLine
	Threats             []scan.Threat
	AppendThreats       []scan.Threat
	ClassifiedThreats   []scan.ClassifiedThreat
	Report              *scan.IncidentReport
	AppendAgentMetrics  []scan.AgentMetrics

	Status        string
	TotalAssets   *int
	AssetsScanned *int

	Err     error
	Partial *bool
}

// mergeInto applies d onto s in place, following the overwrite/append
// reducer rules documented on scan.State.
func (d StateDelta) mergeInto(s *scan.State) {
	if d.Assets != nil {
		s.Assets = d.Assets
	}
	if d.InitialFindings != nil {
		s.InitialFindings = d.InitialFindings
	}
	if d.RawLogLines != nil {
		s.RawLogLines = d.RawLogLines
	}
	if d.ScanLog != nil {
		s.ScanLog = *d.ScanLog
	}
	if d.CredentialProbes != nil {
		s.CredentialProbes = d.CredentialProbes
	}

	if d.PublicAssets != nil {
		s.PublicAssets = d.PublicAssets
	}
	if d.PrivateAssets != nil {
		s.PrivateAssets = d.PrivateAssets
	}

	if d.AppendScanIssues != nil {
		s.ScanIssues = append(s.ScanIssues, d.AppendScanIssues...)
	}
	if d.AppendLogLines != nil {
		s.LogLines = append(s.LogLines, d.AppendLogLines...)
	}
	if d.AppendScannedAssets != nil {
		s.ScannedAssets = append(s.ScannedAssets, d.AppendScannedAssets...)
	}

	if d.ScanType != "" {
		s.ScanType = d.ScanType
	}
	if d.PublicScanCount != nil {
		s.PublicScanCount = *d.PublicScanCount
	}
	if d.PrivateScanCount != nil {
		s.PrivateScanCount = *d.PrivateScanCount
	}

	if d.CorrelatedFindings != nil {
		s.CorrelatedFindings = d.CorrelatedFindings
	}
	if d.ActiveExploitCount != nil {
		s.ActiveExploitCount = *d.ActiveExploitCount
	}
	if d.Evidence != nil {
		s.Evidence = d.Evidence
	}

	if d.ParsedLogs != nil {
		s.ParsedLogs = d.ParsedLogs
	}
	if d.AppendParsedLogs != nil {
		s.ParsedLogs = append(s.ParsedLogs, d.AppendParsedLogs...)
	}
	if d.Threats != nil {
		s.Threats = d.Threats
	}
	if d.AppendThreats != nil {
		s.Threats = append(s.Threats, d.AppendThreats...)
	}
	if d.ClassifiedThreats != nil {
		s.ClassifiedThreats = d.ClassifiedThreats
	}
	if d.Report != nil {
		s.Report = d.Report
	}
	if d.AppendAgentMetrics != nil {
		s.AgentMetrics = append(s.AgentMetrics, d.AppendAgentMetrics...)
	}

	if d.Status != "" {
		s.Status = d.Status
	}
	if d.TotalAssets != nil {
		s.TotalAssets = *d.TotalAssets
	}
	if d.AssetsScanned != nil {
		s.AssetsScanned = *d.AssetsScanned
	}

	if d.Err != nil {
		s.Err = d.Err
	}
	if d.Partial != nil {
		s.Partial = *d.Partial
	}
}

// Runtime executes a named graph of nodes against a single scan.State,
// one node at a time. Run is the only writer of that state: it merges
// each node's delta itself, on the caller's goroutine.
type Runtime struct {
	nodes map[string]NodeFunc
	edges map[string]EdgeFunc
	start string
	pool  *swarm.Engine
	sink  events.Sink

	opChan chan func(*scan.State)
}

// New creates an empty Runtime. pool is used by nodes that want bounded
// parallel dispatch (via Pool()); sink receives progress events. A nil
// sink is replaced with events.NopSink.
func New(pool *swarm.Engine, sink events.Sink) *Runtime {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Runtime{
		nodes: make(map[string]NodeFunc),
		edges: make(map[string]EdgeFunc),
		pool:  pool,
		sink:  sink,
	}
}

// Pool exposes the runtime's worker pool to node implementations that
// need bounded-concurrency fan-out (e.g. per-asset dispatch).
func (r *Runtime) Pool() *swarm.Engine { return r.pool }

// Sink exposes the runtime's event sink to node implementations that
// want to emit their own sub-progress (e.g. per-chunk ingest counters).
func (r *Runtime) Sink() events.Sink { return r.sink }

// AddNode registers a node function under name.
func (r *Runtime) AddNode(name string, fn NodeFunc) {
	r.nodes[name] = fn
}

// AddEdge registers the routing function run immediately after name.
func (r *Runtime) AddEdge(name string, fn EdgeFunc) {
	r.edges[name] = fn
}

// SetStart designates the entry node.
func (r *Runtime) SetStart(name string) {
	r.start = name
}

// Run drives the graph from the start node to a Terminal edge (or until
// ctx is cancelled / its deadline expires), returning the final state.
// On cancellation, Partial is set true and Err is ctx.Err(); the state as
// it stood at the last successfully merged node is returned rather than
// a zero value.
func (r *Runtime) Run(ctx context.Context, initial scan.State) (scan.State, error) {
	state := initial
	if state.StartedAt.IsZero() {
		state.StartedAt = time.Now()
	}

	current := r.start
	if current == "" {
		return state, fmt.Errorf("scangraph: no start node configured")
	}

	r.sink.Emit(events.Event{Kind: events.KindStarting, Node: current})

	for {
		select {
		case <-ctx.Done():
			state.Partial = true
			state.Err = ctx.Err()
			r.sink.Emit(events.Event{Kind: events.KindError, Node: current, Message: ctx.Err().Error()})
			return state, ctx.Err()
		default:
		}

		delta, err := r.runNode(ctx, current, state)
		if err != nil {
			state.Partial = true
			state.Err = err
			r.sink.Emit(events.Event{Kind: events.KindError, Node: current, Message: err.Error()})
			return state, err
		}
		delta.mergeInto(&state)

		prevStatus := state.Status
		edgeFn, ok := r.edges[current]
		if !ok {
			state.EndedAt = time.Now()
			r.sink.Emit(events.Event{Kind: events.KindComplete, Node: current})
			return state, nil
		}
		edge := edgeFn(state)

		if state.Status != "" && state.Status != prevStatus {
			r.sink.Emit(events.Event{Kind: events.KindProgress, Node: current, Message: state.Status})
		}

		switch {
		case edge.Terminal:
			state.EndedAt = time.Now()
			r.sink.Emit(events.Event{Kind: events.KindComplete, Node: current})
			return state, nil
		case len(edge.Dispatches) > 0:
			state, err = r.runDispatch(ctx, edge, state)
			if err != nil {
				state.Partial = true
				state.Err = err
				r.sink.Emit(events.Event{Kind: events.KindError, Node: edge.JoinNode, Message: err.Error()})
				return state, err
			}
			current = edge.JoinNode
		case edge.Next != "":
			current = edge.Next
		default:
			return state, fmt.Errorf("scangraph: node %q produced an edge with no destination", current)
		}
	}
}

func (r *Runtime) runNode(ctx context.Context, name string, s scan.State) (delta StateDelta, err error) {
	fn, ok := r.nodes[name]
	if !ok {
		return StateDelta{}, fmt.Errorf("scangraph: unknown node %q", name)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scangraph: node %q panicked: %v", name, p)
		}
	}()

	r.sink.Emit(events.Event{Kind: events.KindStageStart, Node: name})
	delta, err = fn(ctx, s)
	if err == nil {
		r.sink.Emit(events.Event{Kind: events.KindStageComplete, Node: name})
	}
	return delta, err
}

// runDispatch fans each DispatchRecord's node out onto the pool (bounded
// concurrency, AIMD-governed) and folds every resulting delta into state
// before control passes to JoinNode. Dispatch order is not guaranteed,
// but the caller has already baked any required ordering (e.g. burst-mode
// chunk index offsets) into each SubState.
func (r *Runtime) runDispatch(ctx context.Context, edge Edge, state scan.State) (scan.State, error) {
	deltas := make([]StateDelta, len(edge.Dispatches))
	errs := make([]error, len(edge.Dispatches))

	tasks := make([]swarm.Task, len(edge.Dispatches))
	for i, d := range edge.Dispatches {
		i, d := i, d
		tasks[i] = func(ctx context.Context) error {
			fn, ok := r.nodes[d.Node]
			if !ok {
				errs[i] = fmt.Errorf("scangraph: unknown dispatch node %q", d.Node)
				return errs[i]
			}
			delta, err := fn(ctx, d.SubState)
			deltas[i] = delta
			errs[i] = err
			return err
		}
	}

	pool := r.pool
	if pool == nil {
		pool = swarm.NewEngine()
	}
	pool.Dispatch(ctx, tasks)

	for i, err := range errs {
		if err != nil {
			return state, fmt.Errorf("scangraph: dispatch %q failed: %w", edge.Dispatches[i].Node, err)
		}
	}
	for _, d := range deltas {
		d.mergeInto(&state)
	}
	return state, nil
}
