// Package events defines the progress-event channel emitted by the scan
// graph runtime, consumed by the CLI's TUI and any external notifier.
package events

import "time"

// Kind classifies an emitted Event.
type Kind string

const (
	KindStarting          Kind = "starting"
	KindDiscoveryComplete Kind = "discovery_complete"
	KindRouting           Kind = "routing"
	KindScanning          Kind = "scanning"
	KindAggregating       Kind = "aggregating"
	KindThreatStage       Kind = "threat_stage"
	KindComplete          Kind = "complete"
	KindError             Kind = "error"

	// internal runtime-only kinds, not part of the public progress
	// vocabulary above but useful for TUI and log correlation.
	KindStageStart    Kind = "stage-start"
	KindStageComplete Kind = "stage-complete"
	KindProgress      Kind = "progress"
)

// Event is one progress notification, emitted best-effort as the scan
// graph runtime transitions between nodes.
type Event struct {
	Kind      Kind
	Node      string
	Message   string
	Payload   map[string]interface{}
	Timestamp time.Time
}

// Sink receives Events emitted by the scan graph runtime. Implementations
// must not block the caller for long: Emit is called from the goroutine
// running Runtime.Run, and a slow sink stalls the whole scan.
type Sink interface {
	Emit(e Event)
}

// bufferedSink is a bounded, lossy channel-backed Sink: progress-kind
// events evict the oldest buffered event when the channel is full rather
// than blocking the graph or dropping the newest status; stage-complete
// and terminal events get one blocking retry instead since losing those
// breaks the TUI's notion of scan state.
type bufferedSink struct {
	ch chan Event
}

// NewBufferedSink creates a Sink with the given buffer depth, readable
// from Events().
func NewBufferedSink(depth int) (Sink, <-chan Event) {
	if depth < 1 {
		depth = 1
	}
	s := &bufferedSink{ch: make(chan Event, depth)}
	return s, s.ch
}

func (s *bufferedSink) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	select {
	case s.ch <- e:
		return
	default:
	}

	if isDropSensitive(e.Kind) {
		select {
		case s.ch <- e:
		case <-time.After(50 * time.Millisecond):
		}
		return
	}

	// Buffer is full and this event is lossy: evict the oldest queued
	// event to admit the newest one, so a slow consumer still sees
	// current progress instead of stalling on stale status.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- e:
	default:
		// another goroutine raced us and refilled the slot; drop e.
	}
}

func isDropSensitive(k Kind) bool {
	switch k {
	case KindComplete, KindError, KindStageComplete:
		return true
	default:
		return false
	}
}

// NopSink discards every event; used by callers that don't want progress
// reporting (e.g. tests, --quiet mode).
type NopSink struct{}

func (NopSink) Emit(Event) {}
