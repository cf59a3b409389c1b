// Package tui is the interactive scan-progress view: a HUD driven by the
// engine's events.Sink while a scan is in flight, then a browsable list
// of the resulting findings once it completes. Adapted from the
// teacher's waste-resource browser, which polled a live asset graph
// directly instead of an event channel — this engine's scangraph.Runtime
// hands back ScanState only on completion, so the live portion here
// tracks stage/status events and the review portion tracks the final
// scan.State.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aegis-scan/aegis/pkg/engine/events"
	"github.com/aegis-scan/aegis/pkg/scan"
)

type ViewState int

const (
	ViewStateList ViewState = iota
	ViewStateDetail
)

// Result is what the background scan goroutine sends back once
// engine.Engine.Run returns.
type Result struct {
	State scan.State
	Err   error
}

type Model struct {
	spinner  spinner.Model
	progress progress.Model

	eventsCh <-chan events.Event
	doneCh   <-chan Result

	accountID string

	state    ViewState
	scanning bool
	quitting bool
	err      error
	width    int
	height   int

	stage   string
	message string

	findings []scan.Finding
	cursor   int

	statusMsg  string
	statusTime time.Time

	tickCount int

	result    Result
	hasResult bool
}

// Result returns the terminal scan Result once the model has received
// it, for a caller that needs more than the rendered view after
// tea.Program.Run returns (exit codes, strict-mode partial checks).
func (m Model) Result() (Result, bool) {
	return m.result, m.hasResult
}

type tickMsg time.Time

// NewModel constructs the Model for a scan already dispatched to a
// background goroutine: eventsCh carries live progress, doneCh carries
// the single terminal Result.
func NewModel(accountID string, eventsCh <-chan events.Event, doneCh <-chan Result) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = special

	prog := progress.New(progress.WithGradient("#00FF99", "#00CCFF"))

	return Model{
		spinner:   s,
		progress:  prog,
		eventsCh:  eventsCh,
		doneCh:    doneCh,
		accountID: accountID,
		scanning:  true,
		state:     ViewStateList,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForEvent(m.eventsCh),
		waitForDone(m.doneCh),
		tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) }),
	)
}

type eventMsg events.Event
type doneMsg Result

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func waitForDone(ch <-chan Result) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return doneMsg(r)
	}
}
