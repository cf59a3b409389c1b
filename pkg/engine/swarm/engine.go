// Package swarm provides a bounded worker pool governed by an AIMD
// concurrency controller, used by the scan graph runtime to fan out
// per-asset dispatch and burst-mode log ingestion.
package swarm

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Task is a unit of dispatch work. A non-nil error is fed back into the
// AIMD controller as a latency/throttle observation but never aborts
// sibling tasks.
type Task func(ctx context.Context) error

// Stats holds runtime statistics for the engine.
type Stats struct {
	Concurrency    int
	TasksCompleted int64
	TasksFailed    int64
}

// Engine runs batches of Tasks with a concurrency ceiling that grows and
// shrinks via AIMD feedback.
type Engine struct {
	aimd *AIMD
	mu   sync.Mutex
	stats Stats
}

// NewEngine creates an Engine sized to the number of available cores.
func NewEngine() *Engine {
	cores := runtime.GOMAXPROCS(0)
	if cores < 1 {
		cores = 1
	}
	return &Engine{aimd: NewAIMD(cores, 1, cores*8)}
}

// NewEngineWithConcurrency creates an Engine with a fixed starting
// concurrency (still AIMD-governed thereafter).
func NewEngineWithConcurrency(n int) *Engine {
	if n < 1 {
		n = 1
	}
	return &Engine{aimd: NewAIMD(n, 1, n*8)}
}

// Dispatch runs tasks with bounded concurrency and waits for all of them
// to finish (or for ctx to be cancelled). It returns one error per task,
// positionally aligned with the input slice; a cancelled context yields
// context.Canceled for any task that had not started.
func (e *Engine) Dispatch(ctx context.Context, tasks []Task) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	sem := make(chan struct{}, e.aimd.GetConcurrency())
	var wg sync.WaitGroup

	for i, t := range tasks {
		select {
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t Task) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			err := t(ctx)
			latency := time.Since(start)

			errs[i] = err
			e.aimd.Feedback(latency, isThrottled(err))

			e.mu.Lock()
			e.stats.TasksCompleted++
			if err != nil {
				e.stats.TasksFailed++
			}
			e.mu.Unlock()
		}(i, t)
	}

	wg.Wait()
	return errs
}

// GetStats returns a snapshot of current engine statistics.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Concurrency = e.aimd.GetConcurrency()
	return s
}

// isThrottled recognizes the common shapes of a provider rate-limit
// error so the AIMD controller can back off instead of growing blindly.
func isThrottled(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"throttl", "rate limit", "rate_limit", "quota exceeded", "429", "too many requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
