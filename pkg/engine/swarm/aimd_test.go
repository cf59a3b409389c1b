package swarm

import (
	"testing"
	"time"
)

func TestAIMDClampsToBounds(t *testing.T) {
	a := NewAIMD(100, 2, 16)
	if got := a.GetConcurrency(); got != 16 {
		t.Fatalf("start above max should clamp: got %d, want 16", got)
	}

	a = NewAIMD(0, 2, 16)
	if got := a.GetConcurrency(); got != 2 {
		t.Fatalf("start below min should clamp: got %d, want 2", got)
	}
}

func TestAIMDBacksOffOnThrottle(t *testing.T) {
	a := NewAIMD(16, 2, 64)
	a.lastChange = time.Now().Add(-time.Second)

	a.Feedback(5*time.Millisecond, true)
	if got := a.GetConcurrency(); got != 8 {
		t.Fatalf("throttle should halve concurrency: got %d, want 8", got)
	}
}

func TestAIMDNeverDropsBelowMinOnThrottle(t *testing.T) {
	a := NewAIMD(3, 2, 64)
	a.lastChange = time.Now().Add(-time.Second)

	a.Feedback(5*time.Millisecond, true)
	if got := a.GetConcurrency(); got != 2 {
		t.Fatalf("halving below min should clamp to min: got %d, want 2", got)
	}
}

func TestAIMDGrowsOnFastCalls(t *testing.T) {
	a := NewAIMD(2, 2, 64)
	a.lastChange = time.Now().Add(-time.Second)

	a.Feedback(1*time.Millisecond, false)
	if got := a.GetConcurrency(); got != 7 {
		t.Fatalf("fast call should grow by 5: got %d, want 7", got)
	}
}

func TestAIMDDebouncesRapidFeedback(t *testing.T) {
	a := NewAIMD(10, 2, 64)
	a.lastChange = time.Now()

	a.Feedback(1*time.Millisecond, false)
	if got := a.GetConcurrency(); got != 10 {
		t.Fatalf("feedback within debounce window must be ignored: got %d, want 10", got)
	}
}
