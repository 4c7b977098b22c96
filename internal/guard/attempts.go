package guard

import "sync"

// AttemptTracker counts automatic re-implementation attempts per issue.
// It exists to stop review/re-implement loops: the orchestrator checks
// the counter before triggering another cycle and resets it once a PR
// for the issue actually merges.
//
// State is held in memory only. A process restart silently resets all
// counters; that is an accepted limitation of the design.
type AttemptTracker struct {
	mu       sync.Mutex
	attempts map[int]int
}

// NewAttemptTracker creates an empty tracker.
func NewAttemptTracker() *AttemptTracker {
	return &AttemptTracker{attempts: make(map[int]int)}
}

// Check reports whether another re-implementation is allowed for the
// issue, along with the current attempt count. It never mutates state.
func (t *AttemptTracker) Check(issue int, maxAttempts int) (allowed bool, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	count = t.attempts[issue]
	return count < maxAttempts, count
}

// Increment bumps the attempt count for the issue and returns the new count.
func (t *AttemptTracker) Increment(issue int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[issue]++
	return t.attempts[issue]
}

// Reset removes the counter for the issue entirely. Resetting an issue
// that has no counter is a no-op.
func (t *AttemptTracker) Reset(issue int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, issue)
}
