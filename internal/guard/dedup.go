package guard

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long a (subject, kind) pair stays suppressed
// after a trigger. GitHub often delivers several webhook events for one
// logical action (e.g. "opened" plus "labeled" when an issue is created
// with labels); the window keeps those from launching duplicate agent runs.
const DefaultDedupWindow = 60 * time.Second

type dedupKey struct {
	subject int
	kind    string
}

// DedupCache suppresses repeated workflow triggers for the same
// (subject, workflow kind) pair within a fixed window.
//
// The window is a heuristic, not a correctness guarantee: two genuinely
// independent triggers inside the window are indistinguishable from a
// duplicate delivery and both get suppressed. That false-suppression
// risk is accepted in favour of not paying for duplicate agent runs.
//
// Like AttemptTracker, state is in-memory only and lost on restart.
type DedupCache struct {
	mu      sync.Mutex
	seen    map[dedupKey]time.Time
	window  time.Duration
	nowFunc func() time.Time
}

// NewDedupCache creates a cache with the given suppression window.
// A non-positive window falls back to DefaultDedupWindow.
func NewDedupCache(window time.Duration) *DedupCache {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &DedupCache{
		seen:    make(map[dedupKey]time.Time),
		window:  window,
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock. Tests use this to force window expiry.
func (c *DedupCache) SetNowFunc(fn func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFunc = fn
}

// ShouldTrigger reports whether a workflow of the given kind may run for
// the subject. The first call for a fresh (subject, kind) pair records
// the trigger time and returns true; subsequent calls within the window
// return false without refreshing the timestamp. Stale entries are swept
// on every call rather than by a background timer.
func (c *DedupCache) ShouldTrigger(subject int, kind string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()

	// Sweep expired entries.
	for key, at := range c.seen {
		if now.Sub(at) > c.window {
			delete(c.seen, key)
		}
	}

	key := dedupKey{subject: subject, kind: kind}
	if at, ok := c.seen[key]; ok && now.Sub(at) < c.window {
		return false
	}

	c.seen[key] = now
	return true
}

// Window returns the configured suppression window.
func (c *DedupCache) Window() time.Duration {
	return c.window
}
