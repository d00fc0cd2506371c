// Package presence infers who is active from observed traffic. The transport
// has no presence protocol — no heartbeat, no disconnect notice — so a peer
// is "active" exactly when something attributable to them was seen within the
// inactivity window.
package presence

import (
	"sort"
	"sync"
	"time"
)

// DefaultWindow is how long a silent peer stays active after their last
// observed event.
const DefaultWindow = 30 * time.Second

// DefaultSweepInterval is how often the session recomputes the active set.
const DefaultSweepInterval = 10 * time.Second

// Tracker maintains last-activity instants per peer and the derived active
// set. Timestamps are never deleted; peers age out of the derived set only,
// so reactivation is just a new timestamp.
type Tracker struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time
	active   map[string]struct{}
	window   time.Duration

	now func() time.Time // swapped in tests
}

// NewTracker creates a tracker with the given inactivity window
// (DefaultWindow when zero).
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		lastSeen: make(map[string]time.Time),
		active:   make(map[string]struct{}),
		window:   window,
		now:      time.Now,
	}
}

// MarkActive records activity for the key at the current instant and adds it
// to the active set immediately — the set must not wait for the next sweep
// to show a peer that just spoke. Empty keys are ignored.
func (t *Tracker) MarkActive(key string) {
	if key == "" {
		return
	}
	t.mu.Lock()
	t.lastSeen[key] = t.now()
	t.active[key] = struct{}{}
	t.mu.Unlock()
}

// Sweep recomputes the active set as a pure function of the recorded
// timestamps and now. Always comparing against the latest timestamp means a
// key re-marked since the previous sweep can never be dropped by mistake.
// Returns true when the set changed.
func (t *Tracker) Sweep(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]struct{}, len(t.active))
	for key, seen := range t.lastSeen {
		if now.Sub(seen) <= t.window {
			next[key] = struct{}{}
		}
	}

	changed := len(next) != len(t.active)
	if !changed {
		for key := range next {
			if _, ok := t.active[key]; !ok {
				changed = true
				break
			}
		}
	}
	t.active = next
	return changed
}

// Active reports whether the key is currently in the active set.
func (t *Tracker) Active(key string) bool {
	t.mu.RLock()
	_, ok := t.active[key]
	t.mu.RUnlock()
	return ok
}

// ActivePeers returns the active set as a sorted snapshot.
func (t *Tracker) ActivePeers() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.active))
	for key := range t.active {
		out = append(out, key)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

// LastSeen returns the recorded last-activity instant for a key.
func (t *Tracker) LastSeen(key string) (time.Time, bool) {
	t.mu.RLock()
	ts, ok := t.lastSeen[key]
	t.mu.RUnlock()
	return ts, ok
}

// SetWindow adjusts the inactivity window; takes effect on the next sweep.
func (t *Tracker) SetWindow(window time.Duration) {
	if window <= 0 {
		return
	}
	t.mu.Lock()
	t.window = window
	t.mu.Unlock()
}
