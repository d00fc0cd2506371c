// Package typing tracks who is typing. Peers never send an explicit stop
// event, so each peer's indicator decays on a single-shot timer that every
// fresh TYPING notice re-arms. The local side is the mirror image: sending
// our own notice is throttled so continuous input does not flood the
// transport.
package typing

import (
	"sort"
	"sync"
	"time"
)

// DefaultHold is how long a remote peer's indicator stays lit after their
// last TYPING notice.
const DefaultHold = 1200 * time.Millisecond

// DefaultDebounce is the local resend-suppression window.
const DefaultDebounce = 800 * time.Millisecond

type entry struct {
	timer    *time.Timer
	deadline time.Time
}

// Indicator holds the per-peer typing state. At most one live timer exists
// per peer key at any instant; a second timer would race the first and make
// the indicator flicker.
type Indicator struct {
	mu     sync.Mutex
	hold   time.Duration
	timers map[string]*entry

	// onChange fires outside of any user call path when a peer starts or
	// stops typing. May be nil.
	onChange func(key string, typing bool)

	now func() time.Time
}

// NewIndicator creates an indicator with the given hold (DefaultHold when
// zero). onChange, if non-nil, is invoked on every start/stop transition.
func NewIndicator(hold time.Duration, onChange func(key string, typing bool)) *Indicator {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Indicator{
		hold:     hold,
		timers:   make(map[string]*entry),
		onChange: onChange,
		now:      time.Now,
	}
}

// Touch records a TYPING notice from the peer. Idempotent while already
// typing: the existing timer is re-armed, never duplicated.
func (i *Indicator) Touch(key string) {
	if key == "" {
		return
	}
	i.mu.Lock()
	deadline := i.now().Add(i.hold)
	if e, ok := i.timers[key]; ok {
		e.deadline = deadline
		e.timer.Reset(i.hold)
		i.mu.Unlock()
		return
	}
	e := &entry{deadline: deadline}
	e.timer = time.AfterFunc(i.hold, func() { i.expire(key) })
	i.timers[key] = e
	i.mu.Unlock()

	if i.onChange != nil {
		i.onChange(key, true)
	}
}

// expire flips the peer back to idle unless a Touch re-armed the entry while
// this callback was waiting on the lock.
func (i *Indicator) expire(key string) {
	i.mu.Lock()
	e, ok := i.timers[key]
	if !ok {
		i.mu.Unlock()
		return
	}
	if remaining := e.deadline.Sub(i.now()); remaining > 0 {
		e.timer.Reset(remaining)
		i.mu.Unlock()
		return
	}
	delete(i.timers, key)
	i.mu.Unlock()

	if i.onChange != nil {
		i.onChange(key, false)
	}
}

// Typing reports whether the peer is currently typing.
func (i *Indicator) Typing(key string) bool {
	i.mu.Lock()
	_, ok := i.timers[key]
	i.mu.Unlock()
	return ok
}

// Peers returns all currently-typing peer keys, sorted.
func (i *Indicator) Peers() []string {
	i.mu.Lock()
	out := make([]string, 0, len(i.timers))
	for key := range i.timers {
		out = append(out, key)
	}
	i.mu.Unlock()
	sort.Strings(out)
	return out
}

// Stop clears the peer's indicator immediately. A finished message arriving
// from the peer supersedes any pending decay.
func (i *Indicator) Stop(key string) {
	i.mu.Lock()
	e, ok := i.timers[key]
	if ok {
		e.timer.Stop()
		delete(i.timers, key)
	}
	i.mu.Unlock()

	if ok && i.onChange != nil {
		i.onChange(key, false)
	}
}

// StopAll cancels every timer and clears all state. Called on disconnect so
// no timer leaks across a session boundary. Silent: no per-peer onChange
// storm for a teardown.
func (i *Indicator) StopAll() {
	i.mu.Lock()
	for key, e := range i.timers {
		e.timer.Stop()
		delete(i.timers, key)
	}
	i.mu.Unlock()
}

// SetHold adjusts the decay duration for future touches.
func (i *Indicator) SetHold(hold time.Duration) {
	if hold <= 0 {
		return
	}
	i.mu.Lock()
	i.hold = hold
	i.mu.Unlock()
}

// timerCount is test support: the single-timer invariant made countable.
func (i *Indicator) timerCount() int {
	i.mu.Lock()
	n := len(i.timers)
	i.mu.Unlock()
	return n
}

// Throttle suppresses resending the local TYPING notice while input keeps
// arriving inside the debounce window. Every keystroke extends the window
// whether or not it sends.
type Throttle struct {
	mu            sync.Mutex
	debounce      time.Duration
	suppressUntil time.Time

	now func() time.Time
}

// NewThrottle creates a throttle (DefaultDebounce when zero).
func NewThrottle(debounce time.Duration) *Throttle {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Throttle{debounce: debounce, now: time.Now}
}

// Keystroke reports whether a TYPING notice should be sent for this input
// event, and re-arms the suppression window either way.
func (t *Throttle) Keystroke() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	send := !now.Before(t.suppressUntil)
	t.suppressUntil = now.Add(t.debounce)
	return send
}

// Reset clears the suppression window (used on disconnect).
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.suppressUntil = time.Time{}
	t.mu.Unlock()
}

// SetDebounce adjusts the suppression window for future keystrokes.
func (t *Throttle) SetDebounce(debounce time.Duration) {
	if debounce <= 0 {
		return
	}
	t.mu.Lock()
	t.debounce = debounce
	t.mu.Unlock()
}
