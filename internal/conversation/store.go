// Package conversation holds the message history: one shared public thread
// and one private thread per peer. Threads are append-only and live for the
// whole session; reads are deduplicated snapshots so a replayed envelope in
// the stored sequence can never leak into a view.
package conversation

import (
	"sort"
	"sync"

	"github.com/Richie010/vshareu/internal/envelope"
)

// Store is safe for concurrent use. Appends come from the session dispatch
// path; snapshots may be taken from anywhere.
type Store struct {
	mu      sync.RWMutex
	public  []envelope.Envelope
	private map[string][]envelope.Envelope
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{private: make(map[string][]envelope.Envelope)}
}

// EnsureThread creates an empty private thread for the key if none exists,
// so a peer becomes visible before any message is exchanged. Reports whether
// the thread was created. Empty keys are ignored.
func (s *Store) EnsureThread(key string) bool {
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.private[key]; ok {
		return false
	}
	s.private[key] = nil
	return true
}

// AppendPublic appends to the shared thread.
func (s *Store) AppendPublic(e envelope.Envelope) {
	s.mu.Lock()
	s.public = append(s.public, e)
	s.mu.Unlock()
}

// AppendPrivate appends to the thread keyed by the non-self party, creating
// the thread if needed.
func (s *Store) AppendPrivate(key string, e envelope.Envelope) {
	if key == "" {
		return
	}
	s.mu.Lock()
	s.private[key] = append(s.private[key], e)
	s.mu.Unlock()
}

// Public returns the deduplicated, ordered public thread.
func (s *Store) Public() []envelope.Envelope {
	s.mu.RLock()
	raw := make([]envelope.Envelope, len(s.public))
	copy(raw, s.public)
	s.mu.RUnlock()
	return envelope.Dedup(raw)
}

// Private returns the deduplicated, ordered thread for the key. An unknown
// key yields an empty sequence, never nil and never a created thread — read
// access must not require a prior write.
func (s *Store) Private(key string) []envelope.Envelope {
	s.mu.RLock()
	raw := make([]envelope.Envelope, len(s.private[key]))
	copy(raw, s.private[key])
	s.mu.RUnlock()
	return envelope.Dedup(raw)
}

// HasThread reports whether a private thread exists for the key.
func (s *Store) HasThread(key string) bool {
	s.mu.RLock()
	_, ok := s.private[key]
	s.mu.RUnlock()
	return ok
}

// Peers returns all private-thread keys, sorted.
func (s *Store) Peers() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.private))
	for key := range s.private {
		out = append(out, key)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
