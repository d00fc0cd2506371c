// Package social keeps the friend graph view: confirmed friends and pending
// incoming requests. REST-fetched snapshots and asynchronously delivered
// graph events merge into the same store, so every merge is idempotent.
package social

import (
	"sync"
)

// Friend is one confirmed friend.
type Friend struct {
	ID          int64
	Key         string
	DisplayName string
}

// Request is one pending incoming friend request.
type Request struct {
	ID            int64
	RequesterKey  string
	RequesterName string
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	friends []Friend
	byKey   map[string]int // key -> index into friends
	pending []Request
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byKey: make(map[string]int)}
}

// MergeFriends upserts the list into the confirmed set, de-duplicated by
// peer key. On conflict the first-seen id wins; only the display name is
// refreshed. Returns the keys that are new to the store so the caller can
// ensure conversation threads for them.
func (s *Store) MergeFriends(list []Friend) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for _, f := range list {
		if f.Key == "" {
			continue
		}
		if idx, ok := s.byKey[f.Key]; ok {
			s.friends[idx].DisplayName = f.DisplayName
			continue
		}
		s.byKey[f.Key] = len(s.friends)
		s.friends = append(s.friends, f)
		added = append(added, f.Key)
	}
	return added
}

// MergeRequest prepends an incoming request unless one with the same id is
// already pending.
func (s *Store) MergeRequest(r Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pending {
		if p.ID == r.ID {
			return false
		}
	}
	s.pending = append([]Request{r}, s.pending...)
	return true
}

// ReplaceRequests installs a freshly fetched pending snapshot. Used after an
// accept, where the authoritative state lives upstream and the local view
// must not drift from it.
func (s *Store) ReplaceRequests(list []Request) {
	s.mu.Lock()
	s.pending = append([]Request(nil), list...)
	s.mu.Unlock()
}

// Friends returns the confirmed set in merge order.
func (s *Store) Friends() []Friend {
	s.mu.RLock()
	out := make([]Friend, len(s.friends))
	copy(out, s.friends)
	s.mu.RUnlock()
	return out
}

// Requests returns the pending set, newest first.
func (s *Store) Requests() []Request {
	s.mu.RLock()
	out := make([]Request, len(s.pending))
	copy(out, s.pending)
	s.mu.RUnlock()
	return out
}

// IsFriend reports whether the key is in the confirmed set.
func (s *Store) IsFriend(key string) bool {
	s.mu.RLock()
	_, ok := s.byKey[key]
	s.mu.RUnlock()
	return ok
}
