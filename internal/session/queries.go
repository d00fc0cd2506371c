package session

import (
	"time"

	"github.com/Richie010/vshareu/internal/envelope"
	"github.com/Richie010/vshareu/internal/social"
)

// ActivePeers returns the peers active within the inactivity window, sorted.
// Self is excluded: the local user's presence is implied by the session
// itself.
func (s *Session) ActivePeers() []string {
	all := s.presence.ActivePeers()
	out := all[:0]
	for _, key := range all {
		if key != s.self {
			out = append(out, key)
		}
	}
	return out
}

// PeerActive reports whether the peer is currently in the active set.
func (s *Session) PeerActive(key string) bool { return s.presence.Active(key) }

// LastSeen returns the last-activity instant for a peer.
func (s *Session) LastSeen(key string) (time.Time, bool) { return s.presence.LastSeen(key) }

// TypingPeers returns the peers whose typing indicator is lit, sorted.
func (s *Session) TypingPeers() []string { return s.typing.Peers() }

// PeerTyping reports whether the peer is typing.
func (s *Session) PeerTyping(key string) bool { return s.typing.Typing(key) }

// PublicMessages returns the deduplicated public thread.
func (s *Session) PublicMessages() []envelope.Envelope { return s.conversations.Public() }

// PrivateMessages returns the deduplicated thread for the peer.
func (s *Session) PrivateMessages(key string) []envelope.Envelope {
	return s.conversations.Private(key)
}

// Threads returns all private-thread peer keys, sorted.
func (s *Session) Threads() []string { return s.conversations.Peers() }

// Friends returns the confirmed friend list in merge order.
func (s *Session) Friends() []social.Friend { return s.social.Friends() }

// PendingRequests returns the pending incoming friend requests, newest first.
func (s *Session) PendingRequests() []social.Request { return s.social.Requests() }

// IsFriend reports whether the key is a confirmed friend.
func (s *Session) IsFriend(key string) bool { return s.social.IsFriend(key) }
