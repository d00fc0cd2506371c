package session

// EventType tags a change notification.
type EventType string

const (
	EventState          EventType = "state"
	EventPresence       EventType = "presence"
	EventTyping         EventType = "typing"
	EventPublicMessage  EventType = "public-message"
	EventPrivateMessage EventType = "private-message"
	EventThread         EventType = "thread"
	EventSocial         EventType = "social"
)

// Event is one change notification. Peer is set where a single peer is the
// subject; State only on EventState; Typing only on EventTyping.
type Event struct {
	Type   EventType
	Peer   string
	State  State
	Typing bool
}

// Listen returns a channel that receives session events and a cancel
// function. Slow listeners lose events rather than block the dispatch path.
func (s *Session) Listen() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	s.listenerMu.Lock()
	s.listeners[ch] = struct{}{}
	s.listenerMu.Unlock()

	cancel := func() {
		s.listenerMu.Lock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
		s.listenerMu.Unlock()
	}
	return ch, cancel
}

func (s *Session) emit(e Event) {
	s.listenerMu.RLock()
	for ch := range s.listeners {
		select {
		case ch <- e:
		default:
		}
	}
	s.listenerMu.RUnlock()
}
