// Package session is the client core: it owns the transport subscriptions,
// routes every inbound envelope to the right store, runs the presence sweep,
// and exposes the queries the UI reads. All state lives here for exactly one
// connection's lifetime, except conversation history, which survives a
// disconnect.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Richie010/vshareu/internal/api"
	"github.com/Richie010/vshareu/internal/conversation"
	"github.com/Richie010/vshareu/internal/envelope"
	"github.com/Richie010/vshareu/internal/presence"
	"github.com/Richie010/vshareu/internal/social"
	"github.com/Richie010/vshareu/internal/storage"
	"github.com/Richie010/vshareu/internal/transport"
	"github.com/Richie010/vshareu/internal/typing"
	"github.com/Richie010/vshareu/internal/util"
)

// State of the session lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// ErrNotConnected is returned by send operations outside the connected state.
var ErrNotConnected = errors.New("session: not connected")

// eventLogSize bounds the diagnostics ring.
const eventLogSize = 200

// Options configures a session. API and DB are optional: without an API
// client the social operations return errors, without a DB nothing persists.
type Options struct {
	SelfID           int64
	API              *api.Client
	DB               *storage.DB
	InactivityWindow time.Duration
	SweepInterval    time.Duration
	TypingHold       time.Duration
	TypingDebounce   time.Duration
}

// Session composes the stores behind one dispatch path. Safe for concurrent
// use; the transport read pump and the UI call into it freely.
type Session struct {
	self   string
	selfID int64

	tr  transport.Transport
	api *api.Client
	db  *storage.DB

	conversations *conversation.Store
	social        *social.Store
	presence      *presence.Tracker
	typing        *typing.Indicator
	throttle      *typing.Throttle

	mu            sync.Mutex
	state         State
	cancel        context.CancelFunc
	sweepInterval time.Duration
	retime        chan time.Duration

	listenerMu sync.RWMutex
	listeners  map[chan Event]struct{}

	eventLog *util.RingBuffer[string]
}

// New creates a session for the given self key. The key must already be
// normalized (it is what Login or Register returned).
func New(self string, tr transport.Transport, opts Options) *Session {
	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = presence.DefaultSweepInterval
	}
	throttle := typing.NewThrottle(opts.TypingDebounce)

	s := &Session{
		self:          self,
		selfID:        opts.SelfID,
		tr:            tr,
		api:           opts.API,
		db:            opts.DB,
		conversations: conversation.NewStore(),
		social:        social.NewStore(),
		presence:      presence.NewTracker(opts.InactivityWindow),
		throttle:      throttle,
		state:         StateDisconnected,
		sweepInterval: sweep,
		retime:        make(chan time.Duration, 1),
		listeners:     make(map[chan Event]struct{}),
		eventLog:      util.NewRingBuffer[string](eventLogSize),
	}
	s.typing = typing.NewIndicator(opts.TypingHold, func(key string, isTyping bool) {
		s.emit(Event{Type: EventTyping, Peer: key, Typing: isTyping})
	})
	return s
}

// Self returns the session's own peer key.
func (s *Session) Self() string { return s.self }

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials the transport, subscribes the public room and the private
// queue, announces the join, and starts the sweep loop. Friend and request
// fetches run in the background; their completions merge in whenever they
// land.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("session: connect in state %q", s.state)
	}
	s.state = StateConnecting
	s.mu.Unlock()
	s.emit(Event{Type: EventState, State: StateConnecting})

	fail := func(err error) error {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		s.emit(Event{Type: EventState, State: StateDisconnected})
		return err
	}

	if err := s.tr.Connect(ctx); err != nil {
		return fail(err)
	}
	if err := s.tr.Subscribe(transport.PublicChannel, s.handleInbound); err != nil {
		_ = s.tr.Close()
		return fail(err)
	}
	if err := s.tr.Subscribe(transport.PrivateChannel(s.self), s.handleInbound); err != nil {
		_ = s.tr.Close()
		return fail(err)
	}
	if err := s.tr.Publish(transport.SendPublic, envelope.NewJoin(s.self).Encode()); err != nil {
		_ = s.tr.Close()
		return fail(err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.state = StateConnected
	s.mu.Unlock()

	go s.run(runCtx)
	s.seedFromCache()
	if s.api != nil && s.selfID != 0 {
		go s.RefreshSocial()
	}

	s.logf("connected as %s", s.self)
	s.emit(Event{Type: EventState, State: StateConnected})
	return nil
}

// Disconnect stops the sweep loop, cancels all typing timers and closes the
// transport. Conversation history, the friend graph and presence timestamps
// are retained; a later Connect starts a fresh lifecycle over them.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.cancel = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.typing.StopAll()
	s.throttle.Reset()
	err := s.tr.Close()

	s.logf("disconnected")
	s.emit(Event{Type: EventState, State: StateDisconnected})
	return err
}

// run owns the sweep ticker for one connection.
func (s *Session) run(ctx context.Context) {
	s.mu.Lock()
	interval := s.sweepInterval
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.retime:
			ticker.Reset(d)
		case now := <-ticker.C:
			if s.presence.Sweep(now) {
				s.emit(Event{Type: EventPresence})
			}
		}
	}
}

// handleInbound is the single dispatch path for both subscriptions. Malformed
// payloads are dropped with a log line; one bad envelope must never take the
// session down.
func (s *Session) handleInbound(payload []byte) {
	env, err := envelope.Decode(payload)
	if err != nil {
		log.Printf("SESSION: dropping malformed envelope: %v", err)
		s.logf("dropped malformed envelope")
		return
	}

	switch env.Status {
	case envelope.StatusJoin:
		if env.SenderName == s.self {
			return
		}
		s.presence.MarkActive(env.SenderName)
		created := s.conversations.EnsureThread(env.SenderName)
		s.cachePeer(env.SenderName, false)
		s.logf("join from %s", env.SenderName)
		s.emit(Event{Type: EventPresence, Peer: env.SenderName})
		if created {
			s.emit(Event{Type: EventThread, Peer: env.SenderName})
		}

	case envelope.StatusMessage:
		if env.SenderName != s.self {
			s.presence.MarkActive(env.SenderName)
			s.typing.Stop(env.SenderName)
			s.cachePeer(env.SenderName, false)
		}
		if env.ReceiverName == "" {
			s.conversations.AppendPublic(env)
			s.emit(Event{Type: EventPublicMessage, Peer: env.SenderName})
			return
		}
		key := env.SenderName
		if key == s.self {
			key = env.ReceiverName // echo of our own send
		}
		s.conversations.AppendPrivate(key, env)
		s.emit(Event{Type: EventPrivateMessage, Peer: key})

	case envelope.StatusTyping:
		if env.SenderName == s.self {
			return
		}
		s.presence.MarkActive(env.SenderName)
		s.typing.Touch(env.SenderName)

	default:
		log.Printf("SESSION: ignoring envelope with status %q from %s", env.Status, env.SenderName)
	}
}

// SendPublic publishes a message to the shared room. The message is not
// appended locally; it arrives back through the public subscription like
// everyone else's.
func (s *Session) SendPublic(body string) error {
	if s.State() != StateConnected {
		return ErrNotConnected
	}
	env := envelope.NewPublic(s.self, body)
	s.presence.MarkActive(s.self)
	return s.tr.Publish(transport.SendPublic, env.Encode())
}

// SendPrivate publishes a directed message and echoes it into the receiver's
// thread immediately. The private queue delivers only to the receiver, so
// without the echo our own side of the conversation would never render. The
// echo stays even when the publish fails; the error tells the caller
// delivery is unconfirmed.
func (s *Session) SendPrivate(receiver, body string) error {
	if s.State() != StateConnected {
		return ErrNotConnected
	}
	env := envelope.NewPrivate(s.self, receiver, body)
	s.conversations.AppendPrivate(receiver, env)
	s.presence.MarkActive(s.self)
	s.emit(Event{Type: EventPrivateMessage, Peer: receiver})
	return s.tr.Publish(transport.SendPrivate, env.Encode())
}

// Keystroke is called on every local input event. The throttle decides
// whether a TYPING notice actually goes out; receiver empty means the public
// room. Returns whether a notice was published.
func (s *Session) Keystroke(receiver string) (bool, error) {
	if s.State() != StateConnected {
		return false, ErrNotConnected
	}
	if !s.throttle.Keystroke() {
		return false, nil
	}
	env := envelope.NewTyping(s.self, receiver)
	dest := transport.SendPublic
	if receiver != "" {
		dest = transport.SendPrivate
	}
	if err := s.tr.Publish(dest, env.Encode()); err != nil {
		return false, err
	}
	s.presence.MarkActive(s.self)
	return true, nil
}

// OpenThread makes a private thread visible before any message is exchanged,
// for example when the user picks a friend from the list.
func (s *Session) OpenThread(key string) {
	if s.conversations.EnsureThread(key) {
		s.emit(Event{Type: EventThread, Peer: key})
	}
}

// seedFromCache restores threads for previously known friends so the list is
// populated before the REST fetch lands.
func (s *Session) seedFromCache() {
	if s.db == nil {
		return
	}
	peers, err := s.db.ListPeers()
	if err != nil {
		log.Printf("SESSION: peer cache read failed: %v", err)
		return
	}
	for _, p := range peers {
		if p.IsFriend {
			s.conversations.EnsureThread(p.Key)
		}
	}
	if len(peers) > 0 {
		s.logf("seeded %d known peers from cache", len(peers))
	}
}

// cachePeer records a sighting in the persistent peer cache.
func (s *Session) cachePeer(key string, friend bool) {
	if s.db == nil || key == "" || key == s.self {
		return
	}
	if err := s.db.UpsertPeer(storage.KnownPeer{Key: key, DisplayName: key, IsFriend: friend}); err != nil {
		log.Printf("SESSION: peer cache write failed: %v", err)
	}
}

// logf records a diagnostics line in the session event ring.
func (s *Session) logf(format string, args ...any) {
	line := time.Now().Format("15:04:05 ") + fmt.Sprintf(format, args...)
	s.eventLog.Push(line)
}

// EventLog returns the diagnostics ring, oldest first.
func (s *Session) EventLog() []string { return s.eventLog.Snapshot() }

// ApplyTimings adjusts the live timing knobs, typically from a config reload.
// Zero values leave the current setting untouched.
func (s *Session) ApplyTimings(window, sweep, hold, debounce time.Duration) {
	if window > 0 {
		s.presence.SetWindow(window)
	}
	if hold > 0 {
		s.typing.SetHold(hold)
	}
	if debounce > 0 {
		s.throttle.SetDebounce(debounce)
	}
	if sweep > 0 {
		s.mu.Lock()
		s.sweepInterval = sweep
		s.mu.Unlock()
		select {
		case s.retime <- sweep:
		default:
		}
	}
}
