package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Richie010/vshareu/internal/api"
	"github.com/Richie010/vshareu/internal/envelope"
	"github.com/Richie010/vshareu/internal/transport"
)

type published struct {
	dest    string
	payload []byte
}

// fakeTransport records publishes and lets tests inject inbound payloads.
type fakeTransport struct {
	mu          sync.Mutex
	connected   bool
	subs        map[string]transport.Handler
	sent        []published
	failPublish error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: make(map[string]transport.Handler)}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Subscribe(channel string, h transport.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	f.subs[channel] = h
	return nil
}

func (f *fakeTransport) Publish(dest string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPublish != nil {
		return f.failPublish
	}
	f.sent = append(f.sent, published{dest, payload})
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.connected = false
	f.subs = make(map[string]transport.Handler)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) deliver(t *testing.T, channel string, env envelope.Envelope) {
	t.Helper()
	f.mu.Lock()
	h := f.subs[channel]
	f.mu.Unlock()
	if h == nil {
		t.Fatalf("no subscription for %s", channel)
	}
	h(env.Encode())
}

func (f *fakeTransport) published(dest string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, p := range f.sent {
		if p.dest == dest {
			out = append(out, p)
		}
	}
	return out
}

func connected(t *testing.T, opts Options) (*Session, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	s := New("Me", tr, opts)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Disconnect() })
	return s, tr
}

func TestConnectSubscribesAndAnnounces(t *testing.T) {
	s, tr := connected(t, Options{})

	if s.State() != StateConnected {
		t.Fatalf("state = %q", s.State())
	}
	tr.mu.Lock()
	_, pub := tr.subs[transport.PublicChannel]
	_, priv := tr.subs[transport.PrivateChannel("Me")]
	tr.mu.Unlock()
	if !pub || !priv {
		t.Fatalf("subscriptions missing: public=%v private=%v", pub, priv)
	}

	joins := tr.published(transport.SendPublic)
	if len(joins) != 1 {
		t.Fatalf("published %d frames, want the join", len(joins))
	}
	env, err := envelope.Decode(joins[0].payload)
	if err != nil || env.Status != envelope.StatusJoin || env.SenderName != "Me" {
		t.Fatalf("join = %+v err=%v", env, err)
	}
}

func TestJoinCreatesThreadAndMarksActive(t *testing.T) {
	s, tr := connected(t, Options{})

	tr.deliver(t, transport.PublicChannel, envelope.NewJoin("Kim"))
	if !s.PeerActive("Kim") {
		t.Fatal("Kim not active after join")
	}
	if got := s.Threads(); len(got) != 1 || got[0] != "Kim" {
		t.Fatalf("threads = %v", got)
	}

	// Own join notice echoes back and must not create a self-thread.
	tr.deliver(t, transport.PublicChannel, envelope.NewJoin("Me"))
	if len(s.Threads()) != 1 {
		t.Fatalf("self join created a thread: %v", s.Threads())
	}
	if got := s.ActivePeers(); len(got) != 1 || got[0] != "Kim" {
		t.Fatalf("active = %v, self must be excluded", got)
	}
}

func TestPublicReplayIsDeduplicated(t *testing.T) {
	s, tr := connected(t, Options{})

	msg := envelope.NewPublic("Kim", "hello")
	tr.deliver(t, transport.PublicChannel, msg)
	tr.deliver(t, transport.PublicChannel, msg) // broker redelivery

	got := s.PublicMessages()
	if len(got) != 1 || got[0].Message != "hello" {
		t.Fatalf("public = %v", got)
	}
}

func TestPrivateThreadKeyedByNonSelfParty(t *testing.T) {
	s, tr := connected(t, Options{})

	// Incoming: keyed by the sender.
	tr.deliver(t, transport.PrivateChannel("Me"), envelope.NewPrivate("Kim", "Me", "hi"))
	if got := s.PrivateMessages("Kim"); len(got) != 1 {
		t.Fatalf("incoming not under sender key: %v", got)
	}

	// Echo of our own send coming back: keyed by the receiver.
	tr.deliver(t, transport.PrivateChannel("Me"), envelope.NewPrivate("Me", "Kim", "yo"))
	got := s.PrivateMessages("Kim")
	if len(got) != 2 || got[1].Message != "yo" {
		t.Fatalf("thread = %v", got)
	}
	if len(s.PrivateMessages("Me")) != 0 {
		t.Fatal("self thread must not exist")
	}
}

func TestSendPrivateEchoSurvivesPublishFailure(t *testing.T) {
	s, tr := connected(t, Options{})

	tr.mu.Lock()
	tr.failPublish = errors.New("broker down")
	tr.mu.Unlock()

	err := s.SendPrivate("Kim", "are you there")
	if err == nil {
		t.Fatal("publish failure must surface")
	}
	got := s.PrivateMessages("Kim")
	if len(got) != 1 || got[0].Message != "are you there" {
		t.Fatalf("echo lost on failure: %v", got)
	}
}

func TestTypingLifecycle(t *testing.T) {
	s, tr := connected(t, Options{TypingHold: time.Minute})

	tr.deliver(t, transport.PublicChannel, envelope.NewTyping("Kim", ""))
	if !s.PeerTyping("Kim") {
		t.Fatal("typing notice ignored")
	}

	// The finished message clears the indicator immediately.
	tr.deliver(t, transport.PublicChannel, envelope.NewPublic("Kim", "done"))
	if s.PeerTyping("Kim") {
		t.Fatal("indicator still lit after message arrived")
	}

	// Own typing notices echo back and must not light self.
	tr.deliver(t, transport.PublicChannel, envelope.NewTyping("Me", ""))
	if len(s.TypingPeers()) != 0 {
		t.Fatalf("typing = %v", s.TypingPeers())
	}
}

func TestKeystrokeThrottled(t *testing.T) {
	s, tr := connected(t, Options{TypingDebounce: time.Minute})

	sent, err := s.Keystroke("")
	if err != nil || !sent {
		t.Fatalf("first keystroke: sent=%v err=%v", sent, err)
	}
	sent, err = s.Keystroke("")
	if err != nil || sent {
		t.Fatalf("second keystroke inside debounce: sent=%v err=%v", sent, err)
	}

	frames := tr.published(transport.SendPublic)
	// Join plus exactly one typing notice.
	if len(frames) != 2 {
		t.Fatalf("published %d public frames", len(frames))
	}
	env, _ := envelope.Decode(frames[1].payload)
	if env.Status != envelope.StatusTyping || env.ReceiverName != "" {
		t.Fatalf("typing frame = %+v", env)
	}
}

func TestKeystrokePrivateAddressing(t *testing.T) {
	s, tr := connected(t, Options{})

	if _, err := s.Keystroke("Kim"); err != nil {
		t.Fatal(err)
	}
	frames := tr.published(transport.SendPrivate)
	if len(frames) != 1 {
		t.Fatalf("published %d private frames", len(frames))
	}
	env, _ := envelope.Decode(frames[0].payload)
	if env.Status != envelope.StatusTyping || env.ReceiverName != "Kim" {
		t.Fatalf("typing frame = %+v", env)
	}
}

func TestMalformedEnvelopeIsDropped(t *testing.T) {
	s, tr := connected(t, Options{})

	tr.mu.Lock()
	h := tr.subs[transport.PublicChannel]
	tr.mu.Unlock()
	h([]byte("{not json"))
	h([]byte(`{"status":"MESSAGE","message":"no sender"}`))

	if len(s.PublicMessages()) != 0 {
		t.Fatalf("malformed payload reached the store: %v", s.PublicMessages())
	}
	if s.State() != StateConnected {
		t.Fatalf("state = %q", s.State())
	}
}

func TestDisconnectClearsTimersKeepsHistory(t *testing.T) {
	tr := newFakeTransport()
	s := New("Me", tr, Options{TypingHold: time.Minute})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	tr.deliver(t, transport.PublicChannel, envelope.NewPublic("Kim", "hello"))
	tr.deliver(t, transport.PublicChannel, envelope.NewTyping("Kim", ""))

	if err := s.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("state = %q", s.State())
	}
	if len(s.TypingPeers()) != 0 {
		t.Fatal("typing state leaked across disconnect")
	}
	if len(s.PublicMessages()) != 1 {
		t.Fatal("history lost on disconnect")
	}

	// Sends are rejected while down.
	if err := s.SendPublic("x"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}

	// A fresh connect works over the retained state.
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()
	if len(s.PublicMessages()) != 1 {
		t.Fatal("history lost on reconnect")
	}
}

func TestSweepExpiresIdlePeers(t *testing.T) {
	s, tr := connected(t, Options{InactivityWindow: 30 * time.Second})

	tr.deliver(t, transport.PublicChannel, envelope.NewJoin("Kim"))
	if got := s.ActivePeers(); len(got) != 1 {
		t.Fatalf("active = %v", got)
	}

	// Drive the sweep directly; the ticker path is the same call.
	if !s.presence.Sweep(time.Now().Add(time.Minute)) {
		t.Fatal("sweep reported no change")
	}
	if got := s.ActivePeers(); len(got) != 0 {
		t.Fatalf("active after expiry = %v", got)
	}
}

func TestAcceptRequestRefetchesBothLists(t *testing.T) {
	var accepted atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/friend-requests/9/accept":
			accepted.Store(true)
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/friends":
			if !accepted.Load() {
				json.NewEncoder(w).Encode([]api.User{})
				return
			}
			json.NewEncoder(w).Encode([]api.User{{ID: 4, Name: "Kim"}})
		case r.URL.Path == "/api/friend-requests":
			json.NewEncoder(w).Encode([]api.FriendRequest{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr := newFakeTransport()
	s := New("Me", tr, Options{SelfID: 1, API: api.New(srv.URL, 0)})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	// The upstream record shape: accept by map with "requestId".
	if err := s.AcceptRequest(map[string]any{"requestId": float64(9)}); err != nil {
		t.Fatal(err)
	}

	friends := s.Friends()
	if len(friends) != 1 || friends[0].Key != "Kim" {
		t.Fatalf("friends = %+v", friends)
	}
	if len(s.PendingRequests()) != 0 {
		t.Fatalf("requests = %+v", s.PendingRequests())
	}
	// The accepted friend gets a thread.
	if !s.conversations.HasThread("Kim") {
		t.Fatal("no thread for new friend")
	}
}

func TestFreshSessionScenario(t *testing.T) {
	s, tr := connected(t, Options{})

	// Ann joins: her thread exists and is empty.
	tr.deliver(t, transport.PublicChannel, envelope.NewJoin("Ann"))
	if !s.conversations.HasThread("Ann") {
		t.Fatal("no thread after join")
	}
	if got := s.PrivateMessages("Ann"); len(got) != 0 {
		t.Fatalf("join produced a visible message: %v", got)
	}

	// Her first private message lands in her thread.
	msg := envelope.NewPrivate("Ann", "Me", "hi")
	tr.deliver(t, transport.PrivateChannel("Me"), msg)
	got := s.PrivateMessages("Ann")
	if len(got) != 1 || got[0].Message != "hi" {
		t.Fatalf("thread = %v", got)
	}

	// Identical payload replayed after a resubscription: still one message.
	tr.deliver(t, transport.PrivateChannel("Me"), msg)
	if got := s.PrivateMessages("Ann"); len(got) != 1 {
		t.Fatalf("replay leaked into view: %v", got)
	}
}

func TestListenReceivesEvents(t *testing.T) {
	s, tr := connected(t, Options{})

	ch, cancel := s.Listen()
	defer cancel()

	tr.deliver(t, transport.PublicChannel, envelope.NewPublic("Kim", "hello"))

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == EventPublicMessage && e.Peer == "Kim" {
				return
			}
		case <-deadline:
			t.Fatal("no public-message event")
		}
	}
}
