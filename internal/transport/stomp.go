package transport

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const connectTimeout = 10 * time.Second

// Stomp is a minimal STOMP 1.2 client over a WebSocket, sized for what the
// chat server speaks: CONNECT, SUBSCRIBE, SEND out; CONNECTED, MESSAGE,
// ERROR in.
type Stomp struct {
	url string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	subs      map[string]Handler // destination -> handler
	nextSubID int

	// onDrop, if set, is called once when the read pump dies. The core
	// attempts no automatic reconnect; the caller decides.
	onDrop func(err error)
}

// NewStomp creates a client for the given websocket URL
// (e.g. "ws://host:8080/ws").
func NewStomp(url string) *Stomp {
	return &Stomp{url: url, subs: make(map[string]Handler)}
}

// OnDrop registers the connection-loss callback. Must be called before
// Connect.
func (s *Stomp) OnDrop(fn func(err error)) { s.onDrop = fn }

// Connect dials the websocket, performs the STOMP handshake, and starts the
// read pump.
func (s *Stomp) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("stomp: dial %s: %w", s.url, err)
	}

	hello := &frame{command: cmdConnect}
	hello.addHeader("accept-version", "1.2")
	hello.addHeader("heart-beat", "0,0")
	if err := conn.WriteMessage(websocket.TextMessage, hello.bytes()); err != nil {
		conn.Close()
		return fmt.Errorf("stomp: handshake write: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(connectTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("stomp: handshake read: %w", err)
	}
	reply, err := parseFrame(raw)
	if err != nil || reply == nil || reply.command != cmdConnected {
		conn.Close()
		if err == nil {
			err = fmt.Errorf("unexpected reply %q", frameCommand(reply))
		}
		return fmt.Errorf("stomp: handshake: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.subs = make(map[string]Handler)
	s.mu.Unlock()

	go s.readPump(conn)
	log.Printf("STOMP: connected to %s", s.url)
	return nil
}

// Subscribe registers a handler and sends the SUBSCRIBE frame.
func (s *Stomp) Subscribe(channel string, h Handler) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.subs[channel] = h
	s.nextSubID++
	id := s.nextSubID
	conn := s.conn
	s.mu.Unlock()

	f := &frame{command: cmdSubscribe}
	f.addHeader("id", "sub-"+strconv.Itoa(id))
	f.addHeader("destination", channel)
	return s.write(conn, f)
}

// Publish sends a SEND frame. No acknowledgment exists at this layer.
func (s *Stomp) Publish(destination string, payload []byte) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	s.mu.Unlock()

	f := &frame{command: cmdSend, body: payload}
	f.addHeader("destination", destination)
	f.addHeader("content-type", "application/json")
	f.addHeader("content-length", strconv.Itoa(len(payload)))
	return s.write(conn, f)
}

// Close tears down the connection. Idempotent.
func (s *Stomp) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Stomp) write(conn *websocket.Conn, f *frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.WriteMessage(websocket.TextMessage, f.bytes()); err != nil {
		return fmt.Errorf("stomp: write %s: %w", f.command, err)
	}
	return nil
}

// readPump reads frames until the socket dies and dispatches MESSAGE frames
// to the subscription handlers, sequentially, in arrival order.
func (s *Stomp) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasConnected := s.connected && s.conn == conn
			if wasConnected {
				s.connected = false
				s.conn = nil
			}
			s.mu.Unlock()
			if wasConnected {
				log.Printf("STOMP: connection lost: %v", err)
				if s.onDrop != nil {
					s.onDrop(err)
				}
			}
			return
		}
		f, err := parseFrame(raw)
		if err != nil {
			log.Printf("STOMP: dropping unparseable frame: %v", err)
			continue
		}
		if f == nil {
			continue // heartbeat
		}
		s.dispatch(f)
	}
}

// dispatch routes one inbound frame to its subscription handler.
func (s *Stomp) dispatch(f *frame) {
	switch f.command {
	case cmdMessage:
		dest := f.header("destination")
		s.mu.Lock()
		h := s.subs[dest]
		s.mu.Unlock()
		if h == nil {
			log.Printf("STOMP: message for unsubscribed destination %q", dest)
			return
		}
		h(f.body)
	case cmdError:
		log.Printf("STOMP: server error: %s", f.header("message"))
	default:
		log.Printf("STOMP: ignoring %s frame", f.command)
	}
}

func frameCommand(f *frame) string {
	if f == nil {
		return ""
	}
	return f.command
}
