package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/Richie010/vshareu/internal/envelope"

	logging "github.com/ipfs/go-log/v2"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
)

func init() {
	// Silence noisy libp2p subsystems — dial failures and backoff errors
	// go to stderr by default and pollute terminal output.
	logging.SetLogLevel("swarm2", "error")
	logging.SetLogLevel("autonat", "warn")
	logging.SetLogLevel("pubsub", "error")
}

// Mesh is the serverless transport: a libp2p host with GossipSub, discovering
// peers over mDNS on the local network. Channel names double as topic names,
// so the session core addresses both transports identically. A private send
// is published on the receiver's private topic; every node subscribes only to
// its own, which gives the same delivery shape as the hosted server's
// per-user queue (minus confidentiality, which the hosted path does not
// provide either).
type Mesh struct {
	listenPort int
	keyFile    string
	mdnsTag    string

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	host   host.Host
	ps     *pubsub.PubSub
	topics map[string]*pubsub.Topic
}

type meshNotifee struct {
	h host.Host
}

func (n *meshNotifee) HandlePeerFound(pi peer.AddrInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	_ = n.h.Connect(ctx, pi)
}

// NewMesh creates a mesh transport. keyFile is where the node identity key
// persists across runs; mdnsTag scopes LAN discovery to this application.
func NewMesh(listenPort int, keyFile, mdnsTag string) *Mesh {
	return &Mesh{
		listenPort: listenPort,
		keyFile:    keyFile,
		mdnsTag:    mdnsTag,
		topics:     make(map[string]*pubsub.Topic),
	}
}

// loadOrCreateKey loads a persistent identity key from disk,
// or generates a new Ed25519 key and saves it on first run.
func loadOrCreateKey(keyFile string) (crypto.PrivKey, error) {
	data, err := os.ReadFile(keyFile)
	if err == nil {
		priv, err := crypto.UnmarshalPrivateKey(data)
		if err == nil {
			return priv, nil
		}
		log.Printf("WARNING: corrupt identity key at %s: %v (generating new key)", keyFile, err)
	}

	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, err
	}
	raw, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal identity key: %w", err)
	}
	if dir := filepath.Dir(keyFile); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create key directory: %w", err)
		}
	}
	if err := os.WriteFile(keyFile, raw, 0600); err != nil {
		return nil, fmt.Errorf("save identity key: %w", err)
	}
	return priv, nil
}

// Connect starts the libp2p host, mDNS discovery and GossipSub.
func (m *Mesh) Connect(ctx context.Context) error {
	priv, err := loadOrCreateKey(m.keyFile)
	if err != nil {
		return fmt.Errorf("mesh: identity key: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", m.listenPort)),
	)
	if err != nil {
		return fmt.Errorf("mesh: host: %w", err)
	}

	md := mdns.NewMdnsService(h, m.mdnsTag, &meshNotifee{h: h})
	if err := md.Start(); err != nil {
		_ = h.Close()
		return fmt.Errorf("mesh: mdns: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ps, err := pubsub.NewGossipSub(runCtx, h)
	if err != nil {
		cancel()
		_ = h.Close()
		return fmt.Errorf("mesh: gossipsub: %w", err)
	}

	m.mu.Lock()
	m.ctx = runCtx
	m.cancel = cancel
	m.host = h
	m.ps = ps
	m.topics = make(map[string]*pubsub.Topic)
	m.mu.Unlock()

	log.Printf("MESH: node %s listening on port %d", h.ID(), m.listenPort)
	return nil
}

// joinTopic returns the topic for a channel, joining lazily. Topics stay
// joined for the life of the connection.
func (m *Mesh) joinTopic(channel string) (*pubsub.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ps == nil {
		return nil, ErrNotConnected
	}
	if t, ok := m.topics[channel]; ok {
		return t, nil
	}
	t, err := m.ps.Join(channel)
	if err != nil {
		return nil, fmt.Errorf("mesh: join %s: %w", channel, err)
	}
	m.topics[channel] = t
	return t, nil
}

// Subscribe joins the channel's topic and pumps its messages to the handler.
// Self-published messages are delivered too; the core filters its own sender
// key, same as on the hosted path.
func (m *Mesh) Subscribe(channel string, h Handler) error {
	topic, err := m.joinTopic(channel)
	if err != nil {
		return err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("mesh: subscribe %s: %w", channel, err)
	}

	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	go func() {
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				return // context cancelled or subscription closed
			}
			h(msg.Data)
		}
	}()
	return nil
}

// Publish maps the server-style send destinations onto topics. A broadcast
// goes to the public topic; a directed send is decoded just enough to find
// the receiver and lands on that receiver's private topic.
func (m *Mesh) Publish(destination string, payload []byte) error {
	var channel string
	switch destination {
	case SendPublic:
		channel = PublicChannel
	case SendPrivate:
		var env envelope.Envelope
		if err := json.Unmarshal(payload, &env); err != nil || env.ReceiverName == "" {
			return fmt.Errorf("mesh: private send without receiver")
		}
		channel = PrivateChannel(env.ReceiverName)
	default:
		channel = destination
	}

	topic, err := m.joinTopic(channel)
	if err != nil {
		return err
	}
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if err := topic.Publish(ctx, payload); err != nil {
		return fmt.Errorf("mesh: publish %s: %w", channel, err)
	}
	return nil
}

// Close shuts the host down. Idempotent.
func (m *Mesh) Close() error {
	m.mu.Lock()
	cancel := m.cancel
	h := m.host
	m.cancel = nil
	m.host = nil
	m.ps = nil
	m.topics = make(map[string]*pubsub.Topic)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if h != nil {
		return h.Close()
	}
	return nil
}
