// Package transport is the pub/sub boundary the session core speaks to.
// Two implementations exist: a STOMP-over-WebSocket client for the hosted
// chat server, and a libp2p GossipSub mesh for serverless LAN use. The core
// never cares which one it holds.
package transport

import (
	"context"
	"errors"
)

// Channel and destination names, fixed by the chat server's STOMP mapping.
// The GossipSub transport reuses them verbatim as topic names.
const (
	// PublicChannel carries the shared room: messages, join notices,
	// public typing notices.
	PublicChannel = "/chatroom/public"

	// SendPublic is the broadcast send destination.
	SendPublic = "/app/message"

	// SendPrivate is the directed send destination; the receiver is named
	// inside the payload.
	SendPrivate = "/app/private-message"

	privateChannelPrefix = "/user/"
	privateChannelSuffix = "/private"
)

// PrivateChannel returns the per-identity private channel name.
func PrivateChannel(key string) string {
	return privateChannelPrefix + key + privateChannelSuffix
}

// ErrNotConnected is returned by Subscribe and Publish before a successful
// Connect or after Close.
var ErrNotConnected = errors.New("transport: not connected")

// Handler receives the raw payload of one inbound message. Handlers for one
// subscription are invoked sequentially in arrival order.
type Handler func(payload []byte)

// Transport is a bidirectional pub/sub connection.
type Transport interface {
	// Connect establishes the connection. It either completes or fails;
	// no retry is attempted here.
	Connect(ctx context.Context) error

	// Subscribe registers a handler for a channel. Valid only while
	// connected; subscriptions do not survive a reconnect and must be
	// re-established by the caller.
	Subscribe(channel string, h Handler) error

	// Publish sends a payload to a destination. There is no delivery
	// acknowledgment; a nil return means the payload was handed to the
	// transport, nothing more.
	Publish(destination string, payload []byte) error

	// Close tears the connection down. Idempotent.
	Close() error
}
