// Package envelope defines the wire type for chat events and the
// deduplication that makes an at-least-once transport presentable.
// Wire format: JSON, field names fixed by the chat server.
package envelope

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Richie010/vshareu/internal/identity"
)

// Status values carried in the "status" field.
const (
	StatusJoin    = "JOIN"
	StatusMessage = "MESSAGE"
	StatusTyping  = "TYPING"
)

// ErrMalformed is returned by Decode when the payload does not parse or
// carries no usable sender identity. Such envelopes are dropped by the
// dispatcher, never fatal.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is one transport-delivered chat event. Immutable once decoded;
// the conversation store owns whichever thread it is appended to.
type Envelope struct {
	ID           string `json:"id,omitempty"`
	SenderName   string `json:"senderName"`
	ReceiverName string `json:"receiverName,omitempty"`
	Message      string `json:"message,omitempty"`
	Status       string `json:"status"`
	Timestamp    int64  `json:"timestamp,omitempty"` // unix millis; dedup disambiguator only
}

// NewPublic creates an outbound public chat message.
func NewPublic(sender, body string) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		SenderName: sender,
		Message:    body,
		Status:     StatusMessage,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// NewPrivate creates an outbound directed chat message.
func NewPrivate(sender, receiver, body string) Envelope {
	return Envelope{
		ID:           uuid.NewString(),
		SenderName:   sender,
		ReceiverName: receiver,
		Message:      body,
		Status:       StatusMessage,
		Timestamp:    time.Now().UnixMilli(),
	}
}

// NewJoin creates the join notice published once after subscribing.
func NewJoin(sender string) Envelope {
	return Envelope{SenderName: sender, Status: StatusJoin}
}

// NewTyping creates a typing notice. Receiver is empty for the public room.
func NewTyping(sender, receiver string) Envelope {
	return Envelope{SenderName: sender, ReceiverName: receiver, Status: StatusTyping}
}

// Encode serializes the envelope for publishing.
func (e Envelope) Encode() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Decode parses an inbound payload. The sender key is normalized in place.
// Unknown status values decode fine and are ignored later at routing.
func Decode(payload []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return Envelope{}, ErrMalformed
	}
	e.SenderName = identity.Normalize(e.SenderName)
	e.ReceiverName = identity.Normalize(e.ReceiverName)
	if e.SenderName == "" {
		return Envelope{}, ErrMalformed
	}
	return e, nil
}
