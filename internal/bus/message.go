package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Methods understood by the host and the background.
const (
	MethodInitDatasource       = "initDatasource"
	MethodPush                 = "push"
	MethodLoad                 = "load"
	MethodContextMenuCreate    = "contextMenu-create"
	MethodContextMenuRemoveAll = "contextMenu-removeAll"
)

const methodField = "method"

var (
	// ErrNoResponse is delivered to a request that no peer listener answered.
	ErrNoResponse = errors.New("no listener replied to the request")

	// ErrClosed is returned once an endpoint has been closed, and delivered
	// to requests still pending at that point.
	ErrClosed = errors.New("message bus closed")
)

// Message is a single envelope on the bus.
type Message map[string]any

// NewMessage returns a message for method with the given fields merged in.
func NewMessage(method string, fields map[string]any) Message {
	msg := make(Message, len(fields)+1)
	for k, v := range fields {
		msg[k] = v
	}
	msg[methodField] = method
	return msg
}

// Method returns the message's method, or "" if it has none.
func (m Message) Method() string {
	return m.String(methodField)
}

// String returns the string field key, or "" if it is absent or not a string.
func (m Message) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Decode re-encodes the message and decodes it into out.
func (m Message) Decode(out any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

// Reply is the outcome of a request.
type Reply struct {
	// Payload is the JSON-encoded value returned by the peer's listener.
	Payload json.RawMessage

	// Err is set when the request could not be answered.
	Err error
}

// Bool reports whether the reply is a successful JSON true.
func (r Reply) Bool() bool {
	if r.Err != nil {
		return false
	}
	var b bool
	return json.Unmarshal(r.Payload, &b) == nil && b
}

// Decode decodes the payload into out.
func (r Reply) Decode(out any) error {
	if r.Err != nil {
		return r.Err
	}
	if err := json.Unmarshal(r.Payload, out); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}

// ReplyFunc receives the reply to a request. It is called at most once.
type ReplyFunc func(Reply)

// Predicate selects the inbound messages a listener receives.
type Predicate func(Message) bool

// Handler processes an inbound message. If handled is true and the sender
// expects a reply, reply is JSON-encoded and returned to it.
type Handler func(ctx context.Context, msg Message) (reply any, handled bool)

// MethodIs matches messages with the given method.
func MethodIs(method string) Predicate {
	return func(m Message) bool {
		return m.Method() == method
	}
}

//go:generate mockgen -destination=mocks/mock_bus.go -package=mocks -source=message.go Bus

// Bus is the host's view of the message channel.
type Bus interface {
	// Send delivers a one-way message.
	Send(ctx context.Context, msg Message) error

	// Request delivers msg and arranges for onReply to receive the
	// correlated reply. If Request returns an error, onReply is never called.
	Request(ctx context.Context, msg Message, onReply ReplyFunc) error

	// Subscribe registers a persistent listener. The returned function
	// removes it.
	Subscribe(match Predicate, handler Handler) (unsubscribe func())
}
