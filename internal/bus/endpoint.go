package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/metroplatform/metro-host/internal/eventloop"
)

// Frame is the unit exchanged between two endpoints.
type Frame struct {
	// ID identifies a message frame. Replies refer back to it.
	ID string `json:"id,omitempty"`

	// InReplyTo is set on reply frames to the ID of the request.
	InReplyTo string `json:"inReplyTo,omitempty"`

	// ExpectsReply marks a message frame sent with Request.
	ExpectsReply bool `json:"expectsReply,omitempty"`

	// Message is the envelope carried by a message frame.
	Message Message `json:"message,omitempty"`

	// Reply is the JSON value carried by a successful reply frame.
	Reply json.RawMessage `json:"reply,omitempty"`

	// Error is set on a reply frame when the request was not answered.
	Error string `json:"error,omitempty"`
}

type subscription struct {
	id      uint64
	match   Predicate
	handler Handler
}

// Endpoint is one side of a bus connection. It implements Bus.
type Endpoint struct {
	name   string
	logger *slog.Logger

	// write hands an outbound frame to the transport.
	write func(Frame) error
	// onClose releases transport resources.
	onClose func() error

	inbound *eventloop.Loop
	replies *eventloop.Loop

	mu      sync.Mutex
	subs    map[uint64]subscription
	nextSub uint64
	pending map[string]ReplyFunc
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger sets the endpoint's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Endpoint) {
		e.logger = logger
	}
}

func newEndpoint(name string, opts ...Option) *Endpoint {
	e := &Endpoint{
		name:    name,
		logger:  slog.Default(),
		inbound: eventloop.New(name + "-inbound"),
		replies: eventloop.New(name + "-replies"),
		subs:    make(map[uint64]subscription),
		pending: make(map[string]ReplyFunc),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send implements Bus.
func (e *Endpoint) Send(_ context.Context, msg Message) error {
	if e.isClosed() {
		return ErrClosed
	}
	if err := e.write(Frame{ID: uuid.NewString(), Message: msg}); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Method(), err)
	}
	return nil
}

// Request implements Bus.
func (e *Endpoint) Request(_ context.Context, msg Message, onReply ReplyFunc) error {
	id := uuid.NewString()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.pending[id] = onReply
	e.mu.Unlock()

	if err := e.write(Frame{ID: id, ExpectsReply: true, Message: msg}); err != nil {
		e.mu.Lock()
		_, claimed := e.pending[id]
		delete(e.pending, id)
		e.mu.Unlock()
		if !claimed {
			// Close took the entry first and has already queued onReply.
			return nil
		}
		return fmt.Errorf("failed to send %s request: %w", msg.Method(), err)
	}
	return nil
}

// Subscribe implements Bus. Listeners run in registration order.
func (e *Endpoint) Subscribe(match Predicate, handler Handler) func() {
	e.mu.Lock()
	e.nextSub++
	id := e.nextSub
	e.subs[id] = subscription{id: id, match: match, handler: handler}
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Done is closed once the endpoint has been closed.
func (e *Endpoint) Done() <-chan struct{} {
	return e.done
}

// Close shuts the endpoint down. Pending requests receive ErrClosed and
// queued inbound messages are still dispatched. Close must not be called
// from a listener.
func (e *Endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		pending := e.pending
		e.pending = make(map[string]ReplyFunc)
		e.mu.Unlock()

		for _, onReply := range pending {
			e.replies.Post(func() { onReply(Reply{Err: ErrClosed}) })
		}

		e.inbound.Close()
		e.replies.Close()
		if e.onClose != nil {
			err = e.onClose()
		}
		close(e.done)
	})
	return err
}

func (e *Endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// receive accepts a frame from the transport and queues it for dispatch.
func (e *Endpoint) receive(f Frame) error {
	if f.InReplyTo != "" {
		if !e.replies.Post(func() { e.resolve(f) }) {
			return ErrClosed
		}
		return nil
	}
	if !e.inbound.Post(func() { e.dispatch(f) }) {
		return ErrClosed
	}
	return nil
}

func (e *Endpoint) resolve(f Frame) {
	e.mu.Lock()
	onReply, ok := e.pending[f.InReplyTo]
	delete(e.pending, f.InReplyTo)
	e.mu.Unlock()

	if !ok {
		e.logger.Debug("Dropping reply for unknown request", "endpoint", e.name, "request_id", f.InReplyTo)
		return
	}

	reply := Reply{Payload: f.Reply}
	switch {
	case f.Error == ErrNoResponse.Error():
		reply.Err = ErrNoResponse
	case f.Error != "":
		reply.Err = errors.New(f.Error)
	}
	onReply(reply)
}

func (e *Endpoint) dispatch(f Frame) {
	e.mu.Lock()
	subs := make([]subscription, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	e.mu.Unlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	var (
		reply   any
		replied bool
	)
	ctx := context.Background()
	for _, s := range subs {
		if !s.match(f.Message) {
			continue
		}
		r, handled := s.handler(ctx, f.Message)
		if handled && !replied {
			reply, replied = r, true
		}
	}

	if !f.ExpectsReply {
		return
	}

	out := Frame{InReplyTo: f.ID}
	if replied {
		data, err := json.Marshal(reply)
		if err != nil {
			e.logger.Error("Failed to encode reply", "endpoint", e.name, "method", f.Message.Method(), "error", err)
			out.Error = fmt.Sprintf("failed to encode reply: %v", err)
		} else {
			out.Reply = data
		}
	} else {
		out.Error = ErrNoResponse.Error()
	}

	if err := e.write(out); err != nil {
		e.logger.Warn("Failed to deliver reply", "endpoint", e.name, "method", f.Message.Method(), "error", err)
	}
}
