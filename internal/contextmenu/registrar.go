package contextmenu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/metroplatform/metro-host/internal/bus"
	"github.com/metroplatform/metro-host/internal/storage"
	"github.com/metroplatform/metro-host/internal/telemetry"
)

// Registrar creates context-menu buttons at most once per DataSource and
// routes menu clicks to the handler installed for each button.
type Registrar struct {
	bus     bus.Bus
	store   storage.Store
	logger  *slog.Logger
	metrics *telemetry.DatasourceMetrics

	flights singleflight.Group

	// stateMu serialises read-modify-write of the persisted button state.
	stateMu sync.Mutex

	mu       sync.RWMutex
	handlers map[handlerKey]ButtonFunc

	unsubscribe func()
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithLogger sets the registrar's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registrar) {
		r.logger = logger
	}
}

// WithMetrics sets the instruments used to count registrations.
func WithMetrics(metrics *telemetry.DatasourceMetrics) Option {
	return func(r *Registrar) {
		r.metrics = metrics
	}
}

// NewRegistrar returns a Registrar that persists button state in local and
// listens on b for menu clicks.
func NewRegistrar(b bus.Bus, local storage.Store, opts ...Option) *Registrar {
	r := &Registrar{
		bus:      b,
		store:    local,
		logger:   slog.Default(),
		handlers: make(map[handlerKey]ButtonFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.unsubscribe = b.Subscribe(isMenuClick, r.handleClick)
	return r
}

// Register creates button unless its DataSource already has one. It reports
// whether this call created the button. Concurrent calls for the same
// DataSource share one attempt; only the caller that made it sees true.
func (r *Registrar) Register(ctx context.Context, button Button, fn ButtonFunc) (bool, error) {
	if button.Source == "" {
		return false, ErrNoSource
	}

	leader := false
	v, err, _ := r.flights.Do(button.Source, func() (any, error) {
		leader = true
		return r.register(ctx, button, fn)
	})
	if err != nil {
		return false, err
	}
	return leader && v.(bool), nil
}

func (r *Registrar) register(ctx context.Context, button Button, fn ButtonFunc) (bool, error) {
	logger := r.logger.With("datasource", button.Source, "function", button.FunctionName)

	state, err := r.Registered(ctx)
	if err != nil {
		r.metrics.RecordButtonRegistration(ctx, button.Source, telemetry.OutcomeFailed)
		return false, err
	}
	if slices.Contains(state, button.Source) {
		logger.Debug("Context-menu button already registered")
		r.metrics.RecordButtonRegistration(ctx, button.Source, telemetry.OutcomeDuplicate)
		return false, nil
	}

	reply, err := r.request(ctx, button.message())
	if err != nil {
		logger.Warn("Failed to create context-menu button", "error", err)
		r.metrics.RecordButtonRegistration(ctx, button.Source, telemetry.OutcomeFailed)
		return false, err
	}
	if !reply.Bool() {
		logger.Warn("Background rejected context-menu button")
		r.metrics.RecordButtonRegistration(ctx, button.Source, telemetry.OutcomeRejected)
		return false, ErrRejected
	}

	if err := r.markRegistered(ctx, button.Source); err != nil {
		logger.Error("Failed to persist context-menu button state", "error", err)
		r.metrics.RecordButtonRegistration(ctx, button.Source, telemetry.OutcomeFailed)
		return false, err
	}

	// Clicks are only dispatched for buttons the state records.
	r.mu.Lock()
	r.handlers[handlerKey{buttonType: button.Type, functionName: button.FunctionName}] = fn
	r.mu.Unlock()

	logger.Info("Context-menu button created")
	r.metrics.RecordButtonRegistration(ctx, button.Source, telemetry.OutcomeCreated)
	return true, nil
}

// request sends msg and blocks until the reply arrives or ctx ends.
func (r *Registrar) request(ctx context.Context, msg bus.Message) (bus.Reply, error) {
	replies := make(chan bus.Reply, 1)
	if err := r.bus.Request(ctx, msg, func(reply bus.Reply) {
		replies <- reply
	}); err != nil {
		return bus.Reply{}, fmt.Errorf("failed to send %s: %w", msg.Method(), err)
	}

	select {
	case reply := <-replies:
		if reply.Err != nil {
			return reply, fmt.Errorf("%s failed: %w", msg.Method(), reply.Err)
		}
		return reply, nil
	case <-ctx.Done():
		return bus.Reply{}, ctx.Err()
	}
}

// Registered returns the DataSources that already have a button.
func (r *Registrar) Registered(ctx context.Context) ([]string, error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.loadState(ctx)
}

func (r *Registrar) loadState(ctx context.Context) ([]string, error) {
	var state []string
	err := storage.GetJSON(ctx, r.store, ButtonStateKey, &state)
	if errors.Is(err, storage.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read context-menu button state: %w", err)
	}
	return state, nil
}

func (r *Registrar) markRegistered(ctx context.Context, source string) error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	state, err := r.loadState(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(state, source) {
		return nil
	}
	if err := storage.SetJSON(ctx, r.store, ButtonStateKey, append(state, source)); err != nil {
		return fmt.Errorf("failed to write context-menu button state: %w", err)
	}
	return nil
}

// RemoveAll asks the background to drop every context-menu entry.
func (r *Registrar) RemoveAll(ctx context.Context) error {
	if err := r.bus.Send(ctx, bus.NewMessage(bus.MethodContextMenuRemoveAll, nil)); err != nil {
		return fmt.Errorf("failed to send %s: %w", bus.MethodContextMenuRemoveAll, err)
	}
	return nil
}

// Close stops dispatching menu clicks.
func (r *Registrar) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

func isMenuClick(msg bus.Message) bool {
	_, hasType := msg[fieldType]
	_, hasFunction := msg[fieldFunctionName]
	return hasType && hasFunction && msg.Method() == ""
}

func (r *Registrar) handleClick(ctx context.Context, msg bus.Message) (any, bool) {
	key := handlerKey{buttonType: msg.String(fieldType), functionName: msg.String(fieldFunctionName)}

	r.mu.RLock()
	fn, ok := r.handlers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	info, _ := msg[fieldContextInfo].(map[string]any)
	return fn(ctx, ContextInfo(info)), true
}
