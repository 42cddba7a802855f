package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/metroplatform/metro-host/internal/eventloop"
)

// ReadMissSentinel is handed to read callbacks when a key is absent or the
// lookup fails.
const ReadMissSentinel = "-1"

// Bridge is the asynchronous, per-namespace facade DataSources use to persist
// values. Writes are fire-and-forget; reads deliver their result through a
// callback. All operations run in submission order on the bridge's event
// loop, so a read observes every write submitted before it.
type Bridge struct {
	store  Store
	loop   *eventloop.Loop
	logger *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeLogger sets the logger used for storage failures.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// NewBridge creates a Bridge over store and starts its event loop.
func NewBridge(store Store, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		store:  store,
		loop:   eventloop.New("storage-bridge"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Key returns the composite storage key for a namespaced value.
func Key(namespace, key string) string {
	return namespace + "-" + key
}

// Store persists value under namespace-key, replacing any prior value.
// Failures are logged and never reported to the caller.
func (b *Bridge) Store(namespace, key string, value any) {
	fullKey := Key(namespace, key)
	posted := b.loop.Post(func() {
		if err := SetJSON(context.Background(), b.store, fullKey, value); err != nil {
			b.logger.Error("Failed to store data", "key", fullKey, "error", err)
		}
	})
	if !posted {
		b.logger.Warn("Dropping store on closed storage bridge", "key", fullKey)
	}
}

// Read looks up namespace-key and invokes callback exactly once, after Read
// has returned, with the stored value or ReadMissSentinel.
func (b *Bridge) Read(namespace, key string, callback func(value any)) {
	fullKey := Key(namespace, key)
	posted := b.loop.Post(func() {
		callback(b.lookup(fullKey))
	})
	if !posted {
		b.logger.Warn("Read on closed storage bridge", "key", fullKey)
		go callback(ReadMissSentinel)
	}
}

func (b *Bridge) lookup(fullKey string) any {
	data, err := b.store.Get(context.Background(), fullKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			b.logger.Debug("No stored value", "key", fullKey)
		} else {
			b.logger.Error("Error reading data", "key", fullKey, "error", err)
		}
		return ReadMissSentinel
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		b.logger.Error("Error decoding stored data", "key", fullKey, "error", err)
		return ReadMissSentinel
	}
	return value
}

// Close drains pending operations and stops the event loop. The underlying
// Store is left open.
func (b *Bridge) Close() {
	b.loop.Close()
}
