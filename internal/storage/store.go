// Package storage provides the persistent key-value layer used by the host.
//
// Logical areas are carved out of a single Store with WithPrefix: "sync"
// holds user settings, "local" holds host bookkeeping such as context-menu
// button state, and "data" holds per-DataSource values written through the
// Bridge. A DataSource can only ever reach its own area.
// Values are stored as JSON.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

// ErrNotFound is returned by Store.Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a durable key-value store.
type Store interface {
	// Get returns the raw value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any prior value.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases the store's resources.
	Close() error
}

// GetJSON reads key and decodes it into out.
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode value for key %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes value as JSON and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %q: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// prefixStore namespaces every key of an underlying Store.
type prefixStore struct {
	inner  Store
	prefix string
}

// WithPrefix returns a Store that prepends prefix to every key. Closing the
// returned store is a no-op; the owner of inner closes it.
func WithPrefix(inner Store, prefix string) Store {
	return &prefixStore{inner: inner, prefix: prefix}
}

func (p *prefixStore) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixStore) Set(ctx context.Context, key string, value []byte) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (*prefixStore) Close() error {
	return nil
}
