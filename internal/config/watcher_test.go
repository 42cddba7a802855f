package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchedConfig = `background:
  url: ws://localhost:9090/bus
storage:
  inMemory: true
`

type changes struct {
	mu   sync.Mutex
	seen []*Config
}

func (c *changes) record(cfg *Config) {
	c.mu.Lock()
	c.seen = append(c.seen, cfg)
	c.mu.Unlock()
}

func (c *changes) last() *Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seen) == 0 {
		return nil
	}
	return c.seen[len(c.seen)-1]
}

func TestNewWatcher_InvalidInitialConfig(t *testing.T) {
	t.Parallel()

	_, err := NewWatcher(writeConfig(t, "storage:\n  inMemory: true"), nil)
	require.Error(t, err)
}

func TestWatcher_Reload(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, watchedConfig)
	var got changes
	w, err := NewWatcher(path, got.record)
	require.NoError(t, err)
	assert.Empty(t, w.Current().Catalog.Jitter)

	require.NoError(t, os.WriteFile(path, []byte(watchedConfig+"catalog:\n  jitter: 5s\n"), 0o600))
	require.NoError(t, w.Reload())
	assert.Equal(t, "5s", w.Current().Catalog.Jitter)
	assert.Same(t, w.Current(), got.last())

	require.NoError(t, os.WriteFile(path, []byte("background: [broken"), 0o600))
	require.Error(t, w.Reload())
	assert.Equal(t, "5s", w.Current().Catalog.Jitter, "last good config is kept")
}

func TestWatcher_WatchPicksUpWrites(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, watchedConfig)
	var got changes
	w, err := NewWatcher(path, got.record)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(ctx) }()

	update := watchedConfig + "catalog:\n  filter:\n    names:\n      include: [\"reddit*\"]\n"
	assert.Eventually(t, func() bool {
		// Rewrite until the watcher has registered and seen the change.
		_ = os.WriteFile(path, []byte(update), 0o600)
		cfg := got.last()
		return cfg != nil && cfg.Catalog.Filter != nil
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"reddit*"}, got.last().Catalog.Filter.Names.Include)

	cancel()
	require.NoError(t, <-errCh)
}
