package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a configuration file whenever it changes on disk. Invalid
// updates are logged and skipped; the last good configuration stays current.
type Watcher struct {
	path     string
	onChange func(*Config)

	mu      sync.RWMutex
	current *Config
}

// NewWatcher loads path and returns a Watcher calling onChange with every
// later valid version of it.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	cfg, err := LoadConfig(WithConfigPath(path))
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate symlinks: %w", err)
	}
	return &Watcher{path: resolved, onChange: onChange, current: cfg}, nil
}

// Current returns the last valid configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Reload reads the file again and, if it is valid, makes it current and
// notifies onChange.
func (w *Watcher) Reload() error {
	cfg, err := LoadConfig(WithConfigPath(w.path))
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	slog.Info("Configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
	return nil
}

// Watch blocks, reloading on changes, until ctx is cancelled.
//
// The directory is watched rather than the file so editors that replace the
// file by rename are still seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	slog.Info("Watching configuration file", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := w.Reload(); err != nil {
					slog.Error("Ignoring invalid configuration update", "path", w.path, "error", err)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			slog.Warn("Configuration watcher error", "error", err)
		}
	}
}
