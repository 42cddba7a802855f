// Package app wires the DataSource host together and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/metroplatform/metro-host/internal/config"
	"github.com/metroplatform/metro-host/internal/filtering"
)

// ErrBackgroundLost is returned by Start when the background connection ends
// while the host is running.
var ErrBackgroundLost = errors.New("lost connection to background")

// HostApp encapsulates all components needed to run the DataSource host
type HostApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// owned lists what Stop must close, in order
	owned []func() error

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start runs the load coordinator and the status API until Stop is called.
// It returns early if either fails or the background connection drops.
func (app *HostApp) Start() error {
	g, ctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		return app.components.Coordinator.Start(ctx)
	})

	g.Go(func() error {
		slog.Info("Status API listening", "address", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-app.components.Transport.Done():
		}
		// Nothing can be loaded or clicked without the background; stop so a
		// supervisor can restart the host against a fresh connection.
		slog.Error("Lost connection to background, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		defer cancel()
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Status API did not shut down cleanly", "error", err)
		}
		return ErrBackgroundLost
	})

	return g.Wait()
}

// Stop shuts the host down, giving the HTTP server up to timeout to drain
func (app *HostApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down host...")

	if err := app.components.Coordinator.Stop(); err != nil {
		slog.Error("Failed to stop load coordinator", "error", err)
	}
	app.cancelFunc()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	shutdownErr := app.httpServer.Shutdown(shutdownCtx)

	app.components.Registrar.Close()
	app.components.Bridge.Close()
	for _, closeFn := range app.owned {
		if err := closeFn(); err != nil {
			slog.Warn("Failed to release resource", "error", err)
		}
	}

	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}
	slog.Info("Host shutdown complete")
	return nil
}

// Reload applies the hot-reloadable parts of cfg, currently the catalog
// filter, and runs a fresh load cycle. Other changes need a restart.
func (app *HostApp) Reload(cfg *config.Config) {
	app.components.Loader.SetFilter(filtering.New(cfg.Catalog.Filter))
	app.components.Coordinator.Trigger()
	slog.Info("Applied configuration update")
}

// GetConfig returns the application configuration
func (app *HostApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *HostApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired components
func (app *HostApp) Components() *AppComponents {
	return app.components
}
