package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/metroplatform/metro-host/internal/api"
	"github.com/metroplatform/metro-host/internal/background"
)

func newBackgroundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "background",
		Short: "Run a development background",
		Long: `Run a stand-in for the privileged background process.

Hosts connect to ws://<address>/bus. Pushed datapoints and load requests are
logged, context-menu buttons are accepted, and every load request is answered
by initializing the DataSource on the host. The current menu and received
datapoints are served on /menu and /pushes; POST /menu/{type}/{functionName}
with a JSON context simulates a click.`,
		RunE: runBackground,
	}

	cmd.Flags().String("address", ":9090", "Address to listen on")
	cmd.Flags().Bool("initialize", true, "Answer load requests by initializing the DataSource")
	return cmd
}

func runBackground(cmd *cobra.Command, _ []string) error {
	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return err
	}
	initialize, err := cmd.Flags().GetBool("initialize")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, api.LoggingMiddleware)
	r.Mount("/", background.New(background.WithInitializeOnLoad(initialize)).Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Background listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("background server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
