package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	hostapp "github.com/metroplatform/metro-host/internal/app"
	"github.com/metroplatform/metro-host/internal/config"
	"github.com/metroplatform/metro-host/internal/telemetry"
	"github.com/metroplatform/metro-host/internal/versions"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the DataSource host",
		Long: `Run the DataSource host.

The host connects to the background given in the configuration file (--config),
loads the DataSources enabled in the user's settings and serves a status API.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", "", "Status API address (overrides api.address)")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.Flags().Bool("watch", true, "Reload the catalog filter when the configuration file changes")
	if err := viper.BindPFlag("serve.address", cmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
	if err := viper.BindPFlag("serve.config", cmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
	}
	if err := viper.BindPFlag("serve.watch", cmd.Flags().Lookup("watch")); err != nil {
		slog.Error("Failed to bind watch flag", "error", err)
	}
	if err := cmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := viper.GetString("serve.config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", configPath, "background", cfg.Background.URL)

	if cfg.Telemetry != nil && cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = versions.GetVersionInfo().Version
	}
	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	opts := []hostapp.HostAppOptions{
		hostapp.WithConfig(cfg),
		hostapp.WithTelemetry(tel),
	}
	if address := viper.GetString("serve.address"); address != "" {
		opts = append(opts, hostapp.WithAddress(address))
	}

	host, err := hostapp.NewHostApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build host: %w", err)
	}

	if viper.GetBool("serve.watch") {
		watcher, err := config.NewWatcher(configPath, host.Reload)
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("Configuration watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- host.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := host.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop host", "error", stopErr)
		}
		return err
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	if err := host.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errCh
}
