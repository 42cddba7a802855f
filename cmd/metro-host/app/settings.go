package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	hostapp "github.com/metroplatform/metro-host/internal/app"
	"github.com/metroplatform/metro-host/internal/catalog"
	"github.com/metroplatform/metro-host/internal/config"
	"github.com/metroplatform/metro-host/internal/storage"
)

// setting maps a command-line name to its stored key. rule is a validator
// tag checked against string values.
type setting struct {
	key    string
	isBool bool
	rule   string
}

var settings = map[string]setting{
	"monitor":  {key: catalog.SettingShouldMonitor, isBool: true},
	"dev-mode": {key: catalog.SettingDevMode, isBool: true},
	"dev-url":  {key: catalog.SettingDevModeURL, rule: "url"},
}

var settingValidate = validator.New()

func settingNames() []string {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func lookupSetting(name string) (setting, error) {
	s, ok := settings[name]
	if !ok {
		return setting{}, fmt.Errorf("unknown setting %q (known: %s)", name, strings.Join(settingNames(), ", "))
	}
	return s, nil
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change the settings that control DataSource loading",
		Long: `Read and change the settings that control DataSource loading.

Known settings:
  monitor   load DataSources at all (true/false)
  dev-mode  load a single development DataSource instead of the catalog
  dev-url   base URL of the development DataSource

The host must not be running, since it holds the database open.`,
	}
	cmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := cmd.MarkPersistentFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettingsStore(cmd, func(store storage.Store) error {
				return getSetting(cmd.Context(), store, args[0], cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettingsStore(cmd, func(store storage.Store) error {
				return setSetting(cmd.Context(), store, args[0], args[1])
			})
		},
	})

	return cmd
}

func withSettingsStore(cmd *cobra.Command, fn func(storage.Store) error) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Storage.InMemory {
		return errors.New("settings cannot be changed for an in-memory store")
	}

	store, err := hostapp.OpenStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(hostapp.Settings(store))
}

func getSetting(ctx context.Context, store storage.Store, name string, out io.Writer) error {
	s, err := lookupSetting(name)
	if err != nil {
		return err
	}

	var value any
	err = storage.GetJSON(ctx, store, s.key, &value)
	if errors.Is(err, storage.ErrNotFound) {
		_, err = fmt.Fprintln(out, "(unset)")
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	_, err = fmt.Fprintln(out, value)
	return err
}

func setSetting(ctx context.Context, store storage.Store, name, raw string) error {
	s, err := lookupSetting(name)
	if err != nil {
		return err
	}

	var value any = raw
	if s.isBool {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s must be true or false: %w", name, err)
		}
		value = b
	}
	if s.rule != "" {
		if err := settingValidate.Var(raw, s.rule); err != nil {
			return fmt.Errorf("%s is not a valid %s: %q", name, s.rule, raw)
		}
	}

	if err := storage.SetJSON(ctx, store, s.key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
