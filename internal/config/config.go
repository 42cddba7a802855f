// Package config provides configuration loading and management for the DataSource host.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/metroplatform/metro-host/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of environment variables read by metro-host
	EnvPrefix = "METRO_HOST"

	// DefaultAPIAddress is where the status API listens
	DefaultAPIAddress = ":8080"

	// DefaultStatusPath is the directory holding the load-cycle status file
	DefaultStatusPath = "./data"

	// DefaultCatalogTimeout bounds a single catalog request
	DefaultCatalogTimeout = 30 * time.Second

	// DefaultConnectTimeout bounds retries of the initial background connection
	DefaultConnectTimeout = 30 * time.Second
)

var structValidate = validator.New()

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Catalog    CatalogConfig     `yaml:"catalog"`
	Background BackgroundConfig  `yaml:"background"`
	Storage    StorageConfig     `yaml:"storage"`
	Status     StatusConfig      `yaml:"status,omitempty"`
	API        APIConfig         `yaml:"api,omitempty"`
	Dialog     DialogConfig      `yaml:"dialog,omitempty"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
}

// CatalogConfig controls where enabled DataSources are discovered
type CatalogConfig struct {
	// Endpoint is the catalog API URL. Defaults to the public Metro catalog.
	Endpoint string `yaml:"endpoint,omitempty" validate:"omitempty,url"`

	// SourceTemplate is prefixed to an entry's name to locate its code
	SourceTemplate string `yaml:"sourceTemplate,omitempty" validate:"omitempty,url"`

	// Timeout bounds one catalog request (e.g. "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// ReloadInterval reruns the load cycle periodically. Empty runs it once.
	ReloadInterval string `yaml:"reloadInterval,omitempty"`

	// Jitter spreads reloads by up to this much either way
	Jitter string `yaml:"jitter,omitempty"`

	// Filter narrows which catalog entries are loaded
	Filter *FilterConfig `yaml:"filter,omitempty"`
}

// FilterConfig selects catalog entries by name and by project
type FilterConfig struct {
	// Names holds glob patterns matched against entry names
	Names *PatternFilterConfig `yaml:"names,omitempty"`

	// Projects holds project slugs matched exactly
	Projects *PatternFilterConfig `yaml:"projects,omitempty"`
}

// PatternFilterConfig is an include/exclude list; exclude wins
type PatternFilterConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// BackgroundConfig locates the privileged background process
type BackgroundConfig struct {
	// URL is the background's WebSocket bus endpoint, e.g. "ws://localhost:9090/bus"
	URL string `yaml:"url" validate:"required,url"`

	// ConnectTimeout is how long to keep retrying the first connection (e.g. "30s")
	ConnectTimeout string `yaml:"connectTimeout,omitempty"`
}

// StorageConfig defines the key-value store backing settings and button state
type StorageConfig struct {
	// Path is the badger data directory
	Path string `yaml:"path,omitempty"`

	// InMemory keeps everything in memory; nothing survives a restart
	InMemory bool `yaml:"inMemory,omitempty"`
}

// StatusConfig defines where load-cycle status is written
type StatusConfig struct {
	Path string `yaml:"path,omitempty"`
}

// APIConfig defines the status API listener
type APIConfig struct {
	Address string `yaml:"address,omitempty"`
}

// DialogConfig defines how input dialogs are rendered
type DialogConfig struct {
	// Title is shown above every dialog
	Title string `yaml:"title,omitempty"`

	// Accessible renders dialogs as plain prompts for screen readers
	Accessible bool `yaml:"accessible,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := structValidate.Struct(c); err != nil {
		return err
	}

	for field, value := range map[string]string{
		"catalog.timeout":           c.Catalog.Timeout,
		"catalog.reloadInterval":    c.Catalog.ReloadInterval,
		"catalog.jitter":            c.Catalog.Jitter,
		"background.connectTimeout": c.Background.ConnectTimeout,
	} {
		if err := validateDuration(field, value); err != nil {
			return err
		}
	}

	if f := c.Catalog.Filter; f != nil && f.Names != nil {
		for _, p := range append(slices.Clone(f.Names.Include), f.Names.Exclude...) {
			if _, err := filepath.Match(p, ""); err != nil {
				return fmt.Errorf("catalog.filter.names: invalid pattern %q: %w", p, err)
			}
		}
	}

	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required unless storage.inMemory is set")
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

// validateDuration accepts an empty value or a positive duration
func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '1h'): %w", field, err)
	}
	if d < 0 {
		return errors.New(field + " must not be negative")
	}
	return nil
}

// GetTimeout returns the catalog request timeout
func (c *CatalogConfig) GetTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultCatalogTimeout
}

// GetReloadInterval returns the reload interval, or zero to load once
func (c *CatalogConfig) GetReloadInterval() time.Duration {
	d, _ := time.ParseDuration(c.ReloadInterval)
	return d
}

// GetJitter returns the reload jitter
func (c *CatalogConfig) GetJitter() time.Duration {
	d, _ := time.ParseDuration(c.Jitter)
	return d
}

// GetConnectTimeout returns how long to retry the initial connection
func (b *BackgroundConfig) GetConnectTimeout() time.Duration {
	if d, err := time.ParseDuration(b.ConnectTimeout); err == nil && d > 0 {
		return d
	}
	return DefaultConnectTimeout
}

// GetPath returns the status directory, using the default if not specified
func (s *StatusConfig) GetPath() string {
	if s.Path == "" {
		return DefaultStatusPath
	}
	return s.Path
}

// GetAddress returns the API listen address, using the default if not specified
func (a *APIConfig) GetAddress() string {
	if a.Address == "" {
		return DefaultAPIAddress
	}
	return a.Address
}
