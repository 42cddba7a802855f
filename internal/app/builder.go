package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/metroplatform/metro-host/internal/api"
	"github.com/metroplatform/metro-host/internal/bus"
	"github.com/metroplatform/metro-host/internal/catalog"
	"github.com/metroplatform/metro-host/internal/config"
	"github.com/metroplatform/metro-host/internal/contextmenu"
	"github.com/metroplatform/metro-host/internal/datasource"
	"github.com/metroplatform/metro-host/internal/dialog"
	"github.com/metroplatform/metro-host/internal/filtering"
	"github.com/metroplatform/metro-host/internal/httpclient"
	"github.com/metroplatform/metro-host/internal/status"
	"github.com/metroplatform/metro-host/internal/storage"
	"github.com/metroplatform/metro-host/internal/telemetry"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// Settings, host state and DataSource data share one database under
	// these prefixes.
	syncPrefix  = "sync/"
	localPrefix = "local/"
	dataPrefix  = "data/"

	tracerName = "github.com/metroplatform/metro-host/catalog"
)

// HostAppOptions is a function that configures the host app builder
type HostAppOptions func(*hostAppConfig) error

// hostAppConfig supports injecting components for tests while defaulting to
// production implementations
type hostAppConfig struct {
	config *config.Config

	// Optional component overrides
	store      storage.Store
	transport  Transport
	renderer   dialog.Renderer
	httpClient httpclient.Client
	telemetry  *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...HostAppOptions) (*hostAppConfig, error) {
	cfg := &hostAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.API.GetAddress()
	}

	return cfg, nil
}

// NewHostApp builds a HostApp from the given options
func NewHostApp(ctx context.Context, opts ...HostAppOptions) (*HostApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	var owned []func() error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			for _, closeFn := range owned {
				_ = closeFn()
			}
		}
	}()

	if cfg.store == nil {
		cfg.store, err = OpenStore(cfg.config.Storage)
		if err != nil {
			return nil, err
		}
		owned = append(owned, cfg.store.Close)
	}

	if cfg.transport == nil {
		cfg.transport, err = dialBackground(ctx, cfg.config.Background)
		if err != nil {
			return nil, err
		}
		// The connection goes first so nothing writes to a closed store.
		owned = append([]func() error{cfg.transport.Close}, owned...)
	}

	components, err := buildComponents(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	return &HostApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		owned:      owned,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress overrides the status API listen address
func WithAddress(addr string) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middleware chain
func WithMiddlewares(mw ...func(http.Handler) http.Handler) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStore uses store instead of opening the configured database. The
// caller keeps ownership of it.
func WithStore(store storage.Store) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.store = store
		return nil
	}
}

// WithTransport uses t instead of dialing the configured background. The
// caller keeps ownership of it.
func WithTransport(t Transport) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.transport = t
		return nil
	}
}

// WithDialogRenderer overrides the terminal dialog renderer
func WithDialogRenderer(r dialog.Renderer) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.renderer = r
		return nil
	}
}

// WithHTTPClient overrides the catalog HTTP client
func WithHTTPClient(c httpclient.Client) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithTelemetry instruments the host with t's providers
func WithTelemetry(t *telemetry.Telemetry) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// OpenStore opens the badger database described by sc
func OpenStore(sc config.StorageConfig) (storage.Store, error) {
	badgerCfg := storage.InMemoryBadgerConfig()
	if !sc.InMemory {
		badgerCfg = storage.DefaultBadgerConfig(sc.Path)
	}
	badgerCfg.Logger = slog.Default()

	slog.Info("Opening store", "path", sc.Path, "in_memory", sc.InMemory)
	store, err := storage.NewBadgerStore(badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

// Settings returns the area of store holding user settings
func Settings(store storage.Store) storage.Store {
	return storage.WithPrefix(store, syncPrefix)
}

// dialBackground connects to the background, retrying with exponential
// backoff for up to the configured connect timeout so the host can start
// before the background does.
func dialBackground(ctx context.Context, bc config.BackgroundConfig) (*bus.Endpoint, error) {
	slog.Info("Connecting to background", "url", bc.URL)
	endpoint, err := backoff.Retry(ctx,
		func() (*bus.Endpoint, error) {
			return bus.Dial(ctx, bc.URL)
		},
		backoff.WithMaxElapsedTime(bc.GetConnectTimeout()),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Background not reachable yet, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("background unreachable: %w", err)
	}
	return endpoint, nil
}

// buildComponents wires the DataSource machinery around the store and transport
func buildComponents(b *hostAppConfig) (*AppComponents, error) {
	slog.Info("Initializing host components")

	var (
		dsMetrics      *telemetry.DatasourceMetrics
		catalogMetrics *telemetry.CatalogMetrics
		loaderOpts     []catalog.Option
	)
	if b.telemetry != nil {
		var err error
		if dsMetrics, err = telemetry.NewDatasourceMetrics(b.telemetry.MeterProvider()); err != nil {
			return nil, fmt.Errorf("failed to create datasource metrics: %w", err)
		}
		if catalogMetrics, err = telemetry.NewCatalogMetrics(b.telemetry.MeterProvider()); err != nil {
			return nil, fmt.Errorf("failed to create catalog metrics: %w", err)
		}
		loaderOpts = append(loaderOpts, catalog.WithTracer(b.telemetry.Tracer(tracerName)))
	}

	settings := Settings(b.store)
	local := storage.WithPrefix(b.store, localPrefix)

	bridge := storage.NewBridge(storage.WithPrefix(b.store, dataPrefix))
	registrar := contextmenu.NewRegistrar(b.transport, local, contextmenu.WithMetrics(dsMetrics))

	renderer := b.renderer
	if renderer == nil {
		renderer = dialog.NewTerminalRenderer(dialog.WithAccessible(b.config.Dialog.Accessible))
	}
	var presenterOpts []dialog.PresenterOption
	if b.config.Dialog.Title != "" {
		presenterOpts = append(presenterOpts, dialog.WithTitle(b.config.Dialog.Title))
	}
	presenter := dialog.NewPresenter(renderer, presenterOpts...)

	registry := datasource.NewRegistry(b.transport, bridge, registrar, presenter, datasource.WithMetrics(dsMetrics))
	registry.Listen(b.transport)

	client := b.httpClient
	if client == nil {
		client = httpclient.NewDefaultClient(b.config.Catalog.GetTimeout())
	}
	if b.config.Catalog.Endpoint != "" {
		loaderOpts = append(loaderOpts, catalog.WithEndpoint(b.config.Catalog.Endpoint))
	}
	if b.config.Catalog.SourceTemplate != "" {
		loaderOpts = append(loaderOpts, catalog.WithSourceTemplate(b.config.Catalog.SourceTemplate))
	}
	loaderOpts = append(loaderOpts,
		catalog.WithStatusPersistence(status.NewFilePersistence(b.config.Status.GetPath())),
		catalog.WithMetrics(catalogMetrics),
		catalog.WithFilter(filtering.New(b.config.Catalog.Filter)),
	)
	loader := catalog.NewLoader(settings, b.transport, registrar, client, loaderOpts...)

	coordinator := catalog.NewCoordinator(loader,
		b.config.Catalog.GetReloadInterval(),
		catalog.WithJitter(b.config.Catalog.GetJitter()),
	)

	slog.Info("Host components initialized successfully")
	return &AppComponents{
		Loader:      loader,
		Coordinator: coordinator,
		Registry:    registry,
		Registrar:   registrar,
		Presenter:   presenter,
		Bridge:      bridge,
		Transport:   b.transport,
		Store:       b.store,
	}, nil
}

// buildHTTPServer builds the status API server with router and middleware
func buildHTTPServer(b *hostAppConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	var serverOpts []api.ServerOption
	if b.telemetry != nil {
		apiMetrics, err := telemetry.NewStatusAPIMetrics(b.telemetry.MeterProvider(), api.MetricsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create status API metrics: %w", err)
		}
		if apiMetrics != nil {
			b.middlewares = append([]func(http.Handler) http.Handler{apiMetrics.Middleware}, b.middlewares...)
			slog.Info("Status API metrics enabled")
		}
		if h := b.telemetry.MetricsHandler(); h != nil {
			serverOpts = append(serverOpts, api.WithMetricsHandler(h))
		}
	}
	serverOpts = append(serverOpts, api.WithMiddlewares(b.middlewares...))

	router := api.NewServer(components.Registry, status.NewFilePersistence(b.config.Status.GetPath()), serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
