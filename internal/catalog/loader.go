// Package catalog decides which DataSources to load and asks the background
// to load them.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/metroplatform/metro-host/internal/bus"
	"github.com/metroplatform/metro-host/internal/filtering"
	"github.com/metroplatform/metro-host/internal/httpclient"
	hostotel "github.com/metroplatform/metro-host/internal/otel"
	"github.com/metroplatform/metro-host/internal/status"
	"github.com/metroplatform/metro-host/internal/storage"
	"github.com/metroplatform/metro-host/internal/telemetry"
)

const (
	// DefaultEndpoint lists the DataSources enabled for the signed-in user.
	DefaultEndpoint = "https://metro.exchange/api/profile/datasources/"

	// DefaultSourceTemplate is prefixed to a catalog entry's name to locate its code.
	DefaultSourceTemplate = "https://raw.githubusercontent.com/MetroPlatform/Metro-DataSources/master/datasources/"
)

// Settings read from the sync store.
const (
	SettingShouldMonitor = "Settings-shouldMonitorCheckbox"
	SettingDevMode       = "Settings-devModeCheckbox"
	SettingDevModeURL    = "Settings-devModeGithubURL"
)

// Identity of the development DataSource.
const (
	DevSlug     = "test-datasource"
	DevUsername = "test-user"
)

// ErrNoDevSource is returned when dev mode is on but no source URL is set.
var ErrNoDevSource = errors.New("dev mode is enabled but no source URL is configured")

// MenuCleaner clears context-menu entries left by a previous cycle.
type MenuCleaner interface {
	RemoveAll(ctx context.Context) error
}

// Loader runs load cycles.
type Loader struct {
	settings storage.Store
	bus      bus.Bus
	menus    MenuCleaner
	client   httpclient.Client

	endpoint       string
	sourceTemplate string
	statusStore    status.Persistence

	filterMu sync.RWMutex
	filter   filtering.EntryFilter

	logger  *slog.Logger
	metrics *telemetry.CatalogMetrics
	tracer  trace.Tracer
}

// Option configures a Loader.
type Option func(*Loader)

// WithEndpoint overrides the catalog endpoint.
func WithEndpoint(endpoint string) Option {
	return func(l *Loader) {
		l.endpoint = endpoint
	}
}

// WithSourceTemplate overrides the source code URL prefix.
func WithSourceTemplate(template string) Option {
	return func(l *Loader) {
		l.sourceTemplate = template
	}
}

// WithFilter limits which catalog entries are loaded. Dev mode ignores it.
func WithFilter(f filtering.EntryFilter) Option {
	return func(l *Loader) {
		l.filter = f
	}
}

// SetFilter replaces the entry filter used by later cycles. Nil loads every
// entry.
func (l *Loader) SetFilter(f filtering.EntryFilter) {
	l.filterMu.Lock()
	l.filter = f
	l.filterMu.Unlock()
}

func (l *Loader) entryFilter() filtering.EntryFilter {
	l.filterMu.RLock()
	defer l.filterMu.RUnlock()
	return l.filter
}

// WithStatusPersistence records each cycle's outcome.
func WithStatusPersistence(p status.Persistence) Option {
	return func(l *Loader) {
		l.statusStore = p
	}
}

// WithLogger sets the loader's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithMetrics sets the loader's instruments.
func WithMetrics(metrics *telemetry.CatalogMetrics) Option {
	return func(l *Loader) {
		l.metrics = metrics
	}
}

// WithTracer sets the tracer used to span load cycles.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loader) {
		l.tracer = tracer
	}
}

// NewLoader returns a Loader reading settings from the sync store.
func NewLoader(settings storage.Store, b bus.Bus, menus MenuCleaner, client httpclient.Client, opts ...Option) *Loader {
	l := &Loader{
		settings:       settings,
		bus:            b,
		menus:          menus,
		client:         client,
		endpoint:       DefaultEndpoint,
		sourceTemplate: DefaultSourceTemplate,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// cycle accumulates the outcome of one Run.
type cycle struct {
	started   time.Time
	mode      status.Mode
	requested int
}

// Run performs one load cycle. It returns an error only when the cycle was
// abandoned; a catalog that reports an error status is logged and loads
// nothing.
func (l *Loader) Run(ctx context.Context) error {
	ctx, span := hostotel.StartSpan(ctx, l.tracer, telemetry.CycleSpanPrefix+"Run")
	defer span.End()

	c := &cycle{started: time.Now()}

	monitor, err := l.readBool(ctx, SettingShouldMonitor)
	if err != nil {
		l.logger.Warn("Failed to read monitoring setting, treating it as off", "error", err)
	}
	if !monitor {
		l.logger.Info("Monitoring is off, not loading DataSources")
		l.finish(ctx, c, status.CyclePhaseInert, "", telemetry.OutcomeInert)
		return nil
	}

	loading := l.previousStatus(ctx)
	loading.Phase = status.CyclePhaseLoading
	loading.Message = ""
	loading.LastAttempt = &c.started
	l.saveStatus(ctx, loading)

	if err := l.menus.RemoveAll(ctx); err != nil {
		l.logger.Warn("Failed to clear context menu", "error", err)
	}

	err = l.load(ctx, c)
	span.SetAttributes(
		hostotel.AttrCycleMode.String(string(c.mode)),
		hostotel.AttrRequestedSources.Int(c.requested),
	)
	if err != nil {
		hostotel.RecordError(span, err)
		l.logger.Error("Load cycle abandoned", "mode", c.mode, "error", err)
		l.finish(ctx, c, status.CyclePhaseFailed, err.Error(), telemetry.OutcomeFailed)
		return err
	}
	return nil
}

func (l *Loader) load(ctx context.Context, c *cycle) error {
	devMode, err := l.readBool(ctx, SettingDevMode)
	if err != nil {
		return fmt.Errorf("failed to read dev mode setting: %w", err)
	}

	if devMode {
		c.mode = status.ModeDev
		return l.loadDev(ctx, c)
	}
	c.mode = status.ModeCatalog
	return l.loadCatalog(ctx, c)
}

func (l *Loader) loadDev(ctx context.Context, c *cycle) error {
	var url string
	err := storage.GetJSON(ctx, l.settings, SettingDevModeURL, &url)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && url == "") {
		return ErrNoDevSource
	}
	if err != nil {
		return fmt.Errorf("failed to read dev source URL: %w", err)
	}

	if err := l.send(ctx, c, LoadRequest{
		BaseURL:  url,
		Slug:     DevSlug,
		Username: DevUsername,
		DevMode:  true,
	}); err != nil {
		return err
	}

	l.logger.Info("Requested dev DataSource", "base_url", url)
	l.finish(ctx, c, status.CyclePhaseComplete, "", telemetry.OutcomeLoaded)
	return nil
}

func (l *Loader) loadCatalog(ctx context.Context, c *cycle) error {
	body, err := l.client.Get(ctx, l.endpoint)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			trace.SpanFromContext(ctx).SetAttributes(hostotel.AttrHTTPStatusCode.Int(statusErr.StatusCode))
			l.logger.Warn("Catalog endpoint refused the request",
				"status_code", statusErr.StatusCode,
				"retryable", statusErr.Retryable(),
			)
		}
		return fmt.Errorf("failed to fetch catalog: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse catalog: %w", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(hostotel.AttrCatalogStatus.Int(resp.Status))
	if resp.Status != StatusOK {
		l.logger.Error("Catalog returned an error", "status", resp.Status, "message", resp.Message)
		l.finish(ctx, c, status.CyclePhaseFailed, resp.Message, telemetry.OutcomeRejected)
		return nil
	}
	if resp.Content == nil {
		return errors.New("catalog reported success without content")
	}

	filter := l.entryFilter()
	for _, entry := range resp.Content.Datasources {
		projects := entry.ProjectSlugs()
		if filter != nil {
			if ok, reason := filter.ShouldLoad(entry.Name, projects); !ok {
				l.logger.Info("Skipping filtered DataSource", "name", entry.Name, "reason", reason)
				continue
			}
		}
		if err := l.send(ctx, c, LoadRequest{
			BaseURL:  l.sourceTemplate + entry.Name,
			Projects: projects,
			Slug:     entry.Slug,
			Username: resp.Content.Username,
		}); err != nil {
			return err
		}
	}

	l.logger.Info("Requested catalog DataSources", "count", c.requested, "username", resp.Content.Username)
	l.finish(ctx, c, status.CyclePhaseComplete, "", telemetry.OutcomeLoaded)
	return nil
}

func (l *Loader) send(ctx context.Context, c *cycle, req LoadRequest) error {
	if err := l.bus.Send(ctx, req.message()); err != nil {
		return fmt.Errorf("failed to request load of %s: %w", req.Slug, err)
	}
	c.requested++
	l.metrics.RecordLoad(ctx, string(c.mode))
	return nil
}

func (l *Loader) readBool(ctx context.Context, key string) (bool, error) {
	var v bool
	err := storage.GetJSON(ctx, l.settings, key, &v)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v, nil
}

// finish records the cycle's final phase.
func (l *Loader) finish(ctx context.Context, c *cycle, phase status.CyclePhase, message, outcome string) {
	l.metrics.RecordCycle(ctx, string(c.mode), outcome, time.Since(c.started))

	next := &status.CycleStatus{
		Phase:            phase,
		Mode:             c.mode,
		Message:          message,
		RequestedSources: c.requested,
		LastAttempt:      &c.started,
	}
	// Only a failed cycle reads the previous status; an inert one starts fresh.
	switch phase {
	case status.CyclePhaseComplete:
		now := time.Now()
		next.LastSuccess = &now
	case status.CyclePhaseFailed:
		prev := l.previousStatus(ctx)
		next.LastSuccess = prev.LastSuccess
		next.FailureCount = prev.FailureCount + 1
	}
	l.saveStatus(ctx, next)
}

// previousStatus returns the last persisted status, or an empty one.
func (l *Loader) previousStatus(ctx context.Context) *status.CycleStatus {
	if l.statusStore == nil {
		return &status.CycleStatus{}
	}
	prev, err := l.statusStore.LoadStatus(ctx)
	if err != nil || prev == nil {
		return &status.CycleStatus{}
	}
	return prev
}

func (l *Loader) saveStatus(ctx context.Context, s *status.CycleStatus) {
	if l.statusStore == nil {
		return
	}
	if err := l.statusStore.SaveStatus(ctx, s); err != nil {
		l.logger.Warn("Failed to persist load cycle status", "error", err)
	}
}
