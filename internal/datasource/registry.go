package datasource

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/metroplatform/metro-host/internal/bus"
	"github.com/metroplatform/metro-host/internal/telemetry"
)

// Source is a DataSource's own code, handed its Client when started.
type Source interface {
	OnStart(client *Client)
}

// State is the lifecycle position of a slug.
type State string

// Slug states. A slug the registry has never seen is uninitialized.
const (
	StateInitialized State = "Initialized"
	StateStarted     State = "Started"
)

type entry struct {
	descriptor    Descriptor
	client        *Client
	source        Source
	state         State
	initializedAt time.Time
	startedAt     time.Time
}

// Info is a read-only snapshot of an active DataSource.
type Info struct {
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	Username      string     `json:"username"`
	Projects      []string   `json:"projects"`
	DevMode       bool       `json:"devMode"`
	State         State      `json:"state"`
	InitializedAt time.Time  `json:"initializedAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
}

// Registry is the process-wide table of active DataSources, keyed by slug.
// It is created at startup and lives until the process exits; entries are
// never removed.
type Registry struct {
	bus       bus.Bus
	store     DataStore
	registrar ButtonRegistrar
	dialogs   DialogPresenter
	logger    *slog.Logger
	metrics   *telemetry.DatasourceMetrics

	mu      sync.RWMutex
	entries map[string]*entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger. Clients log through it too.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics sets the instruments used by the registry and its clients.
func WithMetrics(metrics *telemetry.DatasourceMetrics) Option {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

// NewRegistry returns an empty registry whose clients use the given collaborators.
func NewRegistry(b bus.Bus, store DataStore, registrar ButtonRegistrar, dialogs DialogPresenter, opts ...Option) *Registry {
	r := &Registry{
		bus:       b,
		store:     store,
		registrar: registrar,
		dialogs:   dialogs,
		logger:    slog.Default(),
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize creates the Client for desc. It returns false, leaving the
// existing entry untouched, only when desc's slug is already active.
func (r *Registry) Initialize(ctx context.Context, desc Descriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[desc.Slug]; ok {
		r.logger.Info("DataSource is already active", "slug", desc.Slug)
		r.metrics.RecordInitialization(ctx, telemetry.OutcomeDuplicate)
		return false
	}

	r.entries[desc.Slug] = &entry{
		descriptor:    desc,
		client:        r.newClient(desc),
		state:         StateInitialized,
		initializedAt: time.Now(),
	}
	r.logger.Info("DataSource initialized", "datasource", desc.Name, "slug", desc.Slug)
	r.metrics.RecordInitialization(ctx, telemetry.OutcomeAccepted)
	return true
}

func (r *Registry) newClient(desc Descriptor) *Client {
	return &Client{
		datasource: desc.Name,
		slug:       desc.Slug,
		username:   desc.Username,
		projects:   slices.Clone(desc.Projects),
		schema:     desc.Schema,
		bus:        r.bus,
		store:      r.store,
		registrar:  r.registrar,
		dialogs:    r.dialogs,
		logger:     r.logger.With("datasource", desc.Name, "slug", desc.Slug),
		metrics:    r.metrics,
	}
}

// Start attaches source to the entry registered under name and hands it its
// Client. Unknown names are not started. Starting an already started entry
// re-attaches the source and calls OnStart again.
func (r *Registry) Start(name string, source Source) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("DataSource not initialized, not starting it", "datasource", name)
		return false
	}
	e.source = source
	e.state = StateStarted
	e.startedAt = time.Now()
	client := e.client
	r.mu.Unlock()

	source.OnStart(client)
	r.logger.Info("DataSource enabled", "datasource", name)
	return true
}

// Client returns the Client created for slug.
func (r *Registry) Client(slug string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[slug]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// State returns the lifecycle state of slug, or "" if it was never initialized.
func (r *Registry) State(slug string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[slug]; ok {
		return e.state
	}
	return ""
}

// List returns a snapshot of every active DataSource ordered by slug.
func (r *Registry) List() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		info := Info{
			Name:          e.descriptor.Name,
			Slug:          e.descriptor.Slug,
			Username:      e.descriptor.Username,
			Projects:      slices.Clone(e.descriptor.Projects),
			DevMode:       e.descriptor.DevMode,
			State:         e.state,
			InitializedAt: e.initializedAt,
		}
		if !e.startedAt.IsZero() {
			started := e.startedAt
			info.StartedAt = &started
		}
		infos = append(infos, info)
	}
	r.mu.RUnlock()

	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(a.Slug, b.Slug)
	})
	return infos
}

// Listen answers initDatasource requests arriving on b with the result of
// Initialize.
func (r *Registry) Listen(b bus.Bus) (unsubscribe func()) {
	return b.Subscribe(bus.MethodIs(bus.MethodInitDatasource), func(ctx context.Context, msg bus.Message) (any, bool) {
		desc, err := decodeDescriptor(msg)
		if err != nil {
			r.logger.Warn("Malformed initDatasource request", "error", err)
			r.metrics.RecordInitialization(ctx, telemetry.OutcomeInvalid)
			return false, true
		}
		return r.Initialize(ctx, desc), true
	})
}

func decodeDescriptor(msg bus.Message) (Descriptor, error) {
	var desc Descriptor
	data, err := json.Marshal(msg["data"])
	if err != nil {
		return desc, err
	}
	err = json.Unmarshal(data, &desc)
	return desc, err
}
