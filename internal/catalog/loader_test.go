package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/metroplatform/metro-host/internal/bus"
	busmocks "github.com/metroplatform/metro-host/internal/bus/mocks"
	"github.com/metroplatform/metro-host/internal/config"
	"github.com/metroplatform/metro-host/internal/filtering"
	"github.com/metroplatform/metro-host/internal/httpclient"
	httpmocks "github.com/metroplatform/metro-host/internal/httpclient/mocks"
	"github.com/metroplatform/metro-host/internal/status"
	statusmocks "github.com/metroplatform/metro-host/internal/status/mocks"
	"github.com/metroplatform/metro-host/internal/storage"
)

// recordingStore remembers which keys were read.
type recordingStore struct {
	storage.Store
	mu    sync.Mutex
	reads []string
}

func (s *recordingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	s.reads = append(s.reads, key)
	s.mu.Unlock()
	return s.Store.Get(ctx, key)
}

// events records the order of outbound activity across collaborators.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

type fakeMenus struct {
	events *events
	err    error
}

func (m *fakeMenus) RemoveAll(context.Context) error {
	m.events.add(bus.MethodContextMenuRemoveAll)
	return m.err
}

type harness struct {
	settings *recordingStore
	bus      *busmocks.MockBus
	client   *httpmocks.MockClient
	events   *events
	menus    *fakeMenus
	status   status.Persistence
	loads    []bus.Message
	logs     *bytes.Buffer
}

func newHarness(t *testing.T, settings map[string]any) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)
	h := &harness{
		settings: &recordingStore{Store: storage.NewMemoryStore()},
		bus:      busmocks.NewMockBus(ctrl),
		client:   httpmocks.NewMockClient(ctrl),
		events:   &events{},
		status:   status.NewFilePersistence(t.TempDir()),
		logs:     &bytes.Buffer{},
	}
	h.menus = &fakeMenus{events: h.events}
	for k, v := range settings {
		require.NoError(t, storage.SetJSON(context.Background(), h.settings.Store, k, v))
	}
	return h
}

// expectLoads captures every message sent on the bus.
func (h *harness) expectLoads() {
	h.bus.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg bus.Message) error {
		h.events.add(msg.Method())
		h.loads = append(h.loads, msg)
		return nil
	}).AnyTimes()
}

func (h *harness) loader(opts ...Option) *Loader {
	logger := slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]Option{WithStatusPersistence(h.status), WithLogger(logger)}, opts...)
	return NewLoader(h.settings, h.bus, h.menus, h.client, opts...)
}

func (h *harness) lastStatus(t *testing.T) *status.CycleStatus {
	t.Helper()
	s, err := h.status.LoadStatus(context.Background())
	require.NoError(t, err)
	return s
}

func catalogBody(t *testing.T, resp Response) []byte {
	t.Helper()
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	return data
}

func TestLoader_GateOffIsInert(t *testing.T) {
	t.Parallel()

	for name, settings := range map[string]map[string]any{
		"gate false":  {SettingShouldMonitor: false, SettingDevMode: true},
		"gate absent": {SettingDevMode: true},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, settings)

			// no bus or HTTP expectations: any call fails the test
			require.NoError(t, h.loader().Run(context.Background()))

			assert.Equal(t, []string{SettingShouldMonitor}, h.settings.reads)
			assert.Empty(t, h.events.log)
			assert.Equal(t, status.CyclePhaseInert, h.lastStatus(t).Phase)
		})
	}
}

func TestLoader_GateOffWritesFreshStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{SettingShouldMonitor: false})

	lastSuccess := time.Now().Add(-time.Hour)
	require.NoError(t, h.status.SaveStatus(context.Background(), &status.CycleStatus{
		Phase:        status.CyclePhaseFailed,
		LastSuccess:  &lastSuccess,
		FailureCount: 3,
	}))

	require.NoError(t, h.loader().Run(context.Background()))

	s := h.lastStatus(t)
	assert.Equal(t, status.CyclePhaseInert, s.Phase)
	assert.Nil(t, s.LastSuccess)
	assert.Zero(t, s.FailureCount)
	assert.NotNil(t, s.LastAttempt)
}

func TestLoader_GateOffDoesNotReadStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	ctrl := gomock.NewController(t)
	persistence := statusmocks.NewMockPersistence(ctrl)
	// no LoadStatus expectation: reading the old status fails the test
	persistence.EXPECT().SaveStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s *status.CycleStatus) error {
			assert.Equal(t, status.CyclePhaseInert, s.Phase)
			return nil
		})

	require.NoError(t, h.loader(WithStatusPersistence(persistence)).Run(context.Background()))
}

func TestLoader_DevMode(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{
		SettingShouldMonitor: true,
		SettingDevMode:       true,
		SettingDevModeURL:    "https://github.com/me/my-datasource",
	})
	h.expectLoads()

	require.NoError(t, h.loader().Run(context.Background()))

	assert.Equal(t, []string{bus.MethodContextMenuRemoveAll, bus.MethodLoad}, h.events.log)
	require.Len(t, h.loads, 1)
	load := h.loads[0]
	assert.Equal(t, "https://github.com/me/my-datasource", load["baseURL"])
	assert.Equal(t, DevSlug, load["slug"])
	assert.Equal(t, DevUsername, load["username"])
	assert.Equal(t, true, load["devMode"])
	assert.Nil(t, load["projects"])

	s := h.lastStatus(t)
	assert.Equal(t, status.CyclePhaseComplete, s.Phase)
	assert.Equal(t, status.ModeDev, s.Mode)
	assert.Equal(t, 1, s.RequestedSources)
	assert.NotNil(t, s.LastSuccess)
}

func TestLoader_DevModeWithoutURLIsAbandoned(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{SettingShouldMonitor: true, SettingDevMode: true})

	err := h.loader().Run(context.Background())
	require.ErrorIs(t, err, ErrNoDevSource)
	assert.Equal(t, []string{bus.MethodContextMenuRemoveAll}, h.events.log)
	assert.Equal(t, status.CyclePhaseFailed, h.lastStatus(t).Phase)
}

func TestLoader_UnreadableDevModeSettingIsAbandoned(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{SettingShouldMonitor: true, SettingDevMode: "yes please"})

	err := h.loader().Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read dev mode setting")
	assert.Equal(t, 1, h.lastStatus(t).FailureCount)
}

func TestLoader_CatalogLoadsEveryEntry(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{SettingShouldMonitor: true, SettingDevMode: false})
	h.expectLoads()

	h.client.EXPECT().Get(gomock.Any(), "https://catalog.test/datasources/").Return(catalogBody(t, Response{
		Status: StatusOK,
		Content: &Content{
			Username: "alice",
			Datasources: []Entry{
				{Name: "reddit", Slug: "reddit-alice", Projects: []Project{{Slug: "news"}, {Slug: "memes"}}},
				{Name: "hackernews", Slug: "hn-alice", Projects: []Project{}},
			},
		},
	}), nil)

	loader := h.loader(
		WithEndpoint("https://catalog.test/datasources/"),
		WithSourceTemplate("https://code.test/ds/"),
	)
	require.NoError(t, loader.Run(context.Background()))

	require.Len(t, h.loads, 2)
	assert.Equal(t, "https://code.test/ds/reddit", h.loads[0]["baseURL"])
	assert.Equal(t, []string{"news", "memes"}, h.loads[0]["projects"])
	assert.Equal(t, "reddit-alice", h.loads[0]["slug"])
	assert.Equal(t, "alice", h.loads[0]["username"])
	assert.Equal(t, false, h.loads[0]["devMode"])

	assert.Equal(t, "https://code.test/ds/hackernews", h.loads[1]["baseURL"])
	assert.Equal(t, []string{}, h.loads[1]["projects"])

	assert.Equal(t, bus.MethodContextMenuRemoveAll, h.events.log[0])
	assert.NotContains(t, h.settings.reads, SettingDevModeURL)

	s := h.lastStatus(t)
	assert.Equal(t, status.CyclePhaseComplete, s.Phase)
	assert.Equal(t, status.ModeCatalog, s.Mode)
	assert.Equal(t, 2, s.RequestedSources)
}

func TestLoader_FilterSkipsCatalogEntries(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{SettingShouldMonitor: true})
	h.expectLoads()

	h.client.EXPECT().Get(gomock.Any(), gomock.Any()).Return(catalogBody(t, Response{
		Status: StatusOK,
		Content: &Content{
			Username: "alice",
			Datasources: []Entry{
				{Name: "reddit", Slug: "r", Projects: []Project{{Slug: "news"}}},
				{Name: "reddit-beta", Slug: "rb", Projects: []Project{{Slug: "news"}}},
				{Name: "reddit-old", Slug: "ro", Projects: []Project{{Slug: "archived"}}},
				{Name: "hackernews", Slug: "hn"},
			},
		},
	}), nil)

	filter := filtering.New(&config.FilterConfig{
		Names:    &config.PatternFilterConfig{Include: []string{"reddit*"}, Exclude: []string{"*-beta"}},
		Projects: &config.PatternFilterConfig{Exclude: []string{"archived"}},
	})
	require.NoError(t, h.loader(WithFilter(filter)).Run(context.Background()))

	require.Len(t, h.loads, 1)
	assert.Equal(t, "r", h.loads[0]["slug"])
	assert.Equal(t, 1, h.lastStatus(t).RequestedSources)
}

func TestLoader_CatalogErrorStatusLoadsNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{SettingShouldMonitor: true})

	h.client.EXPECT().Get(gomock.Any(), DefaultEndpoint).
		Return(catalogBody(t, Response{Status: 0, Message: "not logged in"}), nil)

	require.NoError(t, h.loader().Run(context.Background()))

	assert.Equal(t, []string{bus.MethodContextMenuRemoveAll}, h.events.log)
	assert.Equal(t, 1, strings.Count(h.logs.String(), `"message":"not logged in"`))

	s := h.lastStatus(t)
	assert.Equal(t, status.CyclePhaseFailed, s.Phase)
	assert.Equal(t, "not logged in", s.Message)
}

func TestLoader_CatalogFailuresAbortTheCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    []byte
		err     error
		errText string
	}{
		{name: "transport failure", err: errors.New("connection refused"), errText: "failed to fetch catalog"},
		{name: "bad gateway", err: &httpclient.StatusError{StatusCode: 502, URL: DefaultEndpoint}, errText: "answered 502 Bad Gateway"},
		{name: "not JSON", body: []byte("<html>oops</html>"), errText: "failed to parse catalog"},
		{name: "success without content", body: []byte(`{"status":1}`), errText: "without content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, map[string]any{SettingShouldMonitor: true})
			h.client.EXPECT().Get(gomock.Any(), gomock.Any()).Return(tt.body, tt.err)

			err := h.loader().Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
			assert.Equal(t, []string{bus.MethodContextMenuRemoveAll}, h.events.log)
			assert.Equal(t, status.CyclePhaseFailed, h.lastStatus(t).Phase)
		})
	}
}

func TestLoader_LogsWhetherCatalogStatusIsRetryable(t *testing.T) {
	t.Parallel()

	for code, retryable := range map[int]bool{
		http.StatusServiceUnavailable: true,
		http.StatusTooManyRequests:    true,
		http.StatusUnauthorized:       false,
	} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, map[string]any{SettingShouldMonitor: true})
			h.client.EXPECT().Get(gomock.Any(), gomock.Any()).
				Return(nil, &httpclient.StatusError{StatusCode: code, URL: DefaultEndpoint})

			require.Error(t, h.loader().Run(context.Background()))

			var refused map[string]any
			for _, line := range strings.Split(strings.TrimSpace(h.logs.String()), "\n") {
				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(line), &entry))
				if entry["msg"] == "Catalog endpoint refused the request" {
					refused = entry
					break
				}
			}
			require.NotNil(t, refused, "expected a refused-request log line")
			assert.Equal(t, float64(code), refused["status_code"])
			assert.Equal(t, retryable, refused["retryable"])
		})
	}
}

func TestLoader_BusFailureAbortsTheCycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{SettingShouldMonitor: true, SettingDevMode: true, SettingDevModeURL: "https://x.test/ds"})
	h.bus.EXPECT().Send(gomock.Any(), gomock.Any()).Return(bus.ErrClosed)

	err := h.loader().Run(context.Background())
	assert.ErrorIs(t, err, bus.ErrClosed)
}

func TestLoader_MenuCleanupFailureDoesNotStopLoading(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{SettingShouldMonitor: true, SettingDevMode: true, SettingDevModeURL: "https://x.test/ds"})
	h.menus.err = errors.New("port closed")
	h.expectLoads()

	require.NoError(t, h.loader().Run(context.Background()))
	assert.Len(t, h.loads, 1)
}

func TestLoader_FailureCountResetsOnSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]any{SettingShouldMonitor: true})
	h.expectLoads()

	gomock.InOrder(
		h.client.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("offline")),
		h.client.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("offline")),
		h.client.EXPECT().Get(gomock.Any(), gomock.Any()).Return([]byte(`{"status":1,"content":{"username":"u","datasources":[]}}`), nil),
	)

	loader := h.loader()
	require.Error(t, loader.Run(context.Background()))
	require.Error(t, loader.Run(context.Background()))
	assert.Equal(t, 2, h.lastStatus(t).FailureCount)

	require.NoError(t, loader.Run(context.Background()))
	s := h.lastStatus(t)
	assert.Equal(t, 0, s.FailureCount)
	assert.Equal(t, status.CyclePhaseComplete, s.Phase)
}

func TestLoader_AgainstHTTPCatalog(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":1,"content":{"username":"bob","datasources":[{"name":"twitter","slug":"tw","projects":[{"slug":"p1"}]}]}}`))
	}))
	defer server.Close()

	host, background := bus.NewPipe()
	t.Cleanup(func() {
		_ = host.Close()
		<-background.Done()
	})
	loads := make(chan bus.Message, 1)
	background.Subscribe(bus.MethodIs(bus.MethodLoad), func(_ context.Context, msg bus.Message) (any, bool) {
		loads <- msg
		return nil, false
	})

	settings := storage.NewMemoryStore()
	require.NoError(t, storage.SetJSON(context.Background(), settings, SettingShouldMonitor, true))

	loader := NewLoader(settings, host, &fakeMenus{events: &events{}}, httpclient.NewDefaultClient(0), WithEndpoint(server.URL))
	require.NoError(t, loader.Run(context.Background()))

	msg := <-loads
	assert.Equal(t, DefaultSourceTemplate+"twitter", msg["baseURL"])
	assert.Equal(t, []string{"p1"}, msg["projects"])
	assert.Equal(t, "bob", msg["username"])
}
