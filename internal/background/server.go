// Package background stands in for the privileged background process during
// development. It accepts host connections over the bus, logs DataSource
// traffic, owns a simulated context menu and answers load requests by
// initializing the requested DataSource on the host.
package background

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/metroplatform/metro-host/internal/api/common"
	"github.com/metroplatform/metro-host/internal/bus"
)

const maxClickBody = 1 << 20

// ErrNoHost is returned when no host is connected.
var ErrNoHost = errors.New("no host connected")

// MenuItem is a context-menu entry created by a host.
type MenuItem struct {
	Title        string   `json:"title"`
	Type         string   `json:"type"`
	FunctionName string   `json:"functionName"`
	Datasource   string   `json:"datasource"`
	Contexts     []string `json:"contexts,omitempty"`
}

// Push is a datapoint received from a host.
type Push struct {
	Datasource string         `json:"ds"`
	Username   string         `json:"username"`
	Projects   []string       `json:"projects"`
	Datapoint  map[string]any `json:"datapoint"`
}

// Server is the development background.
type Server struct {
	logger     *slog.Logger
	initialize bool

	mu     sync.Mutex
	host   bus.Bus
	menu   []MenuItem
	pushes []Push
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithInitializeOnLoad controls whether a load request is answered with an
// initDatasource request. It is on by default.
func WithInitializeOnLoad(enabled bool) Option {
	return func(s *Server) {
		s.initialize = enabled
	}
}

// New returns a Server with no host attached.
func New(opts ...Option) *Server {
	s := &Server{
		logger:     slog.Default(),
		initialize: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach makes b the current host connection and subscribes to its traffic.
// The returned function detaches it.
func (s *Server) Attach(b bus.Bus) (detach func()) {
	s.mu.Lock()
	s.host = b
	s.mu.Unlock()

	unsubs := []func(){
		b.Subscribe(bus.MethodIs(bus.MethodPush), s.handlePush),
		b.Subscribe(bus.MethodIs(bus.MethodLoad), s.handleLoad(b)),
		b.Subscribe(bus.MethodIs(bus.MethodContextMenuCreate), s.handleMenuCreate),
		b.Subscribe(bus.MethodIs(bus.MethodContextMenuRemoveAll), s.handleMenuRemoveAll),
	}
	s.logger.Info("Host attached")

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
		s.mu.Lock()
		if s.host == b {
			s.host = nil
		}
		s.mu.Unlock()
	}
}

func (s *Server) handlePush(_ context.Context, msg bus.Message) (any, bool) {
	var p Push
	if err := msg.Decode(&p); err != nil {
		s.logger.Warn("Malformed push", "error", err)
		return nil, false
	}
	s.mu.Lock()
	s.pushes = append(s.pushes, p)
	s.mu.Unlock()

	s.logger.Info("Datapoint received", "datasource", p.Datasource, "username", p.Username, "projects", p.Projects)
	return nil, false
}

func (s *Server) handleLoad(b bus.Bus) bus.Handler {
	return func(ctx context.Context, msg bus.Message) (any, bool) {
		baseURL := msg.String("baseURL")
		slug := msg.String("slug")
		s.logger.Info("Load requested", "base_url", baseURL, "slug", slug, "dev_mode", msg["devMode"])

		if !s.initialize {
			return nil, false
		}

		// Loaded code announces itself with its descriptor.
		desc := map[string]any{
			"name":     path.Base(strings.TrimRight(baseURL, "/")),
			"slug":     slug,
			"username": msg["username"],
			"projects": msg["projects"],
			"schema":   map[string]any{},
			"baseURL":  baseURL,
			"devMode":  msg["devMode"],
		}
		req := bus.NewMessage(bus.MethodInitDatasource, map[string]any{"data": desc})
		err := b.Request(ctx, req, func(reply bus.Reply) {
			s.logger.Info("DataSource initialized", "slug", slug, "accepted", reply.Bool(), "error", reply.Err)
		})
		if err != nil {
			s.logger.Warn("Failed to initialize DataSource", "slug", slug, "error", err)
		}
		return nil, false
	}
}

func (s *Server) handleMenuCreate(_ context.Context, msg bus.Message) (any, bool) {
	var item MenuItem
	if err := msg.Decode(&item); err != nil || item.FunctionName == "" {
		s.logger.Warn("Rejected malformed context menu item", "error", err)
		return false, true
	}

	s.mu.Lock()
	s.menu = append(s.menu, item)
	s.mu.Unlock()

	s.logger.Info("Context menu item created", "title", item.Title, "datasource", item.Datasource)
	return true, true
}

func (s *Server) handleMenuRemoveAll(context.Context, bus.Message) (any, bool) {
	s.mu.Lock()
	n := len(s.menu)
	s.menu = nil
	s.mu.Unlock()

	s.logger.Info("Context menu cleared", "removed", n)
	return nil, false
}

// Menu returns the current context-menu items.
func (s *Server) Menu() []MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.menu)
}

// Pushes returns every datapoint received so far.
func (s *Server) Pushes() []Push {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pushes)
}

// Click simulates the user choosing a context-menu item and returns the
// host's reply.
func (s *Server) Click(ctx context.Context, itemType, functionName string, info map[string]any) (bus.Reply, error) {
	s.mu.Lock()
	host := s.host
	s.mu.Unlock()
	if host == nil {
		return bus.Reply{}, ErrNoHost
	}

	msg := bus.Message{
		"type":         itemType,
		"functionName": functionName,
		"contextInfo":  info,
	}
	replies := make(chan bus.Reply, 1)
	if err := host.Request(ctx, msg, func(r bus.Reply) { replies <- r }); err != nil {
		return bus.Reply{}, fmt.Errorf("failed to deliver click: %w", err)
	}

	select {
	case r := <-replies:
		return r, nil
	case <-ctx.Done():
		return bus.Reply{}, ctx.Err()
	}
}

// Handler serves the bus endpoint and a small inspection API.
func (s *Server) Handler(opts ...bus.Option) http.Handler {
	r := chi.NewRouter()

	r.Handle("/bus", bus.NewWebSocketHandler(func(e *bus.Endpoint) {
		detach := s.Attach(e)
		go func() {
			<-e.Done()
			detach()
			s.logger.Info("Host detached")
		}()
	}, opts...))

	r.Get("/menu", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSONResponse(w, s.Menu(), http.StatusOK)
	})
	r.Get("/pushes", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSONResponse(w, s.Pushes(), http.StatusOK)
	})
	r.Post("/menu/{type}/{functionName}", s.clickHandler)

	return r
}

func (s *Server) clickHandler(w http.ResponseWriter, r *http.Request) {
	itemType, ok := common.PathParam(w, r, "type")
	if !ok {
		return
	}
	functionName, ok := common.PathParam(w, r, "functionName")
	if !ok {
		return
	}

	info := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxClickBody)).Decode(&info); err != nil {
			common.WriteErrorResponse(w, "invalid context info: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	reply, err := s.Click(r.Context(), itemType, functionName, info)
	switch {
	case errors.Is(err, ErrNoHost):
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	case err != nil:
		common.WriteErrorResponse(w, err.Error(), http.StatusBadGateway)
	case errors.Is(reply.Err, bus.ErrNoResponse):
		common.WriteErrorResponse(w, "no handler for "+itemType+"/"+functionName, http.StatusNotFound)
	case reply.Err != nil:
		common.WriteErrorResponse(w, reply.Err.Error(), http.StatusBadGateway)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(reply.Payload)
	}
}
