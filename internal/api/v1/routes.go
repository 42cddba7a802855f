// Package v1 serves the host's view of its DataSources and load cycles.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/metroplatform/metro-host/internal/api/common"
	"github.com/metroplatform/metro-host/internal/datasource"
	"github.com/metroplatform/metro-host/internal/status"
)

//go:generate mockgen -destination=mocks/mock_lister.go -package=mocks -source=routes.go DatasourceLister

// DatasourceLister reports the active DataSources
type DatasourceLister interface {
	// List returns every active DataSource ordered by slug
	List() []datasource.Info
}

// ListDatasourcesResponse is the body of GET /v1/datasources
type ListDatasourcesResponse struct {
	Datasources []datasource.Info `json:"datasources"`
	Total       int               `json:"total"`
}

type routes struct {
	sources  DatasourceLister
	statuses status.Persistence
}

// Router returns the v1 routes
func Router(sources DatasourceLister, statuses status.Persistence) http.Handler {
	rt := &routes{sources: sources, statuses: statuses}

	r := chi.NewRouter()
	r.Get("/datasources", rt.listDatasources)
	r.Get("/datasources/{slug}", rt.getDatasource)
	r.Get("/status", rt.getStatus)
	return r
}

func (rt *routes) listDatasources(w http.ResponseWriter, _ *http.Request) {
	infos := rt.sources.List()
	common.WriteJSONResponse(w, ListDatasourcesResponse{Datasources: infos, Total: len(infos)}, http.StatusOK)
}

func (rt *routes) getDatasource(w http.ResponseWriter, r *http.Request) {
	slug, ok := common.PathParam(w, r, "slug")
	if !ok {
		return
	}

	for _, info := range rt.sources.List() {
		if info.Slug == slug {
			common.WriteJSONResponse(w, info, http.StatusOK)
			return
		}
	}
	common.WriteErrorResponse(w, "datasource not found: "+slug, http.StatusNotFound)
}

func (rt *routes) getStatus(w http.ResponseWriter, r *http.Request) {
	s, err := rt.statuses.LoadStatus(r.Context())
	if err != nil {
		slog.Error("Failed to load cycle status", "error", err)
		common.WriteErrorResponse(w, "failed to load status", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, s, http.StatusOK)
}
