package catalog

import (
	"slices"

	"github.com/metroplatform/metro-host/internal/bus"
)

// StatusOK is the catalog status meaning content is present.
const StatusOK = 1

// Response is the catalog API's reply.
type Response struct {
	Status  int      `json:"status"`
	Content *Content `json:"content,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Content lists the DataSources a user has enabled.
type Content struct {
	Username    string  `json:"username"`
	Datasources []Entry `json:"datasources"`
}

// Entry is one enabled DataSource.
type Entry struct {
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	Projects []Project `json:"projects"`
}

// Project is a project an entry reports into.
type Project struct {
	Slug string `json:"slug"`
}

// ProjectSlugs returns the entry's project slugs in catalog order.
func (e Entry) ProjectSlugs() []string {
	slugs := make([]string, 0, len(e.Projects))
	for _, p := range e.Projects {
		slugs = append(slugs, p.Slug)
	}
	return slugs
}

// LoadRequest asks the background to load one DataSource's code.
type LoadRequest struct {
	BaseURL  string
	Projects []string
	Slug     string
	Username string
	DevMode  bool
}

// message encodes the request. Nil projects are sent as null.
func (r LoadRequest) message() bus.Message {
	var projects any
	if r.Projects != nil {
		projects = slices.Clone(r.Projects)
	}
	return bus.NewMessage(bus.MethodLoad, map[string]any{
		"baseURL":  r.BaseURL,
		"projects": projects,
		"slug":     r.Slug,
		"username": r.Username,
		"devMode":  r.DevMode,
	})
}
