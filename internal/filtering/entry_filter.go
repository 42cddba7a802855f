package filtering

import (
	"fmt"

	"github.com/metroplatform/metro-host/internal/config"
)

// EntryFilter decides whether a catalog entry is loaded
type EntryFilter interface {
	ShouldLoad(name string, projects []string) (bool, string)
}

type entryFilter struct {
	names    NameFilter
	projects ProjectFilter

	nameInclude, nameExclude       []string
	projectInclude, projectExclude []string
}

// New builds an EntryFilter from cfg. A nil cfg admits every entry.
func New(cfg *config.FilterConfig) EntryFilter {
	return NewWithFilters(cfg, NewNameFilter(), NewProjectFilter())
}

// NewWithFilters builds an EntryFilter with custom axis filters
func NewWithFilters(cfg *config.FilterConfig, names NameFilter, projects ProjectFilter) EntryFilter {
	f := &entryFilter{names: names, projects: projects}
	if cfg == nil {
		return f
	}
	if cfg.Names != nil {
		f.nameInclude, f.nameExclude = cfg.Names.Include, cfg.Names.Exclude
	}
	if cfg.Projects != nil {
		f.projectInclude, f.projectExclude = cfg.Projects.Include, cfg.Projects.Exclude
	}
	return f
}

func (f *entryFilter) ShouldLoad(name string, projects []string) (bool, string) {
	ok, nameReason := f.names.ShouldInclude(name, f.nameInclude, f.nameExclude)
	if !ok {
		return false, "name filter: " + nameReason
	}
	ok, projectReason := f.projects.ShouldInclude(projects, f.projectInclude, f.projectExclude)
	if !ok {
		return false, "project filter: " + projectReason
	}
	return true, fmt.Sprintf("name filter: %s; project filter: %s", nameReason, projectReason)
}
