package filtering

import (
	"fmt"
	"slices"
)

// ProjectFilter matches the projects a DataSource reports into
type ProjectFilter interface {
	ShouldInclude(projects []string, include, exclude []string) (bool, string)
}

type exactProjectFilter struct{}

var _ ProjectFilter = exactProjectFilter{}

// NewProjectFilter returns a ProjectFilter comparing slugs exactly
func NewProjectFilter() ProjectFilter {
	return exactProjectFilter{}
}

func (exactProjectFilter) ShouldInclude(projects []string, include, exclude []string) (bool, string) {
	for _, p := range projects {
		if slices.Contains(exclude, p) {
			return false, fmt.Sprintf("excluded by project %q", p)
		}
	}
	if len(include) == 0 {
		return true, "not excluded"
	}
	for _, p := range projects {
		if slices.Contains(include, p) {
			return true, fmt.Sprintf("included by project %q", p)
		}
	}
	return false, fmt.Sprintf("reports into none of %v", include)
}
