package filtering

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// NameFilter matches DataSource names against glob patterns
type NameFilter interface {
	// ShouldInclude reports whether name passes the include/exclude patterns
	// and why.
	ShouldInclude(name string, include, exclude []string) (bool, string)
}

type globNameFilter struct{}

var _ NameFilter = globNameFilter{}

// NewNameFilter returns the glob based NameFilter
func NewNameFilter() NameFilter {
	return globNameFilter{}
}

// matchPattern reports whether name matches pattern. filepath.Match rejects
// malformed patterns; gobwas/glob does the matching so '*' spans slashes.
func matchPattern(pattern, name string) (bool, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return false, err
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid glob pattern: %w", err)
	}
	return g.Match(name), nil
}

// firstMatch returns the first pattern name matches, or "" when none does.
func firstMatch(patterns []string, name string) (string, error) {
	for _, p := range patterns {
		ok, err := matchPattern(p, name)
		if err != nil {
			return "", fmt.Errorf("pattern %q: %w", p, err)
		}
		if ok {
			return p, nil
		}
	}
	return "", nil
}

func (globNameFilter) ShouldInclude(name string, include, exclude []string) (bool, string) {
	p, err := firstMatch(exclude, name)
	if err != nil {
		return false, "invalid exclude " + err.Error()
	}
	if p != "" {
		return false, fmt.Sprintf("excluded by pattern %q", p)
	}

	if len(include) == 0 {
		return true, "not excluded"
	}
	p, err = firstMatch(include, name)
	switch {
	case err != nil:
		return false, "invalid include " + err.Error()
	case p == "":
		return false, fmt.Sprintf("matches none of %v", include)
	default:
		return true, fmt.Sprintf("included by pattern %q", p)
	}
}
