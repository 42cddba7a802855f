package filtering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameFilter_ShouldInclude(t *testing.T) {
	t.Parallel()

	filter := NewNameFilter()

	tests := []struct {
		name       string
		dsName     string
		include    []string
		exclude    []string
		want       bool
		wantReason string
	}{
		{
			name:       "no patterns",
			dsName:     "reddit",
			want:       true,
			wantReason: "not excluded",
		},
		{
			name:       "include match",
			dsName:     "reddit-comments",
			include:    []string{"twitter-*", "reddit-*"},
			want:       true,
			wantReason: `included by pattern "reddit-*"`,
		},
		{
			name:       "include miss",
			dsName:     "hackernews",
			include:    []string{"reddit-*"},
			want:       false,
			wantReason: "matches none of [reddit-*]",
		},
		{
			name:       "exclude wins over include",
			dsName:     "reddit-beta",
			include:    []string{"reddit-*"},
			exclude:    []string{"*-beta"},
			want:       false,
			wantReason: `excluded by pattern "*-beta"`,
		},
		{
			name:    "star spans slashes",
			dsName:  "social/reddit",
			include: []string{"social*"},
			want:    true,
		},
		{
			name:    "question mark is one character",
			dsName:  "ds10",
			include: []string{"ds?"},
			want:    false,
		},
		{
			name:    "invalid include pattern",
			dsName:  "reddit",
			include: []string{"[reddit"},
			want:    false,
		},
		{
			name:    "invalid exclude pattern",
			dsName:  "reddit",
			exclude: []string{"[reddit"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, reason := filter.ShouldInclude(tt.dsName, tt.include, tt.exclude)
			assert.Equal(t, tt.want, got, reason)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, reason)
			}
		})
	}
}
