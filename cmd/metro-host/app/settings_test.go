package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metroplatform/metro-host/internal/catalog"
	"github.com/metroplatform/metro-host/internal/storage"
)

func TestSettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		setting string
		value   string
		key     string
		want    any
		wantErr string
	}{
		{name: "monitor on", setting: "monitor", value: "true", key: catalog.SettingShouldMonitor, want: true},
		{name: "dev mode off", setting: "dev-mode", value: "0", key: catalog.SettingDevMode, want: false},
		{name: "dev url", setting: "dev-url", value: "https://github.com/me/ds", key: catalog.SettingDevModeURL, want: "https://github.com/me/ds"},
		{
			name: "dev url without scheme", setting: "dev-url", value: "raw.githubusercontent.com/me/ds",
			wantErr: `dev-url is not a valid url: "raw.githubusercontent.com/me/ds"`,
		},
		{name: "not a bool", setting: "monitor", value: "sometimes", wantErr: "monitor must be true or false"},
		{name: "unknown", setting: "volume", value: "11", wantErr: `unknown setting "volume" (known: dev-mode, dev-url, monitor)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := storage.NewMemoryStore()

			err := setSetting(ctx, store, tt.setting, tt.value)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			var got any
			require.NoError(t, storage.GetJSON(ctx, store, tt.key, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetSetting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	var out bytes.Buffer
	require.NoError(t, getSetting(ctx, store, "monitor", &out))
	assert.Equal(t, "(unset)\n", out.String())

	require.NoError(t, setSetting(ctx, store, "monitor", "true"))
	out.Reset()
	require.NoError(t, getSetting(ctx, store, "monitor", &out))
	assert.Equal(t, "true\n", out.String())
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--format", "json"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"go_version"`)
}
