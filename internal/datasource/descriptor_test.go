package datasource

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("name field", func(t *testing.T) {
		t.Parallel()
		var d Descriptor
		require.NoError(t, json.Unmarshal([]byte(`{"name":"reddit","slug":"r","projects":["a","b"],"schema":{"title":""}}`), &d))
		assert.Equal(t, "reddit", d.Name)
		assert.Equal(t, []string{"a", "b"}, d.Projects)
		assert.Contains(t, d.Schema, "title")
	})

	t.Run("legacy datasource field", func(t *testing.T) {
		t.Parallel()
		var d Descriptor
		require.NoError(t, json.Unmarshal([]byte(`{"datasource":"reddit","slug":"r"}`), &d))
		assert.Equal(t, "reddit", d.Name)
	})

	t.Run("name wins over legacy field", func(t *testing.T) {
		t.Parallel()
		var d Descriptor
		require.NoError(t, json.Unmarshal([]byte(`{"name":"reddit","datasource":"old","slug":"r"}`), &d))
		assert.Equal(t, "reddit", d.Name)
	})

	t.Run("null projects stay nil", func(t *testing.T) {
		t.Parallel()
		var d Descriptor
		require.NoError(t, json.Unmarshal([]byte(`{"name":"dev","slug":"test-datasource","projects":null}`), &d))
		assert.Nil(t, d.Projects)
	})
}
