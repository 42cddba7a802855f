package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

func TestNewMeterProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		cfg           *Config
		expectNoOp    bool
		expectHandler bool
	}{
		{
			name:       "returns no-op provider when no config provided",
			expectNoOp: true,
		},
		{
			name:       "returns no-op provider when metrics disabled",
			cfg:        &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: false}},
			expectNoOp: true,
		},
		{
			name: "returns SDK provider for OTLP",
			cfg:  &Config{Enabled: true, Insecure: true, Metrics: &MetricsConfig{Enabled: true}},
		},
		{
			name:          "returns SDK provider and scrape handler for Prometheus",
			cfg:           &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Exporter: ExporterPrometheus}},
			expectHandler: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			mp, handler, err := newMeterProvider(ctx, tt.cfg, resource.Default())
			require.NoError(t, err)
			require.NotNil(t, mp)
			assert.Equal(t, tt.expectHandler, handler != nil)

			if tt.expectNoOp {
				_, ok := mp.(noop.MeterProvider)
				assert.True(t, ok, "expected no-op meter provider")
				return
			}

			sdkMP, ok := mp.(*sdkmetric.MeterProvider)
			require.True(t, ok, "expected SDK meter provider")
			// no collector is running, so flush errors on shutdown are expected
			defer func() { _ = sdkMP.Shutdown(ctx) }()

			if handler != nil {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}
