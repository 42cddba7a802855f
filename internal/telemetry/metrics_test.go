package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader, scopeName string) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != scopeName {
			continue
		}
		for _, m := range scope.Metrics {
			found[m.Name] = m
		}
	}
	return found
}

func TestNewDatasourceMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewDatasourceMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		t.Parallel()

		var metrics *DatasourceMetrics
		metrics.RecordDatapoint(context.Background(), "reddit", OutcomePushed)
		metrics.RecordInitialization(context.Background(), OutcomeAccepted)
		metrics.RecordButtonRegistration(context.Background(), "reddit", OutcomeCreated)
	})
}

func TestDatasourceMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewDatasourceMetrics(mp)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordDatapoint(ctx, "reddit", OutcomePushed)
	metrics.RecordDatapoint(ctx, "reddit", OutcomeDropped)
	metrics.RecordInitialization(ctx, OutcomeAccepted)
	metrics.RecordInitialization(ctx, OutcomeDuplicate)
	metrics.RecordButtonRegistration(ctx, "reddit", OutcomeRejected)

	found := collect(t, reader, DatasourceMetricsMeterName)

	datapoints, ok := found["metro_host_datapoints_total"]
	require.True(t, ok)
	sum, ok := datapoints.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2)

	active, ok := found["metro_host_active_datasources"]
	require.True(t, ok)
	activeSum, ok := active.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, activeSum.DataPoints, 1)
	assert.Equal(t, int64(1), activeSum.DataPoints[0].Value)

	assert.Contains(t, found, "metro_host_datasource_initializations_total")
	assert.Contains(t, found, "metro_host_context_menu_registrations_total")
}

func TestCatalogMetrics_Record(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewCatalogMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)

		metrics.RecordCycle(context.Background(), "catalog", OutcomeLoaded, time.Second)
		metrics.RecordLoad(context.Background(), "catalog")
	})

	t.Run("records cycle duration in seconds", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewCatalogMetrics(mp)
		require.NoError(t, err)

		ctx := context.Background()
		metrics.RecordCycle(ctx, "dev", OutcomeLoaded, 1500*time.Millisecond)
		metrics.RecordLoad(ctx, "dev")

		found := collect(t, reader, CatalogMetricsMeterName)

		cycle, ok := found["metro_host_load_cycle_duration_seconds"]
		require.True(t, ok)
		hist, ok := cycle.Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, hist.DataPoints, 1)
		assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 0.001)

		assert.Contains(t, found, "metro_host_load_requests_total")
	})
}
