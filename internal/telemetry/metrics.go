package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DatasourceMetricsMeterName is the name used for the DataSource metrics meter
	DatasourceMetricsMeterName = "github.com/metroplatform/metro-host/datasource"

	// CatalogMetricsMeterName is the name used for the catalog loader metrics meter
	CatalogMetricsMeterName = "github.com/metroplatform/metro-host/catalog"
)

// Outcome labels shared by the host's counters.
const (
	OutcomePushed    = "pushed"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeCreated   = "created"
	OutcomeRejected  = "rejected"
	OutcomeInert     = "inert"
	OutcomeLoaded    = "loaded"
)

// DatasourceMetrics holds the OpenTelemetry instruments for DataSource activity
type DatasourceMetrics struct {
	datapoints      metric.Int64Counter
	initializations metric.Int64Counter
	activeSources   metric.Int64UpDownCounter
	buttons         metric.Int64Counter
}

// NewDatasourceMetrics creates a new DatasourceMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewDatasourceMetrics(provider metric.MeterProvider) (*DatasourceMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DatasourceMetricsMeterName)

	datapoints, err := meter.Int64Counter(
		"metro_host_datapoints_total",
		metric.WithDescription("Datapoints submitted by DataSources, by outcome"),
		metric.WithUnit("{datapoint}"),
	)
	if err != nil {
		return nil, err
	}

	initializations, err := meter.Int64Counter(
		"metro_host_datasource_initializations_total",
		metric.WithDescription("DataSource initialization requests, by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	activeSources, err := meter.Int64UpDownCounter(
		"metro_host_active_datasources",
		metric.WithDescription("Number of initialized DataSources"),
		metric.WithUnit("{datasource}"),
	)
	if err != nil {
		return nil, err
	}

	buttons, err := meter.Int64Counter(
		"metro_host_context_menu_registrations_total",
		metric.WithDescription("Context-menu button registrations, by outcome"),
		metric.WithUnit("{registration}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatasourceMetrics{
		datapoints:      datapoints,
		initializations: initializations,
		activeSources:   activeSources,
		buttons:         buttons,
	}, nil
}

// RecordDatapoint counts a datapoint submitted by a DataSource
func (m *DatasourceMetrics) RecordDatapoint(ctx context.Context, datasource, outcome string) {
	if m == nil || m.datapoints == nil {
		return
	}

	m.datapoints.Add(ctx, 1, metric.WithAttributes(
		attribute.String("datasource", datasource),
		attribute.String("outcome", outcome),
	))
}

// RecordInitialization counts an initDatasource request and tracks accepted sources
func (m *DatasourceMetrics) RecordInitialization(ctx context.Context, outcome string) {
	if m == nil || m.initializations == nil {
		return
	}

	m.initializations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == OutcomeAccepted {
		m.activeSources.Add(ctx, 1)
	}
}

// RecordButtonRegistration counts a context-menu registration attempt
func (m *DatasourceMetrics) RecordButtonRegistration(ctx context.Context, datasource, outcome string) {
	if m == nil || m.buttons == nil {
		return
	}

	m.buttons.Add(ctx, 1, metric.WithAttributes(
		attribute.String("datasource", datasource),
		attribute.String("outcome", outcome),
	))
}

// CatalogMetrics holds the OpenTelemetry instruments for catalog load cycles
type CatalogMetrics struct {
	cycleDuration metric.Float64Histogram
	loads         metric.Int64Counter
}

// NewCatalogMetrics creates a new CatalogMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewCatalogMetrics(provider metric.MeterProvider) (*CatalogMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CatalogMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"metro_host_load_cycle_duration_seconds",
		metric.WithDescription("Duration of DataSource load cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	loads, err := meter.Int64Counter(
		"metro_host_load_requests_total",
		metric.WithDescription("Load requests sent to the background"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &CatalogMetrics{
		cycleDuration: cycleDuration,
		loads:         loads,
	}, nil
}

// RecordCycle records the duration and outcome of a load cycle
func (m *CatalogMetrics) RecordCycle(ctx context.Context, mode, outcome string, duration time.Duration) {
	if m == nil || m.cycleDuration == nil {
		return
	}

	m.cycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	))
}

// RecordLoad counts a load request sent for a DataSource
func (m *CatalogMetrics) RecordLoad(ctx context.Context, mode string) {
	if m == nil || m.loads == nil {
		return
	}

	m.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
