package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// CycleSpanPrefix starts the name of every span a catalog load cycle opens.
const CycleSpanPrefix = "catalog."

// newTracerProvider returns an SDK tracer provider exporting over OTLP HTTP,
// or a no-op provider when tracing is disabled.
func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource) (trace.TracerProvider, error) {
	if cfg == nil || cfg.Tracing == nil || !cfg.Tracing.Enabled {
		slog.Info("Tracing disabled, using no-op tracer provider")
		return noop.NewTracerProvider(), nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.GetEndpoint())}
	if cfg.GetInsecure() {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(newHostSampler(cfg.Tracing)),
	)
	otel.SetTracerProvider(tp)

	slog.Info("Tracing initialized",
		"endpoint", cfg.GetEndpoint(),
		"sampling_ratio", cfg.Tracing.GetSampling(),
		"cycle_sampling_ratio", cfg.Tracing.GetCycleSampling(),
		"insecure", cfg.GetInsecure(),
	)
	return tp, nil
}

// newHostSampler samples load cycle roots at CycleSampling and every other
// root at Sampling. Child spans follow their parent's decision.
func newHostSampler(tc *TracingConfig) sdktrace.Sampler {
	return sdktrace.ParentBased(cycleSampler{
		cycles: sdktrace.TraceIDRatioBased(tc.GetCycleSampling()),
		other:  sdktrace.TraceIDRatioBased(tc.GetSampling()),
	})
}

type cycleSampler struct {
	cycles sdktrace.Sampler
	other  sdktrace.Sampler
}

func (s cycleSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if strings.HasPrefix(p.Name, CycleSpanPrefix) {
		return s.cycles.ShouldSample(p)
	}
	return s.other.ShouldSample(p)
}

func (s cycleSampler) Description() string {
	return fmt.Sprintf("CycleSampler{cycles:%s,other:%s}", s.cycles.Description(), s.other.Description())
}
