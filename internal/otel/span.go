// Package otel provides tracing helpers shared by the host's components.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on host spans.
const (
	AttrDatasourceName   = attribute.Key("datasource.name")
	AttrDatasourceSlug   = attribute.Key("datasource.slug")
	AttrCycleMode        = attribute.Key("cycle.mode")
	AttrRequestedSources = attribute.Key("cycle.requested_sources")
	AttrCatalogStatus    = attribute.Key("catalog.status")
	AttrHTTPStatusCode   = attribute.Key("http.response.status_code")
)

// StartSpan starts a span on tracer, or returns the span already in ctx when
// tracer is nil.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed with err. Nil spans and errors are ignored.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
