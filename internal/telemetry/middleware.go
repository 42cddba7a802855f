package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StatusAPIMeterName is the meter behind the status API's request metrics
const StatusAPIMeterName = "github.com/metroplatform/metro-host/api"

// unmatchedRoute labels requests no route matched, so probing clients cannot
// grow the route label set.
const unmatchedRoute = "unmatched"

// StatusAPIMetrics counts and times status API requests by route pattern.
type StatusAPIMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	skip     map[string]bool
}

// NewStatusAPIMetrics creates the status API instruments. Requests to any of
// skipRoutes, such as the scrape endpoint itself, are not recorded. A nil
// provider yields nil metrics, whose Middleware passes requests through.
func NewStatusAPIMetrics(provider metric.MeterProvider, skipRoutes ...string) (*StatusAPIMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(StatusAPIMeterName)

	requests, err := meter.Int64Counter(
		"metro_host_status_api_requests_total",
		metric.WithDescription("Status API requests by route, method and status class"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// the API is served on loopback, so most requests finish in well under 10ms
	duration, err := meter.Float64Histogram(
		"metro_host_status_api_request_duration_seconds",
		metric.WithDescription("Status API request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1),
	)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(skipRoutes))
	for _, route := range skipRoutes {
		skip[route] = true
	}
	return &StatusAPIMetrics{requests: requests, duration: duration, skip: skip}, nil
}

// Middleware records one request count and duration per request.
func (m *StatusAPIMetrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// chi fills in the pattern while routing, so read it afterwards
		route := routeLabel(r)
		if m.skip[route] {
			return
		}

		attrs := metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("method", r.Method),
			attribute.String("status_class", statusClass(ww.Status())),
		)
		m.requests.Add(r.Context(), 1, attrs)
		m.duration.Record(r.Context(), time.Since(start).Seconds(), attrs)
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatchedRoute
}

// statusClass maps a status code to "2xx", "4xx" and so on. A handler that
// wrote nothing answered 200.
func statusClass(code int) string {
	if code == 0 {
		code = http.StatusOK
	}
	return strconv.Itoa(code/100) + "xx"
}
