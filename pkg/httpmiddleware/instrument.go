package httpmiddleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrument returns a middleware that traces requests and records HTTP
// server metrics. Once routing is done, the span is renamed to
// "METHOD pattern" and http.route is added to span and metric attributes.
//
// Requires Routes earlier in the chain.
func Instrument(service string, tp trace.TracerProvider, mp metric.MeterProvider) Middleware {
	return func(next http.Handler) http.Handler {
		labeled := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			pattern := RoutePattern(r)
			if pattern == "" {
				return
			}
			route := attribute.String("http.route", pattern)
			span := trace.SpanFromContext(r.Context())
			span.SetName(r.Method + " " + pattern)
			span.SetAttributes(route)
			if labeler, ok := otelhttp.LabelerFromContext(r.Context()); ok {
				labeler.Add(route)
			}
		})
		return otelhttp.NewHandler(labeled, service,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
			otelhttp.WithServerName(service),
		)
	}
}
