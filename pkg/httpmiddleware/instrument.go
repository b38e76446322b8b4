package httpmiddleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrument wraps the handler in otelhttp server-side instrumentation, so
// every request produces a span and the standard HTTP server metrics under
// the given service name.
func Instrument(service string, tp trace.TracerProvider, mp metric.MeterProvider) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		)
	}
}
