package hooks

import (
	"context"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EnableLocalTelemetry installs an in-process OpenTelemetry SDK as the
// global tracer and meter provider, so the spans and counters the Executor
// emits are actually recorded instead of discarded by the API package's
// no-op default. Intended for local development and test harnesses — a
// production deployment wires its own exporter-backed provider before
// constructing the Registry, and never calls this.
func EnableLocalTelemetry() (shutdown func(context.Context) error, err error) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	mp := sdkmetric.NewMeterProvider()

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}
