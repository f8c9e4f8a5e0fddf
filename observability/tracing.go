// Tracing support for the FFI bridge (C8) and orchestrator (C12). Grounded on
// the teacher's InitTracer (TracerProvider + resource + sampler wiring), with
// the OTLP/Jaeger exporter removed: telemetry collector backends are out of
// scope here, so the provider is built with whatever span processor the
// caller supplies (a batcher over a real exporter in production, an in-memory
// processor in tests) instead of hard-wiring one.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies the package-wide tracer used for bridge dispatch and
// orchestrator lifecycle spans.
const TracerName = "github.com/obinexus/polycall-sub011"

// InitTracerProvider builds and installs a global TracerProvider for
// serviceName, attaching zero or more span processors (e.g.
// sdktrace.NewBatchSpanProcessor(exporter)). With no processors, spans are
// still created and sampled but go nowhere — the in-memory no-op mode used by
// tests and by callers that haven't wired an exporter.
func InitTracerProvider(serviceName string, processors ...sdktrace.SpanProcessor) (func(context.Context) error, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build tracer resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the package-wide tracer, usable even before
// InitTracerProvider runs (otel's global no-op provider until then).
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
