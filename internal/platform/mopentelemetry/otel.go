// Package mopentelemetry wires up the OTLP exporters and providers used to
// trace sync engine and scheduler operations, modeled on the teacher's
// common/mopentelemetry/otel.go.
package mopentelemetry

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer provider backing every span the orchestrator
// emits: one per sync job, one per scheduler tick, one per admin RPC.
type Telemetry struct {
	ServiceName               string
	ServiceVersion            string
	DeploymentEnv             string
	CollectorExporterEndpoint string

	TracerProvider *sdktrace.TracerProvider

	shutdown func()
}

func (tl *Telemetry) newResource() (*sdkresource.Resource, error) {
	return sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(tl.ServiceName),
			semconv.ServiceVersion(tl.ServiceVersion),
			semconv.DeploymentEnvironment(tl.DeploymentEnv),
		),
	)
}

func (tl *Telemetry) newTracerExporter(ctx context.Context) (*otlptrace.Exporter, error) {
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(tl.CollectorExporterEndpoint),
		otlptracegrpc.WithInsecure(),
	)
}

func (tl *Telemetry) newTracerProvider(rsc *sdkresource.Resource, exp *otlptrace.Exporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsc),
	)
}

// InitializeTelemetry sets up the global tracer provider and propagator. The
// collector endpoint is tl.CollectorExporterEndpoint (bootstrap fills it from
// OTEL_EXPORTER_OTLP_ENDPOINT); an error building the resource or the
// exporter is returned to the caller.
func (tl *Telemetry) InitializeTelemetry() (*Telemetry, error) {
	ctx := context.Background()

	r, err := tl.newResource()
	if err != nil {
		return nil, err
	}

	tExp, err := tl.newTracerExporter(ctx)
	if err != nil {
		return nil, err
	}

	tp := tl.newTracerProvider(r, tExp)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	tl.TracerProvider = tp
	tl.shutdown = func() {
		if err := tExp.Shutdown(ctx); err != nil {
			log.Printf("mopentelemetry: tracer exporter shutdown: %v", err)
		}

		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("mopentelemetry: tracer provider shutdown: %v", err)
		}
	}

	return tl, nil
}

// ShutdownTelemetry flushes and closes the exporter. Safe to call on a zero
// Telemetry that never initialized (e.g. in tests).
func (tl *Telemetry) ShutdownTelemetry() {
	if tl.shutdown != nil {
		tl.shutdown()
	}
}

// Tracer returns a named tracer from the global provider, falling back to a
// no-op implementation if telemetry was never initialized (tests, local dev
// with OTEL_SDK_DISABLED=true).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// SetSpanAttributesFromStruct JSON-encodes valueStruct and attaches it under
// key, used to attach the full IngestionJob summary or sync options to its
// span without hand-listing every field.
func SetSpanAttributesFromStruct(span trace.Span, key string, valueStruct any) error {
	b, err := json.Marshal(valueStruct)
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.String(key, string(b)))

	return nil
}

// HandleSpanError marks the span as failed and records err, the convention
// every repository and service method in this module follows on its error
// path.
func HandleSpanError(span trace.Span, message string, err error) {
	span.SetStatus(codes.Error, message+": "+err.Error())
	span.RecordError(err)
}

// CollectorEndpointFromEnv reads OTEL_COLLECTOR_ENDPOINT, defaulting to the
// local-dev collector address.
func CollectorEndpointFromEnv() string {
	if v := os.Getenv("OTEL_COLLECTOR_ENDPOINT"); v != "" {
		return v
	}

	return "localhost:4317"
}
