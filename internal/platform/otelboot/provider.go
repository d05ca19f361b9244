// Package otelboot bootstraps a minimal OpenTelemetry tracer provider
// used to span the round orchestrator's phases.
package otelboot

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Shutdown stops the tracer provider, flushing any buffered spans.
type Shutdown func(context.Context) error

// Setup installs a sampling tracer provider as the global provider and
// returns the service tracer plus a shutdown function. With no exporter
// configured, spans are recorded in-process only (sampled-but-unexported),
// which is sufficient for the round orchestrator's internal phase timing;
// wiring an OTLP exporter is left to the operator via environment
// configuration on the underlying SDK provider.
func Setup(serviceName string) (trace.Tracer, Shutdown) {
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return provider.Tracer(serviceName), provider.Shutdown
}
