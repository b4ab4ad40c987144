// Package telemetry sets up OpenTelemetry tracing and metrics export over
// OTLP (gRPC or HTTP). It is disabled by default; packages create spans and
// instruments from the otel globals either way.
package telemetry
