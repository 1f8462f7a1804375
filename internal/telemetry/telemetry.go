// SPDX-License-Identifier: MPL-2.0

// Package telemetry wires OpenTelemetry tracing for the bridge.
package telemetry

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// EnvEndpoint holds the OTLP/HTTP collector URL. Tracing is off when it
	// is empty.
	EnvEndpoint = "ADDONBRIDGE_OTEL_ENDPOINT"
	// EnvEnabled set to "false" turns tracing off regardless of endpoint.
	EnvEnabled = "ADDONBRIDGE_OTEL_ENABLED"

	// ServiceName is the default resource service name.
	ServiceName = "addonbridge"
)

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider exporting to the endpoint in
// EnvEndpoint. Without an endpoint it installs nothing and returns a no-op
// shutdown, leaving the global no-op provider in place.
func Setup(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	return SetupEndpoint(ctx, serviceName, os.Getenv(EnvEndpoint))
}

// SetupEndpoint is Setup with an explicit endpoint.
func SetupEndpoint(ctx context.Context, serviceName, endpoint string) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv(EnvEnabled), "false") || strings.TrimSpace(endpoint) == "" {
		return noop, nil
	}
	if serviceName == "" {
		serviceName = ServiceName
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
