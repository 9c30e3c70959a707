package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ProviderConfig configures the process-wide TracerProvider (spec §9
// supplemented observability; does not affect core orchestration
// semantics).
type ProviderConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceVersion string
}

// Shutdown stops the configured TracerProvider, if any was started.
type Shutdown func(context.Context) error

// ConfigureProvider installs a global TracerProvider exporting via OTLP
// over HTTP when enabled, matching the single-exporter choice documented in
// SPEC_FULL.md (jaeger/zipkin exporters dropped as redundant). When
// disabled, it installs nothing and leaves OTel's default global provider,
// which is a no-op, so StartLLMSpan calls are always safe.
func ConfigureProvider(ctx context.Context, cfg ProviderConfig) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("configure otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(tracerName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
