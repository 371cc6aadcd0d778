package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Supported span exporters.
const (
	ExporterOTLP   = "otlp"
	ExporterZipkin = "zipkin"
)

// Default exporter endpoints.
const (
	DefaultOTLPEndpoint   = "localhost:4318"
	DefaultZipkinEndpoint = "http://localhost:9411/api/v2/spans"
)

// TracerName is the instrumentation scope of every span the pipeline emits.
const TracerName = "github.com/ahrav/gavel-rewards"

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled        bool
	Exporter       string
	Endpoint       string
	SampleRate     float64
	ServiceName    string
	ServiceVersion string
}

// TracerProvider owns the SDK provider and its exporter. A disabled
// provider hands out no-op tracers.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracerProvider builds a provider from config and installs it as the
// global otel provider when tracing is enabled.
func NewTracerProvider(ctx context.Context, config TracingConfig) (*TracerProvider, error) {
	if !config.Enabled {
		return &TracerProvider{tracer: noop.NewTracerProvider().Tracer(TracerName)}, nil
	}

	if config.ServiceName == "" {
		config.ServiceName = "gavel-rewards"
	}
	if config.SampleRate <= 0 || config.SampleRate > 1 {
		config.SampleRate = 1
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return newSDKProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	), nil
}

// NewTracerProviderWithExporter installs a provider that exports
// synchronously to exporter. It is used by tests and short-lived commands.
func NewTracerProviderWithExporter(exporter sdktrace.SpanExporter) *TracerProvider {
	return newSDKProvider(sdktrace.WithSyncer(exporter))
}

func newSDKProvider(opts ...sdktrace.TracerProviderOption) *TracerProvider {
	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}
}

func newExporter(ctx context.Context, config TracingConfig) (sdktrace.SpanExporter, error) {
	switch config.Exporter {
	case ExporterOTLP, "":
		endpoint := config.Endpoint
		if endpoint == "" {
			endpoint = DefaultOTLPEndpoint
		}
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	case ExporterZipkin:
		endpoint := config.Endpoint
		if endpoint == "" {
			endpoint = DefaultZipkinEndpoint
		}
		return zipkin.New(endpoint)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", config.Exporter)
	}
}

// Tracer returns the pipeline tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Shutdown flushes pending spans and stops the exporter.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}
