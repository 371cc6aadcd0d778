package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), TracingConfig{})
	require.NoError(t, err)

	_, span := tp.Tracer().Start(context.Background(), "round")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid(), "a disabled provider hands out no-op spans")
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProvider_Exporters(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tests := []struct {
		name    string
		config  TracingConfig
		wantErr string
	}{
		{name: "otlp default endpoint", config: TracingConfig{Enabled: true, Exporter: ExporterOTLP}},
		{name: "empty exporter means otlp", config: TracingConfig{Enabled: true, SampleRate: 0.5}},
		{name: "zipkin", config: TracingConfig{Enabled: true, Exporter: ExporterZipkin, Endpoint: "http://localhost:9411/api/v2/spans"}},
		{name: "unknown exporter", config: TracingConfig{Enabled: true, Exporter: "jaeger"}, wantErr: "unsupported exporter: jaeger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := NewTracerProvider(context.Background(), tt.config)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, tp.Tracer())

			// Nothing was exported, so shutdown does not contact the collector.
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = tp.Shutdown(ctx)
		})
	}
}

func TestNewTracerProviderWithExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	exporter := tracetest.NewInMemoryExporter()
	tp := NewTracerProviderWithExporter(exporter)

	ctx, round := tp.Tracer().Start(context.Background(), "reward.round")
	_, participant := otel.Tracer("other").Start(ctx, "reward.participant")
	participant.End()
	round.End()

	// The in-memory exporter forgets its spans on shutdown.
	spans := exporter.GetSpans()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	require.Len(t, spans, 2)
	assert.Equal(t, "reward.participant", spans[0].Name)
	assert.Equal(t, "reward.round", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID(),
		"the global provider is the installed one")
}
