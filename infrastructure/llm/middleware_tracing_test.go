package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordedTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware_RecordsSuccessfulRequest(t *testing.T) {
	// Given a traced provider
	recorder, tp := newRecordedTracer(t)
	mock := NewMockCoreLLM()
	wrapped := TracingMiddlewareWithTracer(tp.Tracer("test"), "anthropic")(mock)

	// When a request succeeds
	resp, err := wrapped.DoRequest(context.Background(), Request{Prompt: "12345"})
	require.NoError(t, err)
	assert.Equal(t, "Score: 7", resp.Text)

	// Then one client span carries model, prompt size and usage
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "llm.request", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	attrs := spanAttrs(span)
	assert.Equal(t, "anthropic", attrs["llm.provider"].AsString())
	assert.Equal(t, "test-model", attrs["llm.model"].AsString())
	assert.Equal(t, int64(5), attrs["llm.prompt.length"].AsInt64())
	assert.Equal(t, int64(10), attrs["llm.tokens.input"].AsInt64())
	assert.Equal(t, int64(20), attrs["llm.tokens.output"].AsInt64())
}

func TestTracingMiddleware_RecordsFailure(t *testing.T) {
	recorder, tp := newRecordedTracer(t)
	mock := NewMockCoreLLM()
	mock.Error = errors.New("service error")
	wrapped := TracingMiddlewareWithTracer(tp.Tracer("test"), "openai")(mock)

	_, err := wrapped.DoRequest(context.Background(), Request{Model: "gpt-4o"})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "service error", spans[0].Status().Description)
	assert.Equal(t, "gpt-4o", spanAttrs(spans[0])["llm.model"].AsString())
	require.Len(t, spans[0].Events(), 1, "the error is recorded as a span event")
}

func TestTracingMiddleware_PropagatesSpanContext(t *testing.T) {
	_, tp := newRecordedTracer(t)
	mock := NewMockCoreLLM()
	wrapped := TracingMiddlewareWithTracer(tp.Tracer("test"), "openai")(mock)

	_, err := wrapped.DoRequest(context.Background(), Request{})
	require.NoError(t, err)

	require.Len(t, mock.Contexts, 1)
	sc := trace.SpanContextFromContext(mock.Contexts[0])
	assert.True(t, sc.IsValid(), "the provider runs inside the request span")
}

func TestTracingMiddleware_GlobalProvider(t *testing.T) {
	mock := NewMockCoreLLM()

	resp, err := TracingMiddleware("gavel-rewards", "google")(mock).DoRequest(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, "Score: 7", resp.Text)
	assert.Equal(t, "test-model", TracingMiddleware("svc", "google")(mock).GetModel())
}
