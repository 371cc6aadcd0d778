package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedLLM wraps each request in an OpenTelemetry span.
type tracedLLM struct {
	next     CoreLLM
	tracer   trace.Tracer
	provider string
}

// TracingMiddleware creates middleware that starts an "llm.request" span
// per request on the global tracer provider.
func TracingMiddleware(serviceName, provider string) Middleware {
	return TracingMiddlewareWithTracer(otel.Tracer(serviceName), provider)
}

// TracingMiddlewareWithTracer is TracingMiddleware with an explicit tracer.
func TracingMiddlewareWithTracer(tracer trace.Tracer, provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{
			next:     next,
			tracer:   tracer,
			provider: provider,
		}
	}
}

// DoRequest executes the request within a span carrying the model, prompt
// size and token usage.
func (t *tracedLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = t.next.GetModel()
	}

	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", t.provider),
			attribute.String("llm.model", model),
			attribute.Int("llm.prompt.length", len(req.Prompt)),
		),
	)
	defer span.End()

	resp, err := t.next.DoRequest(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", resp.TokensIn),
		attribute.Int("llm.tokens.output", resp.TokensOut),
	)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }
