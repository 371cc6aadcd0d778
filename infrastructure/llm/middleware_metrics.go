package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// metricsLLM records latency, outcome and token usage for every request.
type metricsLLM struct {
	next      CoreLLM
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that reports oracle requests to
// collector under the given provider label.
func MetricsMiddleware(collector ports.MetricsCollector, provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{
			next:      next,
			provider:  provider,
			collector: collector,
		}
	}
}

// DoRequest executes the request and records oracle_request latency,
// oracle_requests_total and oracle_tokens_total.
func (m *metricsLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := m.next.DoRequest(ctx, req)

	if m.collector == nil {
		return resp, err
	}

	model := req.Model
	if model == "" {
		model = m.next.GetModel()
	}
	labels := map[string]string{
		"provider": m.provider,
		"model":    model,
		"status":   requestStatus(ctx, err),
	}

	m.collector.RecordLatency("oracle_request", time.Since(start), labels)
	m.collector.RecordCounter("oracle_requests_total", 1, labels)

	if err == nil {
		m.collector.RecordCounter("oracle_tokens_total", float64(resp.TokensIn),
			map[string]string{"provider": m.provider, "model": model, "direction": "input"})
		m.collector.RecordCounter("oracle_tokens_total", float64(resp.TokensOut),
			map[string]string{"provider": m.provider, "model": model, "direction": "output"})
	}

	return resp, err
}

// requestStatus labels the outcome of a request.
func requestStatus(ctx context.Context, err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return "timeout"
	case errors.As(err, &pe) && pe.Type != ErrorTypeUnknown:
		return pe.Type.String()
	default:
		return "error"
	}
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }
