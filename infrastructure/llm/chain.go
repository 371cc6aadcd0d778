package llm

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// ChainConfig selects and tunes the standard middleware chain. Zero values
// leave the corresponding middleware out.
type ChainConfig struct {
	// Provider labels metrics and spans.
	Provider string

	// Tracer enables request spans when non-nil.
	Tracer trace.Tracer

	// Metrics enables request metrics when non-nil.
	Metrics ports.MetricsCollector

	// Budget caps the spend of every client sharing this chain; the zero
	// value leaves the budget middleware out. BudgetObserver is optional.
	Budget         Budget
	BudgetObserver BudgetObserver

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// BreakerThreshold is the consecutive failure count that opens the
	// circuit; BreakerCooldown is how long it stays open.
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// RequestsPerSecond and Burst configure the token bucket.
	RequestsPerSecond float64
	Burst             int

	// Timeout bounds each attempt.
	Timeout time.Duration
}

// BuildMiddleware returns the chain in outermost-first order:
// tracing, metrics, budget, retry, circuit breaker, rate limit, timeout.
// One span, one metric sample and one budget charge cover all attempts of
// a request, while the breaker, limiter and timeout see every attempt.
func BuildMiddleware(c ChainConfig) []Middleware {
	var chain []Middleware

	if c.Tracer != nil {
		chain = append(chain, TracingMiddlewareWithTracer(c.Tracer, c.Provider))
	}
	if c.Metrics != nil {
		chain = append(chain, MetricsMiddleware(c.Metrics, c.Provider))
	}
	if !c.Budget.Unlimited() {
		chain = append(chain, BudgetMiddleware(c.Budget, c.BudgetObserver))
	}
	if c.MaxRetries > 0 {
		chain = append(chain, RetryMiddleware(c.MaxRetries, c.RetryBaseDelay, c.RetryMaxDelay))
	}
	if c.BreakerThreshold > 0 {
		var breakerMetrics CircuitBreakerMetrics
		if c.Metrics != nil {
			breakerMetrics = &collectorBreakerMetrics{collector: c.Metrics, provider: c.Provider}
		}
		chain = append(chain, CircuitBreakerMiddlewareWithMetrics(c.BreakerThreshold, c.BreakerCooldown, breakerMetrics))
	}
	if c.RequestsPerSecond > 0 {
		burst := c.Burst
		if burst < 1 {
			burst = 1
		}
		chain = append(chain, RateLimitMiddleware(rate.Limit(c.RequestsPerSecond), burst))
	}
	if c.Timeout > 0 {
		chain = append(chain, TimeoutMiddleware(c.Timeout))
	}

	return chain
}

// collectorBreakerMetrics reports circuit breaker events through a
// ports.MetricsCollector.
type collectorBreakerMetrics struct {
	collector ports.MetricsCollector
	provider  string
}

func (m *collectorBreakerMetrics) labels(outcome string) map[string]string {
	return map[string]string{"provider": m.provider, "outcome": outcome}
}

func (m *collectorBreakerMetrics) RecordState(state CircuitBreakerState) {
	m.collector.RecordGauge("oracle_circuit_state", float64(state), map[string]string{"provider": m.provider})
}

func (m *collectorBreakerMetrics) RecordTrip() {
	m.collector.RecordCounter("oracle_circuit_calls_total", 1, m.labels("rejected"))
}

func (m *collectorBreakerMetrics) RecordSuccess() {
	m.collector.RecordCounter("oracle_circuit_calls_total", 1, m.labels("success"))
}

func (m *collectorBreakerMetrics) RecordFailure() {
	m.collector.RecordCounter("oracle_circuit_calls_total", 1, m.labels("failure"))
}
