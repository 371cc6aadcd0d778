package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gavel-rewards/infrastructure/llm"
	"github.com/ahrav/gavel-rewards/internal/ports"
)

// Budget usage fractions that add a threshold event to the request span.
const (
	budgetWarningThreshold  = 0.8
	budgetCriticalThreshold = 0.9
)

var _ llm.BudgetObserver = (*OTelBudgetObserver)(nil)

// OTelBudgetObserver reports oracle budget checks on the request span
// already in the context and as gauges through a MetricsCollector.
type OTelBudgetObserver struct {
	metrics  ports.MetricsCollector
	provider string
}

// NewOTelBudgetObserver creates an observer labelling metrics with
// provider. A nil collector records spans only.
func NewOTelBudgetObserver(metrics ports.MetricsCollector, provider string) *OTelBudgetObserver {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &OTelBudgetObserver{metrics: metrics, provider: provider}
}

// PreCheck records the usage a request is admitted against and flags
// budgets that are nearly spent.
func (o *OTelBudgetObserver) PreCheck(ctx context.Context, usage llm.Usage, budget llm.Budget) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(o.attributes(usage, budget)...)

	if budget.MaxTokens > 0 {
		o.thresholdEvent(span, "tokens", float64(usage.Tokens)/float64(budget.MaxTokens))
	}
	if budget.MaxCalls > 0 {
		o.thresholdEvent(span, "calls", float64(usage.Calls)/float64(budget.MaxCalls))
	}
}

// PostCheck records the updated usage, or the refusal.
func (o *OTelBudgetObserver) PostCheck(ctx context.Context, usage llm.Usage, budget llm.Budget, _ time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	labels := map[string]string{"provider": o.provider}

	var be *llm.BudgetExceededError
	if errors.As(err, &be) {
		span.AddEvent("budget.exceeded", trace.WithAttributes(
			attribute.String("limit_type", be.LimitType),
			attribute.Int64("limit_value", be.Limit),
			attribute.Int64("used_value", be.Used),
		))
		o.metrics.RecordCounter("oracle_budget_exceeded_total", 1,
			map[string]string{"provider": o.provider, "limit_type": be.LimitType})
		return
	}

	span.AddEvent("budget.usage_tracked", trace.WithAttributes(
		attribute.Int64("tokens_consumed", usage.Tokens),
		attribute.Int64("calls_made", usage.Calls),
	))
	o.metrics.RecordGauge("oracle_budget_tokens_used", float64(usage.Tokens), labels)
	o.metrics.RecordGauge("oracle_budget_calls_used", float64(usage.Calls), labels)
	if budget.MaxTokens > 0 {
		o.metrics.RecordGauge("oracle_budget_tokens_remaining", float64(budget.MaxTokens-usage.Tokens), labels)
	}
	if budget.MaxCalls > 0 {
		o.metrics.RecordGauge("oracle_budget_calls_remaining", float64(budget.MaxCalls-usage.Calls), labels)
	}
}

func (o *OTelBudgetObserver) attributes(usage llm.Usage, budget llm.Budget) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int64("budget.tokens_used", usage.Tokens),
		attribute.Int64("budget.calls_made", usage.Calls),
	}
	if budget.MaxTokens > 0 {
		attrs = append(attrs,
			attribute.Int64("budget.max_tokens", budget.MaxTokens),
			attribute.Int64("budget.remaining_tokens", budget.MaxTokens-usage.Tokens),
		)
	}
	if budget.MaxCalls > 0 {
		attrs = append(attrs,
			attribute.Int64("budget.max_calls", budget.MaxCalls),
			attribute.Int64("budget.remaining_calls", budget.MaxCalls-usage.Calls),
		)
	}
	return attrs
}

func (o *OTelBudgetObserver) thresholdEvent(span trace.Span, resource string, fraction float64) {
	var name string
	switch {
	case fraction >= budgetCriticalThreshold:
		name = "budget.threshold.critical"
	case fraction >= budgetWarningThreshold:
		name = "budget.threshold.warning"
	default:
		return
	}
	span.AddEvent(name, trace.WithAttributes(
		attribute.String("resource_type", resource),
		attribute.Float64("usage_percentage", fraction*100),
	))
}
