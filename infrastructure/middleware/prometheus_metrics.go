// Package middleware provides the cross-cutting concerns of the reward
// pipeline: the Prometheus metrics collector, the OpenTelemetry tracer
// provider and the observer reporting oracle budget usage.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// unknownLabel replaces label values the caller did not supply.
const unknownLabel = "unknown"

// metricSpec describes a metric with a fixed label set.
type metricSpec struct {
	help    string
	labels  []string
	buckets []float64
}

// scoreBuckets cover the [0, 1] range of scores and rewards.
var scoreBuckets = []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

var counterSpecs = map[string]metricSpec{
	"fetch_attempts_total":         {help: "Fetch attempts made by the batch fetcher."},
	"fetch_groups_total":           {help: "URL groups sent to the scraping service."},
	"fetch_group_failures_total":   {help: "URL groups whose scraper call failed."},
	"scrape_calls_total":           {help: "Scraper calls by outcome.", labels: []string{"scraper", "status"}},
	"scrape_pages_total":           {help: "Pages returned by the scraper.", labels: []string{"scraper"}},
	"judge_calls_total":            {help: "Judge invocations by outcome.", labels: []string{"kind", "status"}},
	"oracle_requests_total":        {help: "Oracle requests by outcome.", labels: []string{"provider", "model", "status"}},
	"oracle_tokens_total":          {help: "Oracle tokens by direction.", labels: []string{"provider", "model", "direction"}},
	"oracle_circuit_calls_total":   {help: "Circuit breaker decisions.", labels: []string{"provider", "outcome"}},
	"oracle_budget_exceeded_total": {help: "Oracle requests refused by the spend budget.", labels: []string{"provider", "limit_type"}},
	"participant_failures_total":   {help: "Participants whose evaluation failed."},
	"round_failures_total":         {help: "Rounds that fell back to all-zero rewards.", labels: []string{"reason"}},
}

var gaugeSpecs = map[string]metricSpec{
	"fetch_unresolved_urls":          {help: "URLs left unresolved by the last fetch."},
	"content_cache_urls":             {help: "URLs with content in the last round's cache."},
	"oracle_circuit_state":           {help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.", labels: []string{"provider"}},
	"oracle_budget_tokens_used":      {help: "Oracle tokens charged to the budget.", labels: []string{"provider"}},
	"oracle_budget_calls_used":       {help: "Oracle calls charged to the budget.", labels: []string{"provider"}},
	"oracle_budget_tokens_remaining": {help: "Oracle tokens left in the budget.", labels: []string{"provider"}},
	"oracle_budget_calls_remaining":  {help: "Oracle calls left in the budget.", labels: []string{"provider"}},
}

var histogramSpecs = map[string]metricSpec{
	"judge_score":        {help: "Scores returned by judges.", labels: []string{"kind", "status"}, buckets: scoreBuckets},
	"unit_score":         {help: "Scores of evaluation units.", labels: []string{"kind"}, buckets: scoreBuckets},
	"participant_reward": {help: "Rewards assigned to participants.", buckets: scoreBuckets},
}

var latencySpecs = map[string]metricSpec{
	"fetch_attempt":  {help: "Duration of one fetch attempt.", labels: []string{"attempt"}},
	"scrape_call":    {help: "Duration of one scraper call.", labels: []string{"scraper", "status"}},
	"judge_score":    {help: "Duration of one judge decision.", labels: []string{"kind", "status"}},
	"oracle_request": {help: "Duration of one oracle request.", labels: []string{"provider", "model", "status"}},
	"reward_round":   {help: "Duration of one reward round.", buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200}},
}

// PrometheusMetrics implements ports.MetricsCollector with Prometheus. Known
// metric names map to dedicated vectors with fixed labels; any other name is
// recorded in a generic vector keyed by the metric name. The vector maps are
// never written after construction.
type PrometheusMetrics struct {
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	latencies  map[string]*prometheus.HistogramVec

	otherCounters   *prometheus.CounterVec
	otherGauges     *prometheus.GaugeVec
	otherHistograms *prometheus.HistogramVec
	otherLatencies  *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collector and registers every metric
// with reg under namespace. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec, len(counterSpecs)),
		gauges:     make(map[string]*prometheus.GaugeVec, len(gaugeSpecs)),
		histograms: make(map[string]*prometheus.HistogramVec, len(histogramSpecs)),
		latencies:  make(map[string]*prometheus.HistogramVec, len(latencySpecs)),
	}

	for name, spec := range counterSpecs {
		pm.counters[name] = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      spec.help,
		}, spec.labels)
	}
	for name, spec := range gaugeSpecs {
		pm.gauges[name] = factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      spec.help,
		}, spec.labels)
	}
	for name, spec := range histogramSpecs {
		pm.histograms[name] = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      spec.help,
			Buckets:   spec.buckets,
		}, spec.labels)
	}
	for name, spec := range latencySpecs {
		buckets := spec.buckets
		if buckets == nil {
			buckets = prometheus.DefBuckets
		}
		pm.latencies[name] = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name + "_duration_seconds",
			Help:      spec.help,
			Buckets:   buckets,
		}, spec.labels)
	}

	pm.otherCounters = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Counters without a dedicated metric.",
	}, []string{"metric"})
	pm.otherGauges = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "system_state",
		Help:      "Gauges without a dedicated metric.",
	}, []string{"metric"})
	pm.otherHistograms = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "observations",
		Help:      "Histograms without a dedicated metric.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"metric"})
	pm.otherLatencies = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Durations without a dedicated metric.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	return pm
}

// labelValues orders labels by spec, substituting unknownLabel for missing
// or empty values.
func labelValues(spec []string, labels map[string]string) []string {
	values := make([]string, len(spec))
	for i, name := range spec {
		v := labels[name]
		if v == "" {
			v = unknownLabel
		}
		values[i] = v
	}
	return values
}

// RecordLatency records duration in the operation's latency histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	if vec, ok := pm.latencies[operation]; ok {
		vec.WithLabelValues(labelValues(latencySpecs[operation].labels, labels)...).Observe(duration.Seconds())
		return
	}
	pm.otherLatencies.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter adds value to the metric's counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	if vec, ok := pm.counters[metric]; ok {
		vec.WithLabelValues(labelValues(counterSpecs[metric].labels, labels)...).Add(value)
		return
	}
	pm.otherCounters.WithLabelValues(metric).Add(value)
}

// RecordGauge sets the metric's gauge to value.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	if vec, ok := pm.gauges[metric]; ok {
		vec.WithLabelValues(labelValues(gaugeSpecs[metric].labels, labels)...).Set(value)
		return
	}
	pm.otherGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram observes value in the metric's histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	if vec, ok := pm.histograms[metric]; ok {
		vec.WithLabelValues(labelValues(histogramSpecs[metric].labels, labels)...).Observe(value)
		return
	}
	pm.otherHistograms.WithLabelValues(metric).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
