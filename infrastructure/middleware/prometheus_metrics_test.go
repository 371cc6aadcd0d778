package middleware

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg, "test"), reg
}

func TestNewPrometheusMetrics_RegistersEveryMetric(t *testing.T) {
	pm, reg := newTestMetrics(t)

	// Vectors only appear in Gather once a series exists.
	pm.RecordCounter("fetch_attempts_total", 1, nil)
	pm.RecordGauge("content_cache_urls", 3, nil)
	pm.RecordHistogram("participant_reward", 0.5, nil)
	pm.RecordLatency("reward_round", time.Second, nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_fetch_attempts_total"])
	assert.True(t, names["test_content_cache_urls"])
	assert.True(t, names["test_participant_reward"])
	assert.True(t, names["test_reward_round_duration_seconds"])
}

func TestNewPrometheusMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusMetrics(prometheus.NewRegistry(), "a")
		NewPrometheusMetrics(prometheus.NewRegistry(), "a")
	}, "each registry holds its own collectors")
}

func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		labels map[string]string
		value  float64
		expect string
	}{
		{
			name:   "dedicated vector",
			metric: "oracle_requests_total",
			labels: map[string]string{"provider": "openai", "model": "gpt-4o-mini", "status": "success"},
			value:  2,
			expect: `test_oracle_requests_total{model="gpt-4o-mini",provider="openai",status="success"} 2`,
		},
		{
			name:   "missing labels become unknown",
			metric: "judge_calls_total",
			labels: map[string]string{"kind": "source_relevance"},
			value:  1,
			expect: `test_judge_calls_total{kind="source_relevance",status="unknown"} 1`,
		},
		{
			name:   "nil labels",
			metric: "round_failures_total",
			value:  1,
			expect: `test_round_failures_total{reason="unknown"} 1`,
		},
		{
			name:   "unlisted metric goes to the generic counter",
			metric: "custom_events",
			labels: map[string]string{"ignored": "x"},
			value:  4,
			expect: `test_operations_total{metric="custom_events"} 4`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, reg := newTestMetrics(t)

			pm.RecordCounter(tt.metric, tt.value, tt.labels)

			assert.Contains(t, gatherText(t, reg), tt.expect)
		})
	}
}

func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordGauge("oracle_circuit_state", 1, map[string]string{"provider": "anthropic"})
	pm.RecordGauge("oracle_circuit_state", 0, map[string]string{"provider": "anthropic"})
	pm.RecordGauge("fetch_unresolved_urls", 7, nil)
	pm.RecordGauge("something_else", 3, nil)

	text := gatherText(t, reg)
	assert.Contains(t, text, `test_oracle_circuit_state{provider="anthropic"} 0`)
	assert.Contains(t, text, `test_fetch_unresolved_urls 7`)
	assert.Contains(t, text, `test_system_state{metric="something_else"} 3`)
	assert.Equal(t, 7.0, testutil.ToFloat64(pm.gauges["fetch_unresolved_urls"]))
}

func TestPrometheusMetrics_RecordHistogram(t *testing.T) {
	pm, reg := newTestMetrics(t)

	for _, v := range []float64{0, 0.4, 1} {
		pm.RecordHistogram("unit_score", v, map[string]string{"kind": "section_relevance"})
	}
	pm.RecordHistogram("other_values", 12, nil)

	text := gatherText(t, reg)
	assert.Contains(t, text, `test_unit_score_count{kind="section_relevance"} 3`)
	assert.Contains(t, text, `test_unit_score_bucket{kind="section_relevance",le="0.5"} 2`)
	assert.Contains(t, text, `test_observations_count{metric="other_values"} 1`)
}

func TestPrometheusMetrics_RecordLatency(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordLatency("fetch_attempt", 250*time.Millisecond, map[string]string{"attempt": "1"})
	pm.RecordLatency("fetch_attempt", 750*time.Millisecond, map[string]string{"attempt": "1"})
	pm.RecordLatency("compaction", time.Second, nil)

	text := gatherText(t, reg)
	assert.Contains(t, text, `test_fetch_attempt_duration_seconds_sum{attempt="1"} 1`)
	assert.Contains(t, text, `test_fetch_attempt_duration_seconds_count{attempt="1"} 2`)
	assert.Contains(t, text, `test_operation_duration_seconds_count{operation="compaction"} 1`)
}

func TestPrometheusMetrics_NegativeCounterPanics(t *testing.T) {
	pm, _ := newTestMetrics(t)

	assert.Panics(t, func() {
		pm.RecordCounter("fetch_groups_total", -1, nil)
	}, "Prometheus counters cannot decrease")
}

func TestPrometheusMetrics_InterfaceCompliance(t *testing.T) {
	pm, _ := newTestMetrics(t)
	var metrics ports.MetricsCollector = pm

	assert.NotPanics(t, func() {
		metrics.RecordLatency("oracle_request", time.Millisecond, nil)
		metrics.RecordCounter("oracle_tokens_total", 10, map[string]string{"direction": "input"})
		metrics.RecordGauge("content_cache_urls", 1, nil)
		metrics.RecordHistogram("judge_score", 0.7, map[string]string{"kind": "description_accuracy"})
	})
}

func TestLabelValues(t *testing.T) {
	got := labelValues([]string{"a", "b", "c"}, map[string]string{"a": "1", "b": ""})
	assert.Equal(t, []string{"1", unknownLabel, unknownLabel}, got)
	assert.Empty(t, labelValues(nil, map[string]string{"a": "1"}))
}

// gatherText renders every sample in reg in the text exposition format,
// without HELP and TYPE lines.
func gatherText(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var raw strings.Builder
	for _, f := range families {
		_, err := expfmt.MetricFamilyToText(&raw, f)
		require.NoError(t, err)
	}

	var b strings.Builder
	for _, line := range strings.Split(raw.String(), "\n") {
		if line != "" && !strings.HasPrefix(line, "#") {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
