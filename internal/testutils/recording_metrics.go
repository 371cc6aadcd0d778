package testutils

import (
	"sync"
	"time"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// RecordingMetrics is an in-memory ports.MetricsCollector that keeps
// totals per metric name, ignoring labels.
type RecordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
	latencies  map[string]int
}

var _ ports.MetricsCollector = (*RecordingMetrics)(nil)

// NewRecordingMetrics creates an empty RecordingMetrics.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		latencies:  make(map[string]int),
	}
}

func (r *RecordingMetrics) RecordLatency(operation string, _ time.Duration, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies[operation]++
}

func (r *RecordingMetrics) RecordCounter(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
}

func (r *RecordingMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[metric] = value
}

func (r *RecordingMetrics) RecordHistogram(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric] = append(r.histograms[metric], value)
}

// Counter returns the accumulated value of a counter.
func (r *RecordingMetrics) Counter(metric string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[metric]
}

// Gauge returns the last value set for a gauge.
func (r *RecordingMetrics) Gauge(metric string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gauges[metric]
}

// Observations returns a copy of the values recorded into a histogram.
func (r *RecordingMetrics) Observations(metric string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.histograms[metric]...)
}

// LatencyCount returns how many latencies were recorded for operation.
func (r *RecordingMetrics) LatencyCount(operation string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latencies[operation]
}
