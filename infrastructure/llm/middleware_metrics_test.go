package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

type sample struct {
	kind   string
	name   string
	value  float64
	labels map[string]string
}

// labelRecorder keeps every sample with its labels.
type labelRecorder struct {
	mu      sync.Mutex
	samples []sample
}

func (r *labelRecorder) add(s sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *labelRecorder) RecordLatency(op string, d time.Duration, labels map[string]string) {
	r.add(sample{kind: "latency", name: op, value: d.Seconds(), labels: labels})
}
func (r *labelRecorder) RecordCounter(m string, v float64, labels map[string]string) {
	r.add(sample{kind: "counter", name: m, value: v, labels: labels})
}
func (r *labelRecorder) RecordGauge(m string, v float64, labels map[string]string) {
	r.add(sample{kind: "gauge", name: m, value: v, labels: labels})
}
func (r *labelRecorder) RecordHistogram(m string, v float64, labels map[string]string) {
	r.add(sample{kind: "histogram", name: m, value: v, labels: labels})
}

func (r *labelRecorder) find(kind, name string) []sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sample
	for _, s := range r.samples {
		if s.kind == kind && s.name == name {
			out = append(out, s)
		}
	}
	return out
}

func TestMetricsMiddleware_Success(t *testing.T) {
	// Given a successful provider
	mock := NewMockCoreLLM()
	rec := &labelRecorder{}
	wrapped := MetricsMiddleware(rec, "openai")(mock)

	// When a request is made
	_, err := wrapped.DoRequest(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)

	// Then latency, request count and both token directions are recorded
	latency := rec.find("latency", "oracle_request")
	require.Len(t, latency, 1)
	assert.Equal(t, map[string]string{"provider": "openai", "model": "test-model", "status": "success"}, latency[0].labels)

	requests := rec.find("counter", "oracle_requests_total")
	require.Len(t, requests, 1)
	assert.Equal(t, 1.0, requests[0].value)

	tokens := rec.find("counter", "oracle_tokens_total")
	require.Len(t, tokens, 2)
	assert.Equal(t, "input", tokens[0].labels["direction"])
	assert.Equal(t, 10.0, tokens[0].value)
	assert.Equal(t, "output", tokens[1].labels["direction"])
	assert.Equal(t, 20.0, tokens[1].value)
}

func TestMetricsMiddleware_StatusLabels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "circuit open", err: ErrCircuitOpen, want: "circuit_open"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "classified", err: NewProviderError("p", ErrorTypeRateLimit, 429, "", nil), want: "rate_limit"},
		{name: "unclassified", err: errors.New("boom"), want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreLLM()
			mock.Error = tt.err
			rec := &labelRecorder{}

			_, err := MetricsMiddleware(rec, "p")(mock).DoRequest(context.Background(), Request{Model: "override"})
			require.Error(t, err)

			requests := rec.find("counter", "oracle_requests_total")
			require.Len(t, requests, 1)
			assert.Equal(t, tt.want, requests[0].labels["status"])
			assert.Equal(t, "override", requests[0].labels["model"])
			assert.Empty(t, rec.find("counter", "oracle_tokens_total"))
		})
	}
}

func TestMetricsMiddleware_NilCollector(t *testing.T) {
	mock := NewMockCoreLLM()

	resp, err := MetricsMiddleware(nil, "p")(mock).DoRequest(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, "Score: 7", resp.Text)
}

func TestBuildMiddleware(t *testing.T) {
	rec := &labelRecorder{}

	tests := []struct {
		name   string
		config ChainConfig
		want   int
	}{
		{name: "empty", config: ChainConfig{}, want: 0},
		{name: "timeout only", config: ChainConfig{Timeout: time.Second}, want: 1},
		{
			name: "everything",
			config: ChainConfig{
				Metrics:           rec,
				MaxRetries:        2,
				BreakerThreshold:  3,
				RequestsPerSecond: 5,
				Timeout:           time.Second,
			},
			want: 5,
		},
		{
			name:   "budget only",
			config: ChainConfig{Budget: Budget{MaxCalls: 10}},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, BuildMiddleware(tt.config), tt.want)
		})
	}
}

func TestBuildMiddleware_BreakerReportsThroughCollector(t *testing.T) {
	rec := &labelRecorder{}
	mock := NewMockCoreLLM()
	mock.Error = errors.New("down")

	client := newClientWithCore("p", mock, BuildMiddleware(ChainConfig{
		Provider:         "p",
		Metrics:          rec,
		BreakerThreshold: 1,
		BreakerCooldown:  time.Hour,
	})...)

	for range 2 {
		_, _ = client.CompleteWithUsage(context.Background(), oracleRequest("x"))
	}

	calls := rec.find("counter", "oracle_circuit_calls_total")
	require.Len(t, calls, 2)
	assert.Equal(t, "failure", calls[0].labels["outcome"])
	assert.Equal(t, "rejected", calls[1].labels["outcome"])

	states := rec.find("gauge", "oracle_circuit_state")
	require.NotEmpty(t, states)
	assert.Equal(t, float64(StateOpen), states[len(states)-1].value)
}

func oracleRequest(prompt string) ports.OracleRequest {
	return ports.OracleRequest{Instruction: "rate it", Prompt: prompt}
}
