// Package ports defines the boundaries between the reward pipeline and the
// external collaborators it depends on: the oracle, the scraping service,
// the judges and the metrics backend.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/gavel-rewards/internal/domain"
)

// OracleRequest is a single judgment request sent to the oracle.
type OracleRequest struct {
	// Instruction is the fixed system instruction of the calling judge.
	Instruction string

	// Prompt is the rendered user prompt containing both contexts.
	Prompt string

	// Temperature is the sampling temperature. Judges use a fixed value.
	Temperature float64

	// Model overrides the oracle's default model when non-empty.
	Model string

	// MaxTokens bounds the response length. Zero uses the provider default.
	MaxTokens int
}

// Oracle is the external language-model service consulted by judges.
// Implementations should enforce their own per-call timeout; the text they
// return carries no schema guarantee.
type Oracle interface {
	// Complete sends req and returns the free-form response text.
	Complete(ctx context.Context, req OracleRequest) (string, error)

	// Model returns the default model identifier, for logging.
	Model() string
}

// ScrapedPage is one successfully scraped URL.
type ScrapedPage struct {
	// URL is the address exactly as it was requested.
	URL string `json:"url"`

	// Text is the extracted plain text with markup removed.
	Text string `json:"text"`
}

// Scraper is the external scraping service. One call handles one group of
// URLs; pages that failed are omitted and the result is unordered.
// A returned error means the whole group failed.
type Scraper interface {
	Scrape(ctx context.Context, urls []string) ([]ScrapedPage, error)
}

// Judge delegates a single relevance or accuracy decision to the oracle.
// Score never fails: any oracle problem yields a zero score and the raw
// text "Error".
type Judge interface {
	// Kind identifies the criterion this judge applies.
	Kind() domain.JudgeKind

	// Score rates contextA against contextB and returns the normalized
	// score with the raw oracle text it was extracted from.
	Score(ctx context.Context, contextA, contextB string) (domain.Score, string)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, such as a score
	// or a reward.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// NoopMetrics discards every measurement. It is the collector used when
// none is configured.
type NoopMetrics struct{}

func (NoopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NoopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (NoopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (NoopMetrics) RecordHistogram(string, float64, map[string]string)     {}

var _ MetricsCollector = NoopMetrics{}
