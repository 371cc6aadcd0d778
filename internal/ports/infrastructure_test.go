package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gavel-rewards/internal/domain"
)

// Test that our interfaces can be implemented correctly

type mockOracle struct{ model string }

func (m *mockOracle) Complete(ctx context.Context, req OracleRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "Score: 7", nil
}

func (m *mockOracle) Model() string { return m.model }

type mockScraper struct{ pages map[string]string }

func (m *mockScraper) Scrape(ctx context.Context, urls []string) ([]ScrapedPage, error) {
	var out []ScrapedPage
	for _, u := range urls {
		if text, ok := m.pages[u]; ok {
			out = append(out, ScrapedPage{URL: u, Text: text})
		}
	}
	return out, nil
}

type mockJudge struct{}

func (mockJudge) Kind() domain.JudgeKind { return domain.JudgeSectionRelevance }

func (mockJudge) Score(ctx context.Context, a, b string) (domain.Score, string) {
	return 0.5, "Score: 5"
}

func TestOracleInterface(t *testing.T) {
	var oracle Oracle = &mockOracle{model: "test-model"}

	text, err := oracle.Complete(context.Background(), OracleRequest{Instruction: "judge", Prompt: "p", Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Score: 7", text)
	assert.Equal(t, "test-model", oracle.Model())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = oracle.Complete(ctx, OracleRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScraperInterface(t *testing.T) {
	var scraper Scraper = &mockScraper{pages: map[string]string{"u1": "one"}}

	pages, err := scraper.Scrape(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, []ScrapedPage{{URL: "u1", Text: "one"}}, pages, "failed URLs are omitted")
}

func TestJudgeInterface(t *testing.T) {
	var judge Judge = mockJudge{}

	score, raw := judge.Score(context.Background(), "a", "b")
	assert.Equal(t, domain.Score(0.5), score)
	assert.Equal(t, "Score: 5", raw)
	assert.Equal(t, domain.JudgeSectionRelevance, judge.Kind())
}

func TestNoopMetrics(t *testing.T) {
	var m MetricsCollector = NoopMetrics{}

	assert.NotPanics(t, func() {
		m.RecordLatency("op", time.Second, nil)
		m.RecordCounter("c", 1, map[string]string{"k": "v"})
		m.RecordGauge("g", 1, nil)
		m.RecordHistogram("h", 0.5, nil)
	})
}
