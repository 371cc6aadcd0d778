package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gavel-rewards/internal/application"
	"github.com/ahrav/gavel-rewards/internal/domain"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		config    application.LogConfig
		wantErr   bool
		debugSeen bool
		contains  string
	}{
		{name: "text info", config: application.LogConfig{Level: "info", Format: "text"}, contains: "msg=visible"},
		{name: "json debug", config: application.LogConfig{Level: "debug", Format: "json"}, debugSeen: true, contains: `"msg":"visible"`},
		{name: "defaults", config: application.LogConfig{}, contains: "msg=visible"},
		{name: "bad level", config: application.LogConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", config: application.LogConfig{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(tt.config, &buf)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			logger.Debug("hidden-unless-debug")
			logger.Info("visible")

			assert.Contains(t, buf.String(), tt.contains)
			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("hidden-unless-debug")))
		})
	}
}

func TestSetup_ServesMetrics(t *testing.T) {
	// Given a config with a custom namespace and an ephemeral metrics port
	configPath := writeConfig(t, "http://127.0.0.1:1", "metrics:\n  namespace: clitest\n")
	rt, err := setup(context.Background(), &rootOptions{configPath: configPath, metricsAddr: "127.0.0.1:0"}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(rt.close)

	// When a pipeline metric is recorded and /metrics is scraped
	rt.metrics.RecordCounter("fetch_attempts_total", 1, nil)
	resp, err := http.Get("http://" + rt.metricsAddr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// Then both runtime and pipeline metrics are exposed
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
	assert.Contains(t, string(body), "clitest_fetch_attempts_total 1")
}

func TestSetup_MetricsAddrInUse(t *testing.T) {
	configPath := writeConfig(t, "http://127.0.0.1:1", "")
	first, err := setup(context.Background(), &rootOptions{configPath: configPath, metricsAddr: "127.0.0.1:0"}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(first.close)

	_, err = setup(context.Background(), &rootOptions{configPath: configPath, metricsAddr: first.metricsAddr}, io.Discard)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen for metrics")
}

func TestRuntime_NewScraper(t *testing.T) {
	configPath := writeConfig(t, "http://127.0.0.1:1", "")
	rt, err := setup(context.Background(), &rootOptions{configPath: configPath}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(rt.close)

	s, err := rt.newScraper()
	require.NoError(t, err)
	assert.NotNil(t, s)

	rt.config.Scraper = application.ScraperConfig{
		Kind:     application.ScraperActor,
		Endpoint: "https://api.apify.com",
		Actor:    "apify~website-content-crawler",
	}
	s, err = rt.newScraper()
	require.NoError(t, err)
	assert.NotNil(t, s)

	rt.config.Scraper.Endpoint = "not a url"
	_, err = rt.newScraper()
	assert.Error(t, err)

	rt.config.Scraper.Kind = "carrier-pigeon"
	_, err = rt.newScraper()
	assert.ErrorContains(t, err, "unknown scraper kind")
}

func TestRuntime_NewBindings(t *testing.T) {
	configPath := writeConfig(t, "http://127.0.0.1:1", "")
	rt, err := setup(context.Background(), &rootOptions{configPath: configPath}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(rt.close)

	oracle, err := rt.newOracle()
	require.NoError(t, err)
	bindings, err := rt.newBindings(oracle)
	require.NoError(t, err)

	require.Len(t, bindings, 2)
	assert.Equal(t, domain.JudgeSectionRelevance, bindings[0].Judge.Kind())
	assert.False(t, bindings[0].Flatten)
	assert.Equal(t, 2, bindings[0].Sections)
	assert.Equal(t, domain.JudgeSourceRelevance, bindings[1].Judge.Kind())
	assert.True(t, bindings[1].Flatten)
	assert.Equal(t, domain.PoolMean, bindings[1].Pooling)

	rt.config.Judges[1].Pooling = "mode"
	_, err = rt.newBindings(oracle)
	assert.Error(t, err)
}

func TestRuntime_ScraperMetrics(t *testing.T) {
	site := newSite(t, map[string]string{"/a": "alpha"})
	configPath := writeConfig(t, "http://127.0.0.1:1", "metrics:\n  namespace: scrapetest\n")
	rt, err := setup(context.Background(), &rootOptions{configPath: configPath, metricsAddr: "127.0.0.1:0"}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(rt.close)

	s, err := rt.newScraper()
	require.NoError(t, err)
	pages, err := s.Scrape(context.Background(), []string{site.URL + "/a"})
	require.NoError(t, err)
	require.Len(t, pages, 1)

	resp, err := http.Get("http://" + rt.metricsAddr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `scrapetest_scrape_pages_total{scraper="direct"} 1`)
}
