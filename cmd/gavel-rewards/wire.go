package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/gavel-rewards/infrastructure/judges"
	"github.com/ahrav/gavel-rewards/infrastructure/llm"
	"github.com/ahrav/gavel-rewards/infrastructure/middleware"
	"github.com/ahrav/gavel-rewards/infrastructure/scraper"
	"github.com/ahrav/gavel-rewards/internal/application"
	"github.com/ahrav/gavel-rewards/internal/domain"
	"github.com/ahrav/gavel-rewards/internal/ports"
)

// defaultKeyEnv names the API key variable of each provider when the
// config does not.
var defaultKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// defaultTokenEnv holds the scraping service token when scraper.token_env
// is unset.
const defaultTokenEnv = "APIFY_TOKEN"

// runtime owns the process-wide observability plumbing of one command and
// builds the pipeline components from the loaded config.
type runtime struct {
	config   *application.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *middleware.PrometheusMetrics
	tracing  *middleware.TracerProvider

	server      *http.Server
	metricsAddr string
}

// setup loads the config and starts logging, metrics and tracing.
func setup(ctx context.Context, opts *rootOptions, logOut io.Writer) (*runtime, error) {
	loader, err := application.NewConfigLoader()
	if err != nil {
		return nil, err
	}
	config, err := loader.LoadFromFile(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(config.Log, logOut)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tp, err := middleware.NewTracerProvider(ctx, middleware.TracingConfig{
		Enabled:        config.Tracing.Enabled,
		Exporter:       config.Tracing.Exporter,
		Endpoint:       config.Tracing.Endpoint,
		SampleRate:     config.Tracing.SampleRate,
		ServiceName:    config.Tracing.ServiceName,
		ServiceVersion: config.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}

	rt := &runtime{
		config:   config,
		logger:   logger,
		registry: registry,
		metrics:  middleware.NewPrometheusMetrics(registry, config.Metrics.Namespace),
		tracing:  tp,
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = config.Metrics.Addr
	}
	if addr != "" {
		if err := rt.serveMetrics(addr); err != nil {
			_ = tp.Shutdown(ctx)
			return nil, err
		}
	}
	return rt, nil
}

// newLogger builds a slog logger from the log section.
func newLogger(config application.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if config.Level != "" {
		if err := level.UnmarshalText([]byte(config.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	switch config.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", config.Format)
	}
}

// serveMetrics exposes the registry on addr until close.
func (rt *runtime) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	rt.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	rt.metricsAddr = ln.Addr().String()

	go func() {
		if err := rt.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server stopped", "error", err)
		}
	}()
	rt.logger.Info("serving metrics", "addr", rt.metricsAddr)
	return nil
}

// close stops the metrics server and flushes pending spans.
func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if rt.server != nil {
		if err := rt.server.Shutdown(ctx); err != nil {
			rt.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	if err := rt.tracing.Shutdown(ctx); err != nil {
		rt.logger.Warn("tracer shutdown failed", "error", err)
	}
}

// newOracle builds the LLM client and its middleware chain.
func (rt *runtime) newOracle() (*llm.Client, error) {
	c := rt.config.Oracle
	provider, model, err := application.ParseModel(c.Model)
	if err != nil {
		return nil, err
	}

	keyEnv := c.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultKeyEnv[provider]
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("oracle API key is required (set the %s environment variable)", keyEnv)
	}

	chain := llm.ChainConfig{
		Provider:          provider,
		Metrics:           rt.metrics,
		MaxRetries:        c.MaxRetries,
		RetryBaseDelay:    c.RetryBaseDelay,
		RetryMaxDelay:     c.RetryMaxDelay,
		BreakerThreshold:  c.CircuitBreaker.FailureThreshold,
		BreakerCooldown:   c.CircuitBreaker.Cooldown,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		Timeout:           c.Timeout,
		Budget:            llm.Budget{MaxTokens: c.Budget.MaxTokens, MaxCalls: c.Budget.MaxCalls},
		BudgetObserver:    middleware.NewOTelBudgetObserver(rt.metrics, provider),
	}
	if rt.config.Tracing.Enabled {
		chain.Tracer = rt.tracing.Tracer()
	}

	client, err := llm.NewClient(provider, llm.ClientConfig{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    c.BaseURL,
		Middleware: llm.BuildMiddleware(chain),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s oracle: %w", provider, err)
	}
	rt.logger.Debug("oracle ready", "provider", provider, "model", model)
	return client, nil
}

// newScraper builds the configured scraping adapter wrapped in tracing,
// metrics, rate limiting and a per-call timeout, outermost first.
func (rt *runtime) newScraper() (ports.Scraper, error) {
	c := rt.config.Scraper

	var base ports.Scraper
	switch c.Kind {
	case application.ScraperActor:
		tokenEnv := c.TokenEnv
		if tokenEnv == "" {
			tokenEnv = defaultTokenEnv
		}
		actor, err := scraper.NewActorClient(scraper.ActorConfig{
			BaseURL:     c.Endpoint,
			Actor:       c.Actor,
			Token:       os.Getenv(tokenEnv),
			Concurrency: c.Concurrency,
			Logger:      rt.logger,
		})
		if err != nil {
			return nil, err
		}
		base = actor
	case application.ScraperDirect:
		base = scraper.NewDirectScraper(scraper.DirectConfig{
			UserAgent:   c.UserAgent,
			Concurrency: c.Concurrency,
			Logger:      rt.logger,
		})
	default:
		return nil, fmt.Errorf("unknown scraper kind: %s", c.Kind)
	}

	var chain []scraper.Middleware
	if rt.config.Tracing.Enabled {
		chain = append(chain, scraper.WithTracing(rt.tracing.Tracer(), c.Kind))
	}
	chain = append(chain,
		scraper.WithMetrics(rt.metrics, c.Kind),
		scraper.WithRateLimit(c.RequestsPerSecond, 1),
		scraper.WithTimeout(c.Timeout),
	)
	return scraper.Chain(base, chain...), nil
}

// newFetcher builds the retrying batch fetcher over s.
func (rt *runtime) newFetcher(s ports.Scraper) *application.BatchFetcher {
	return application.NewBatchFetcher(s,
		application.WithFetcherLogger(rt.logger),
		application.WithFetcherMetrics(rt.metrics),
		application.WithRetryDelay(rt.config.Scraper.RetryDelay, rt.config.Scraper.MaxRetryDelay),
	)
}

// newBindings builds one judge per configured entry.
func (rt *runtime) newBindings(oracle ports.Oracle) ([]application.JudgeBinding, error) {
	bindings := make([]application.JudgeBinding, 0, len(rt.config.Judges))
	for _, jc := range rt.config.Judges {
		judge, err := judges.NewForKind(jc.Kind, oracle, judges.Settings{
			Model:       jc.Model,
			Temperature: jc.Temperature,
			MaxTokens:   jc.MaxTokens,
		}, judges.WithLogger(rt.logger), judges.WithMetrics(rt.metrics))
		if err != nil {
			return nil, fmt.Errorf("judge %s: %w", jc.Kind, err)
		}
		pooling, err := domain.ParsePooling(jc.Pooling)
		if err != nil {
			return nil, fmt.Errorf("judge %s: %w", jc.Kind, err)
		}
		bindings = append(bindings, application.JudgeBinding{
			Judge:          judge,
			Sections:       jc.Sections,
			Links:          jc.Links,
			Flatten:        jc.Flatten(),
			Weight:         jc.Weight,
			Pooling:        pooling,
			MaxConcurrency: jc.MaxConcurrency,
		})
	}
	return bindings, nil
}

// newAggregator assembles the reward pipeline. A nil seed samples from an
// unseeded source.
func (rt *runtime) newAggregator(oracle ports.Oracle, s ports.Scraper, seed *uint64) (*application.RewardAggregator, error) {
	bindings, err := rt.newBindings(oracle)
	if err != nil {
		return nil, err
	}

	opts := []application.AggregatorOption{
		application.WithFetchPolicy(rt.config.Scraper.GroupSize, rt.config.Scraper.MaxAttempts),
		application.WithParticipantConcurrency(rt.config.Round.ParticipantConcurrency),
		application.WithAggregatorLogger(rt.logger),
		application.WithAggregatorMetrics(rt.metrics),
	}
	if seed != nil {
		opts = append(opts, application.WithSampler(application.NewSampler(*seed)))
	}
	if rt.config.Tracing.Enabled {
		opts = append(opts, application.WithTracer(rt.tracing.Tracer()))
	}
	return application.NewRewardAggregator(rt.newFetcher(s), bindings, opts...)
}
