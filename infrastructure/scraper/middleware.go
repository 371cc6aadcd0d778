package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// Func adapts a function to ports.Scraper.
type Func func(ctx context.Context, urls []string) ([]ports.ScrapedPage, error)

// Scrape calls f.
func (f Func) Scrape(ctx context.Context, urls []string) ([]ports.ScrapedPage, error) {
	return f(ctx, urls)
}

// Middleware decorates a scraper.
type Middleware func(ports.Scraper) ports.Scraper

// Chain wraps s so that the first middleware is the outermost.
func Chain(s ports.Scraper, middleware ...Middleware) ports.Scraper {
	for i := len(middleware) - 1; i >= 0; i-- {
		s = middleware[i](s)
	}
	return s
}

// WithTimeout bounds every call to d. A non-positive d disables the bound.
func WithTimeout(d time.Duration) Middleware {
	return func(next ports.Scraper) ports.Scraper {
		if d <= 0 {
			return next
		}
		return Func(func(ctx context.Context, urls []string) ([]ports.ScrapedPage, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Scrape(ctx, urls)
		})
	}
}

// WithRateLimit spaces calls to at most rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Middleware {
	return func(next ports.Scraper) ports.Scraper {
		if rps <= 0 {
			return next
		}
		limiter := rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		return Func(func(ctx context.Context, urls []string) ([]ports.ScrapedPage, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, ports.NewScrapeError(urls, 0, fmt.Errorf("rate limit: %w", err))
			}
			return next.Scrape(ctx, urls)
		})
	}
}

// WithMetrics records call latency, outcome and page counts under the
// scraper label name. A nil collector disables recording.
func WithMetrics(collector ports.MetricsCollector, name string) Middleware {
	return func(next ports.Scraper) ports.Scraper {
		if collector == nil {
			return next
		}
		return Func(func(ctx context.Context, urls []string) ([]ports.ScrapedPage, error) {
			start := time.Now()
			pages, err := next.Scrape(ctx, urls)

			labels := map[string]string{"scraper": name, "status": callStatus(err)}
			collector.RecordLatency("scrape_call", time.Since(start), labels)
			collector.RecordCounter("scrape_calls_total", 1, labels)
			if err == nil {
				collector.RecordCounter("scrape_pages_total", float64(len(pages)), map[string]string{"scraper": name})
			}
			return pages, err
		})
	}
}

// WithTracing wraps every call in a client span.
func WithTracing(tracer trace.Tracer, name string) Middleware {
	return func(next ports.Scraper) ports.Scraper {
		return Func(func(ctx context.Context, urls []string) ([]ports.ScrapedPage, error) {
			ctx, span := tracer.Start(ctx, "scraper.scrape",
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("scraper.name", name),
					attribute.Int("scraper.urls", len(urls)),
				),
			)
			defer span.End()

			pages, err := next.Scrape(ctx, urls)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return pages, err
			}
			span.SetAttributes(attribute.Int("scraper.pages", len(pages)))
			span.SetStatus(codes.Ok, "")
			return pages, nil
		})
	}
}

// callStatus labels the outcome of a call.
func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ports.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ports.ErrAuthenticationFailed):
		return "unauthorized"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
