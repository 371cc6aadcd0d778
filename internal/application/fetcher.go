package application

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/ahrav/gavel-rewards/internal/domain"
	"github.com/ahrav/gavel-rewards/internal/ports"
)

// DefaultMaxAttempts is used when Fetch is given a non-positive maxAttempts.
const DefaultMaxAttempts = 3

// FetchResult is the outcome of BatchFetcher.Fetch.
type FetchResult struct {
	// Content maps every resolved URL to its extracted text.
	Content map[string]string
	// Unresolved lists requested URLs that no attempt resolved, sorted.
	Unresolved []string
	// Attempts is the number of attempts actually made.
	Attempts int
}

// AttemptObserver is called after every attempt with the URLs still pending.
// The slice must not be retained.
type AttemptObserver func(attempt int, pending []string)

// FetcherOption customizes a BatchFetcher.
type FetcherOption func(*BatchFetcher)

// WithFetcherLogger sets the logger used for group failures.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *BatchFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFetcherMetrics records attempts, group failures and unresolved URLs.
func WithFetcherMetrics(metrics ports.MetricsCollector) FetcherOption {
	return func(f *BatchFetcher) {
		if metrics != nil {
			f.metrics = metrics
		}
	}
}

// WithRetryDelay sets the exponential backoff between attempts. A zero base
// disables waiting.
func WithRetryDelay(base, maxDelay time.Duration) FetcherOption {
	return func(f *BatchFetcher) {
		f.retryDelay = base
		f.maxRetryDelay = maxDelay
	}
}

// WithAttemptObserver registers a hook called after every attempt.
func WithAttemptObserver(observer AttemptObserver) FetcherOption {
	return func(f *BatchFetcher) {
		f.observer = observer
	}
}

// WithGroupConcurrency bounds how many group requests are in flight at once.
// Zero means one request per group, all at once.
func WithGroupConcurrency(n int) FetcherOption {
	return func(f *BatchFetcher) {
		f.concurrency = n
	}
}

// BatchFetcher resolves URLs through a ports.Scraper, retrying only the
// subset that is still unresolved. It is safe for concurrent use.
type BatchFetcher struct {
	scraper       ports.Scraper
	logger        *slog.Logger
	metrics       ports.MetricsCollector
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	observer      AttemptObserver
	concurrency   int
}

// NewBatchFetcher creates a fetcher over scraper.
func NewBatchFetcher(scraper ports.Scraper, opts ...FetcherOption) *BatchFetcher {
	f := &BatchFetcher{
		scraper: scraper,
		logger:  slog.Default(),
		metrics: ports.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch resolves urls in at most maxAttempts attempts. Each attempt splits
// the pending URLs into contiguous groups of at most groupSize (a single
// group when groupSize <= 0) and issues one scraper call per group
// concurrently. A failed group contributes nothing and does not stop its
// siblings or later attempts. Pages for URLs that were
// not requested are ignored. Fetch never fails: whatever could not be
// resolved is reported in Unresolved. Cancelling ctx stops further attempts.
func (f *BatchFetcher) Fetch(ctx context.Context, urls []string, groupSize, maxAttempts int) FetchResult {
	requested := domain.DedupURLs(urls)
	if groupSize <= 0 {
		// One group per attempt.
		groupSize = max(len(requested), 1)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	wanted := make(map[string]struct{}, len(requested))
	for _, u := range requested {
		wanted[u] = struct{}{}
	}

	content := make(map[string]string, len(requested))
	pending := requested
	attempt := 0

	for attempt < maxAttempts && len(pending) > 0 {
		if attempt > 0 && !f.wait(ctx, attempt) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		attempt++

		groups := partition(pending, groupSize)
		tasks := make([]Task[[]ports.ScrapedPage], len(groups))
		for i, group := range groups {
			tasks[i] = func(ctx context.Context) ([]ports.ScrapedPage, error) {
				return f.scraper.Scrape(ctx, group)
			}
		}

		labels := map[string]string{"attempt": strconv.Itoa(attempt)}
		start := time.Now()
		results := RunAll(ctx, f.concurrency, tasks)
		f.metrics.RecordLatency("fetch_attempt", time.Since(start), labels)
		f.metrics.RecordCounter("fetch_attempts_total", 1, nil)
		f.metrics.RecordCounter("fetch_groups_total", float64(len(groups)), nil)

		for i, res := range results {
			if !res.OK() {
				f.metrics.RecordCounter("fetch_group_failures_total", 1, nil)
				f.logger.Warn("scrape group failed",
					"attempt", attempt,
					"group_size", len(groups[i]),
					"first_url", groups[i][0],
					"error", res.Err)
				continue
			}
			for _, page := range res.Value {
				if _, ok := wanted[page.URL]; !ok {
					continue
				}
				content[page.URL] = page.Text
			}
		}

		next := make([]string, 0, len(pending))
		for _, u := range pending {
			if _, ok := content[u]; !ok {
				next = append(next, u)
			}
		}
		pending = next

		f.logger.Debug("fetch attempt finished",
			"attempt", attempt,
			"groups", len(groups),
			"resolved", len(content),
			"pending", len(pending))
		if f.observer != nil {
			f.observer(attempt, pending)
		}
	}

	unresolved := slices.Clone(pending)
	slices.Sort(unresolved)

	f.metrics.RecordGauge("fetch_unresolved_urls", float64(len(unresolved)), nil)
	if len(unresolved) > 0 {
		f.logger.Warn("urls left unresolved",
			"count", len(unresolved),
			"attempts", attempt,
			"max_attempts", maxAttempts)
	}

	return FetchResult{Content: content, Unresolved: unresolved, Attempts: attempt}
}

// wait sleeps before the next attempt and reports false if ctx ended first.
func (f *BatchFetcher) wait(ctx context.Context, attempt int) bool {
	delay := f.backoff(attempt)
	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// backoff returns the delay before attempt+1 with ±25% jitter, capped at
// maxRetryDelay when set.
func (f *BatchFetcher) backoff(attempt int) time.Duration {
	if f.retryDelay <= 0 {
		return 0
	}
	shift := min(max(attempt-1, 0), 30)
	delay := time.Duration(float64(f.retryDelay) * float64(int64(1)<<shift))

	// #nosec G404 - jitter does not need a cryptographic source
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if f.maxRetryDelay > 0 && delay > f.maxRetryDelay {
		delay = f.maxRetryDelay
	}
	return delay
}

// partition splits urls into contiguous groups of at most size.
func partition(urls []string, size int) [][]string {
	groups := make([][]string, 0, (len(urls)+size-1)/size)
	for chunk := range slices.Chunk(urls, size) {
		groups = append(groups, chunk)
	}
	return groups
}
