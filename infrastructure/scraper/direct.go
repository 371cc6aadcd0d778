package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// Direct scraper defaults.
const (
	DefaultUserAgent    = "Mozilla/5.0 (compatible; GavelRewards/1.0)"
	DefaultPageTimeout  = 30 * time.Second
	DefaultConcurrency  = 8
	DefaultMaxBodyBytes = 8 << 20
)

// DirectConfig configures a DirectScraper.
type DirectConfig struct {
	UserAgent string
	// Timeout bounds each page fetch.
	Timeout time.Duration
	// Concurrency bounds in-flight page fetches within one call.
	Concurrency int
	// MaxBodyBytes truncates larger pages.
	MaxBodyBytes int64
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// DirectScraper fetches every URL itself over HTTP and extracts the page
// text. It stands in for the hosted actor in development and small rounds.
type DirectScraper struct {
	userAgent    string
	timeout      time.Duration
	concurrency  int
	maxBodyBytes int64
	client       *http.Client
	logger       *slog.Logger
}

var _ ports.Scraper = (*DirectScraper)(nil)

// NewDirectScraper builds a DirectScraper, filling unset fields with
// defaults.
func NewDirectScraper(config DirectConfig) *DirectScraper {
	s := &DirectScraper{
		userAgent:    config.UserAgent,
		timeout:      config.Timeout,
		concurrency:  config.Concurrency,
		maxBodyBytes: config.MaxBodyBytes,
		client:       config.HTTPClient,
		logger:       config.Logger,
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.timeout <= 0 {
		s.timeout = DefaultPageTimeout
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = DefaultMaxBodyBytes
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Scrape fetches urls concurrently. Pages that fail are omitted; the call
// fails only when it was cancelled or no page at all could be fetched.
func (s *DirectScraper) Scrape(ctx context.Context, urls []string) ([]ports.ScrapedPage, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		pages   = make([]ports.ScrapedPage, 0, len(urls))
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, u := range urls {
		g.Go(func() error {
			text, err := s.fetch(gctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Debug("page fetch failed", "url", u, "error", err)
				lastErr = err
				return nil
			}
			if text != "" {
				pages = append(pages, ports.ScrapedPage{URL: u, Text: text})
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, ports.NewScrapeError(urls, 0, transportError(err))
	}
	if len(pages) == 0 && lastErr != nil {
		return nil, ports.NewScrapeError(urls, 0, lastErr)
	}
	return pages, nil
}

// fetch downloads one page and returns its text.
func (s *DirectScraper) fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: unsupported url %q", ports.ErrInvalidResponse, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP status %d", statusError(resp.StatusCode), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", transportError(err))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "text/plain", mediaType == "text/markdown":
		return cleanWhitespace(string(body)), nil
	case mediaType == "", mediaType == "text/html", mediaType == "application/xhtml+xml":
		return ExtractText(string(body))
	case strings.HasPrefix(mediaType, "text/"):
		return cleanWhitespace(string(body)), nil
	default:
		return "", fmt.Errorf("%w: unsupported content type %q", ports.ErrInvalidResponse, mediaType)
	}
}
