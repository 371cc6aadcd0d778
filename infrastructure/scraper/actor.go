package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// DefaultActorTimeout bounds one synchronous actor run.
const DefaultActorTimeout = 5 * time.Minute

// maxDatasetBytes caps the decoded dataset of one run.
const maxDatasetBytes = 64 << 20

// ActorConfig configures an ActorClient.
type ActorConfig struct {
	// BaseURL is the scraping service root, e.g. https://api.apify.com.
	BaseURL string
	// Actor is the actor identifier, e.g. apify~website-content-crawler.
	Actor string
	// Token authenticates with the service.
	Token string
	// Concurrency is forwarded as the actor's maxConcurrency; zero leaves
	// the actor default.
	Concurrency int
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ActorClient runs a hosted scraping actor synchronously for one group of
// URLs and returns the dataset items it produced.
type ActorClient struct {
	endpoint    string
	token       string
	concurrency int
	client      *http.Client
	logger      *slog.Logger
}

var _ ports.Scraper = (*ActorClient)(nil)

// NewActorClient validates config and builds a client.
func NewActorClient(config ActorConfig) (*ActorClient, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid actor base URL %q", config.BaseURL)
	}
	if config.Actor == "" {
		return nil, errors.New("actor identifier is required")
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultActorTimeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := base.JoinPath("v2", "acts", config.Actor, "run-sync-get-dataset-items")
	return &ActorClient{
		endpoint:    endpoint.String(),
		token:       config.Token,
		concurrency: config.Concurrency,
		client:      client,
		logger:      logger,
	}, nil
}

type startURL struct {
	URL string `json:"url"`
}

type actorInput struct {
	StartURLs      []startURL `json:"startUrls"`
	MaxCrawlDepth  int        `json:"maxCrawlDepth"`
	MaxCrawlPages  int        `json:"maxCrawlPages"`
	MaxConcurrency int        `json:"maxConcurrency,omitempty"`
}

// datasetItem is one page in the actor's output dataset.
type datasetItem struct {
	URL       string `json:"url"`
	LoadedURL string `json:"loadedUrl"`
	Text      string `json:"text"`
	Markdown  string `json:"markdown"`
	HTML      string `json:"html"`
}

// Scrape runs the actor over urls. Items are matched back to the requested
// URLs; items for other URLs and items without text are dropped. A non-2xx
// answer fails the whole group with a *ports.ScrapeError.
func (c *ActorClient) Scrape(ctx context.Context, urls []string) ([]ports.ScrapedPage, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	input := actorInput{
		StartURLs:      make([]startURL, len(urls)),
		MaxCrawlPages:  len(urls),
		MaxConcurrency: c.concurrency,
	}
	for i, u := range urls {
		input.StartURLs[i] = startURL{URL: u}
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, ports.NewScrapeError(urls, 0, fmt.Errorf("failed to encode actor input: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ports.NewScrapeError(urls, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ports.NewScrapeError(urls, 0, transportError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ports.NewScrapeError(urls, resp.StatusCode,
			fmt.Errorf("%w: %s", statusError(resp.StatusCode), strings.TrimSpace(string(snippet))))
	}

	var items []datasetItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDatasetBytes)).Decode(&items); err != nil {
		return nil, ports.NewScrapeError(urls, resp.StatusCode,
			fmt.Errorf("%w: failed to decode dataset: %v", ports.ErrInvalidResponse, err))
	}

	return c.pages(urls, items), nil
}

// pages maps dataset items onto the requested URLs.
func (c *ActorClient) pages(urls []string, items []datasetItem) []ports.ScrapedPage {
	requested := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		requested[u] = struct{}{}
	}

	pages := make([]ports.ScrapedPage, 0, len(items))
	for _, item := range items {
		u, ok := matchRequested(requested, item.URL, item.LoadedURL)
		if !ok {
			c.logger.Debug("dropping dataset item for unrequested url", "url", item.URL)
			continue
		}
		text := itemText(item)
		if text == "" {
			continue
		}
		pages = append(pages, ports.ScrapedPage{URL: u, Text: text})
	}
	return pages
}

func matchRequested(requested map[string]struct{}, candidates ...string) (string, bool) {
	for _, u := range candidates {
		if u == "" {
			continue
		}
		if _, ok := requested[u]; ok {
			return u, true
		}
	}
	return "", false
}

// itemText prefers plain text, then markdown, then text extracted from HTML.
func itemText(item datasetItem) string {
	if text := strings.TrimSpace(item.Text); text != "" {
		return text
	}
	if md := strings.TrimSpace(item.Markdown); md != "" {
		return md
	}
	if item.HTML != "" {
		if text, err := ExtractText(item.HTML); err == nil {
			return text
		}
	}
	return ""
}

// statusError maps an HTTP status onto the port sentinels.
func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ports.ErrAuthenticationFailed
	case status == http.StatusTooManyRequests:
		return ports.ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ports.ErrTimeout
	case status >= 500:
		return ports.ErrServiceUnavailable
	default:
		return ports.ErrInvalidResponse
	}
}

// transportError classifies a failed round trip.
func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ports.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err)
}
