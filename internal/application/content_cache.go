package application

import (
	"context"
	"maps"
	"slices"
)

// URLFetcher resolves URLs to extracted page text.
type URLFetcher interface {
	Fetch(ctx context.Context, urls []string, groupSize, maxAttempts int) FetchResult
}

var _ URLFetcher = (*BatchFetcher)(nil)

// ContentCache holds the page text of one round. It is filled by a single
// fetch when created and is read-only afterwards, so concurrent readers need
// no locking. A missing entry means the URL failed or was never requested.
type ContentCache struct {
	content    map[string]string
	unresolved []string
	attempts   int
}

// NewContentCache fetches the deduplicated urls once and returns the
// populated cache.
func NewContentCache(ctx context.Context, fetcher URLFetcher, urls []string, groupSize, maxAttempts int) *ContentCache {
	res := fetcher.Fetch(ctx, urls, groupSize, maxAttempts)
	content := res.Content
	if content == nil {
		content = make(map[string]string)
	}
	return &ContentCache{
		content:    content,
		unresolved: res.Unresolved,
		attempts:   res.Attempts,
	}
}

// Content returns the text fetched for url.
func (c *ContentCache) Content(url string) (string, bool) {
	text, ok := c.content[url]
	return text, ok
}

// Len returns the number of resolved URLs.
func (c *ContentCache) Len() int { return len(c.content) }

// URLs returns the resolved URLs in sorted order.
func (c *ContentCache) URLs() []string {
	return slices.Sorted(maps.Keys(c.content))
}

// Unresolved returns the requested URLs that could not be fetched, sorted.
func (c *ContentCache) Unresolved() []string { return slices.Clone(c.unresolved) }

// Attempts returns how many fetch attempts filling the cache took.
func (c *ContentCache) Attempts() int { return c.attempts }
