package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// ErrMockScrape is returned by MockScraper for scheduled group failures.
var ErrMockScrape = errors.New("mock scrape failure")

// MockScraper implements ports.Scraper over a fixed page set with
// scheduled failures. It records every call and is safe for concurrent use.
type MockScraper struct {
	mu sync.Mutex

	pages map[string]string
	// omitUntil[url] = n omits url from the first n requests that include it.
	omitUntil map[string]int
	// failCalls holds 1-based call numbers whose whole group fails.
	failCalls map[int]bool
	// failWhen fails a call whose group contains the url.
	failWhen map[string]bool

	calls    [][]string
	requests map[string]int
}

var _ ports.Scraper = (*MockScraper)(nil)

// NewMockScraper serves pages keyed by URL. URLs missing from pages are
// always omitted, as a real scraper omits pages it failed to fetch.
func NewMockScraper(pages map[string]string) *MockScraper {
	cp := make(map[string]string, len(pages))
	for k, v := range pages {
		cp[k] = v
	}
	return &MockScraper{
		pages:     cp,
		omitUntil: make(map[string]int),
		failCalls: make(map[int]bool),
		failWhen:  make(map[string]bool),
		requests:  make(map[string]int),
	}
}

// OmitUntil omits url from the first n requests that include it.
func (m *MockScraper) OmitUntil(url string, n int) *MockScraper {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omitUntil[url] = n
	return m
}

// FailCall makes the given 1-based calls return an error for their group.
func (m *MockScraper) FailCall(calls ...int) *MockScraper {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range calls {
		m.failCalls[c] = true
	}
	return m
}

// FailWhenContains makes every call whose group includes url fail.
func (m *MockScraper) FailWhenContains(url string) *MockScraper {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWhen[url] = true
	return m
}

// Scrape implements ports.Scraper.
func (m *MockScraper) Scrape(ctx context.Context, urls []string) ([]ports.ScrapedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	group := append([]string(nil), urls...)
	m.calls = append(m.calls, group)
	call := len(m.calls)

	fail := m.failCalls[call]
	for _, u := range urls {
		m.requests[u]++
		if m.failWhen[u] {
			fail = true
		}
	}
	if fail {
		return nil, ports.NewScrapeError(group, 503, ErrMockScrape)
	}

	var pages []ports.ScrapedPage
	// Reverse order: callers must not rely on ordering.
	for i := len(urls) - 1; i >= 0; i-- {
		u := urls[i]
		text, ok := m.pages[u]
		if !ok || m.requests[u] <= m.omitUntil[u] {
			continue
		}
		pages = append(pages, ports.ScrapedPage{URL: u, Text: text})
	}
	return pages, nil
}

// Calls returns a copy of every group requested, in call order.
func (m *MockScraper) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// RequestCount returns how many calls included url.
func (m *MockScraper) RequestCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[url]
}

// CallCount returns the number of Scrape calls.
func (m *MockScraper) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
