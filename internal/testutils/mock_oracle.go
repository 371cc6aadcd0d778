// Package testutils provides deterministic fakes of the pipeline's external
// collaborators for use in tests across packages.
package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// ErrMockOracle is returned by MockOracle when a matching rule says fail.
var ErrMockOracle = errors.New("mock oracle failure")

// MockResponse defines a pre-configured response pattern for MockOracle.
type MockResponse struct {
	// Pattern is matched case-insensitively as a substring of the rendered
	// prompt. The empty pattern matches everything.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
	// Err, when set, is returned instead of Response.
	Err error
	// Panic, when set, makes Complete panic with this value.
	Panic any
}

// MockOracle implements ports.Oracle with deterministic, pattern-matched
// responses. Rules are checked in the order they were added, so specific
// patterns should be added before catch-alls. It records every request and
// is safe for concurrent use.
type MockOracle struct {
	mu        sync.Mutex
	model     string
	responses []MockResponse
	fallback  string
	requests  []ports.OracleRequest
}

var _ ports.Oracle = (*MockOracle)(nil)

// NewMockOracle creates a MockOracle that answers "Score: 7" to anything
// not matched by a rule.
func NewMockOracle(model string) *MockOracle {
	return &MockOracle{
		model:    model,
		fallback: "Score: 7. The content is mostly relevant.",
	}
}

// AddResponse appends a response rule.
func (m *MockOracle) AddResponse(r MockResponse) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// SetFallback changes the response for prompts no rule matches.
func (m *MockOracle) SetFallback(text string) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = text
	return m
}

// Complete implements ports.Oracle.
func (m *MockOracle) Complete(ctx context.Context, req ports.OracleRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	rule, ok := m.match(req.Prompt)
	fallback := m.fallback
	m.mu.Unlock()

	if !ok {
		return fallback, nil
	}
	if rule.Panic != nil {
		panic(rule.Panic)
	}
	if rule.Err != nil {
		return "", rule.Err
	}
	return rule.Response, nil
}

// Model implements ports.Oracle.
func (m *MockOracle) Model() string { return m.model }

// Requests returns a copy of every request received so far.
func (m *MockOracle) Requests() []ports.OracleRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.OracleRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of Complete calls.
func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// CallsMatching counts requests whose prompt contains substr.
func (m *MockOracle) CallsMatching(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if strings.Contains(r.Prompt, substr) {
			n++
		}
	}
	return n
}

func (m *MockOracle) match(prompt string) (MockResponse, bool) {
	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if r.Pattern == "" || strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r, true
		}
	}
	return MockResponse{}, false
}
