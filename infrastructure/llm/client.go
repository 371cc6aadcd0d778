// Package llm adapts hosted language models to the ports.Oracle boundary
// used by the relevance judges.
//
// Providers (OpenAI, Anthropic, Google) implement the small CoreLLM
// interface. Cross-cutting concerns such as retries, per-call timeouts,
// rate limiting, circuit breaking, metrics and tracing are layered on top
// as Middleware, so a judge sees one Complete call regardless of what the
// chain does underneath.
//
// Basic usage:
//
//	oracle, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	    Middleware: llm.BuildMiddleware(llm.ChainConfig{
//	        Provider:   "openai",
//	        Timeout:    time.Minute,
//	        MaxRetries: 2,
//	    }),
//	})
//	text, err := oracle.Complete(ctx, ports.OracleRequest{Prompt: "..."})
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

// Request is a single generation request in provider-neutral form.
type Request struct {
	// Instruction is sent as the system instruction when non-empty.
	Instruction string

	// Prompt is the user message.
	Prompt string

	// Model overrides the provider's configured model when non-empty.
	Model string

	// Temperature is the sampling temperature. Nil uses the provider default.
	Temperature *float64

	// MaxTokens bounds the generated text. Zero uses DefaultMaxTokens.
	MaxTokens int
}

// Response is the provider answer together with its token usage.
type Response struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
}

// CoreLLM defines the minimal interface that LLM providers must implement.
// Middleware wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends req to the provider and returns its answer.
	DoRequest(ctx context.Context, req Request) (Response, error)

	// GetModel returns the configured default model name.
	GetModel() string
}

// Middleware wraps a CoreLLM implementation to add cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig holds all configuration options for creating a Client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model is the default model for requests that do not name one.
	Model string

	// BaseURL overrides the provider endpoint. Leave empty for the default.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero means no bound; the
	// timeout middleware is the usual per-call limit.
	Timeout time.Duration

	// Middleware is applied in order; the first entry is outermost.
	Middleware []Middleware
}

// Client implements ports.Oracle on top of a provider and its middleware
// chain.
type Client struct {
	core     CoreLLM
	provider string
}

var _ ports.Oracle = (*Client)(nil)

// NewClient creates a client for the named provider and assembles the
// middleware chain around it.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := lookupProviderFactory(providerType)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return newClientWithCore(providerType, core, config.Middleware...), nil
}

// newClientWithCore wraps an existing CoreLLM. Tests use it to put the
// middleware chain around a MockCoreLLM.
func newClientWithCore(provider string, core CoreLLM, middleware ...Middleware) *Client {
	// Apply in reverse so the first middleware is the outermost.
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return &Client{core: core, provider: provider}
}

// Complete sends an oracle request through the chain and returns the
// answer text. Empty answers are reported as ports.ErrEmptyResponse and
// every failure is wrapped in a ports.OracleError.
func (c *Client) Complete(ctx context.Context, req ports.OracleRequest) (string, error) {
	resp, err := c.CompleteWithUsage(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// CompleteWithUsage is Complete with token usage attached.
func (c *Client) CompleteWithUsage(ctx context.Context, req ports.OracleRequest) (Response, error) {
	temperature := req.Temperature
	resp, err := c.core.DoRequest(ctx, Request{
		Instruction: req.Instruction,
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: &temperature,
		MaxTokens:   req.MaxTokens,
	})
	model := req.Model
	if model == "" {
		model = c.core.GetModel()
	}
	if err != nil {
		return Response{}, ports.NewOracleError(model, "complete", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return Response{}, ports.NewOracleError(model, "complete", ports.ErrEmptyResponse)
	}
	return resp, nil
}

// Model returns the default model name.
func (c *Client) Model() string { return c.core.GetModel() }

// Provider returns the provider name the client was built for.
func (c *Client) Provider() string { return c.provider }

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	providerFactoriesMu sync.RWMutex
	providerFactories   = map[string]ProviderFactory{}
)

// RegisterProviderFactory registers a provider under name, replacing any
// earlier registration.
func RegisterProviderFactory(name string, factory ProviderFactory) {
	providerFactoriesMu.Lock()
	defer providerFactoriesMu.Unlock()
	providerFactories[name] = factory
}

func lookupProviderFactory(name string) (ProviderFactory, bool) {
	providerFactoriesMu.RLock()
	defer providerFactoriesMu.RUnlock()
	f, ok := providerFactories[name]
	return f, ok
}

// Providers returns the registered provider names.
func Providers() []string {
	providerFactoriesMu.RLock()
	defer providerFactoriesMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	return names
}

// IsRetryable reports whether err is worth retrying: transient provider
// failures and errors of unknown shape are, a tripped circuit breaker and
// permanent provider errors are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrBudgetExceeded) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return true
}
