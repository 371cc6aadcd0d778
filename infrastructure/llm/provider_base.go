package llm

import "sync"

// DefaultMaxTokens bounds generated text when a request does not. Judge
// answers are a score and a short rationale.
const DefaultMaxTokens = 512

// BaseProvider provides common, thread-safe functionality for all LLM
// providers, primarily the default model name.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the name of the model currently configured for the provider.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// resolve returns the model and token bound a request should use.
func (b *BaseProvider) resolve(req Request) (model string, maxTokens int) {
	model = req.Model
	if model == "" {
		model = b.GetModel()
	}
	maxTokens = req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return model, maxTokens
}

// TokenCounter provides a utility for estimating token counts from text.
// This is useful when the provider omits usage data.
type TokenCounter struct {
	// CharactersPerToken represents the average number of characters per token.
	CharactersPerToken float64
}

// NewTokenCounter creates a new TokenCounter with a default character-per-token ratio.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		CharactersPerToken: 4.0, // A common approximation for English text.
	}
}

// EstimateTokens calculates an estimated token count for a given string of text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount returns the actual token count if it is available and positive.
// Otherwise, it falls back to estimating the count based on the provided text.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
