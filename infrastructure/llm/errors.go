package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahrav/gavel-rewards/internal/ports"
)

var (
	ErrEmptyAPIKey      = errors.New("API key cannot be empty")
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrCircuitOpen is returned when the breaker refuses a request without
	// calling the provider.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ErrorType is the provider-independent category of an oracle failure.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	ErrorTypeContentPolicy
	ErrorTypeNetwork
	ErrorTypeTimeout
	ErrorTypeCanceled
)

var errorTypeNames = [...]string{
	ErrorTypeUnknown:        "",
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
	ErrorTypeCanceled:       "canceled",
}

// String returns the label used in error messages and metrics. Unknown is
// the empty string.
func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return ""
	}
	return errorTypeNames[t]
}

// retryable reports whether a judge call failing with t may succeed if
// sent again.
func (t ErrorType) retryable() bool {
	switch t {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	}
	return false
}

// ProviderError is an oracle failure normalized across providers.
type ProviderError struct {
	Type       ErrorType
	Provider   string
	StatusCode int // zero when no HTTP response was received
	Message    string
	// WrappedError is the SDK error the classification came from.
	WrappedError error
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// Error renders as `<provider> error (HTTP <code>) [<type>]: <message>: <cause>`,
// leaving out the parts that are empty.
func (e *ProviderError) Error() string {
	msg := e.Provider + " error"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if name := e.Type.String(); name != "" {
		msg += " [" + name + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.WrappedError != nil {
		msg += ": " + e.WrappedError.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.WrappedError }

// Is maps the category onto the port-level sentinels, so callers holding a
// ports.OracleError can classify it without importing llm.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ports.ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ports.ErrServiceUnavailable:
		return e.Type == ErrorTypeServerError || e.Type == ErrorTypeNetwork
	case ports.ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ports.ErrAuthenticationFailed:
		return e.Type == ErrorTypeAuthentication
	}
	return false
}

// IsRetryable reports whether the retry middleware should send the request
// again.
func (e *ProviderError) IsRetryable() bool { return e.Type.retryable() }

// statusTypes holds the HTTP statuses with a category of their own. Other
// 4xx are bad requests and 5xx server errors.
var statusTypes = map[int]ErrorType{
	http.StatusUnauthorized:    ErrorTypeAuthentication,
	http.StatusForbidden:       ErrorTypeAuthentication,
	http.StatusTooManyRequests: ErrorTypeRateLimit,
	http.StatusNotFound:        ErrorTypeNotFound,
	http.StatusRequestTimeout:  ErrorTypeTimeout,
}

// ErrorClassifier turns SDK errors of one provider into ProviderErrors.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError categorizes a failure by the status the provider
// answered with.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	errType, ok := statusTypes[statusCode]
	switch {
	case ok:
	case statusCode >= 500:
		errType = ErrorTypeServerError
	case statusCode >= 400:
		errType = ErrorTypeBadRequest
	default:
		errType = ErrorTypeUnknown
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// Classify handles what every provider shares once its SDK-specific error
// types have been ruled out: context errors, errors already classified and
// anything else as unknown.
func (ec *ErrorClassifier) Classify(err error) *ProviderError {
	var pe *ProviderError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeCanceled, 0, "request canceled", err)
	case errors.As(err, &pe):
		return pe
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "request failed", err)
	}
}
