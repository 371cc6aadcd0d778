package ports

import (
	"errors"
	"fmt"
	"time"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrEmptyResponse indicates that the oracle answered with no text.
	ErrEmptyResponse = errors.New("empty response")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// OracleError represents an error from the oracle.
// It includes details about the model, operation, and any rate limit
// information.
type OracleError struct {
	// Model is the identifier of the model that generated the error.
	Model string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error

	// RetryAfter indicates how long to wait before retrying, if applicable.
	RetryAfter *time.Duration
}

// Error implements the error interface for OracleError.
func (e *OracleError) Error() string {
	msg := fmt.Sprintf("oracle error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *OracleError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried.
func (e *OracleError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewOracleError creates a new OracleError with the given details.
func NewOracleError(model, operation string, err error) *OracleError {
	return &OracleError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}

// ScrapeError represents a failed scraping call for one group of URLs.
type ScrapeError struct {
	// URLs is the group that was requested.
	URLs []string

	// StatusCode is the HTTP status returned by the service, if any.
	StatusCode int

	// Err is the underlying error that caused the call to fail.
	Err error
}

// Error implements the error interface for ScrapeError.
func (e *ScrapeError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("scrape error: urls=%d, status=%d, err=%v", len(e.URLs), e.StatusCode, e.Err)
	}
	return fmt.Sprintf("scrape error: urls=%d, err=%v", len(e.URLs), e.Err)
}

// Unwrap returns the underlying error.
func (e *ScrapeError) Unwrap() error { return e.Err }

// IsRetryable reports whether retrying the same group may succeed.
func (e *ScrapeError) IsRetryable() bool {
	switch {
	case errors.Is(e.Err, ErrRateLimited), errors.Is(e.Err, ErrServiceUnavailable), errors.Is(e.Err, ErrTimeout):
		return true
	case e.StatusCode == 429 || e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// NewScrapeError creates a new ScrapeError with the given details.
func NewScrapeError(urls []string, statusCode int, err error) *ScrapeError {
	return &ScrapeError{
		URLs:       urls,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
