package market

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors - use with errors.Is()
var (
	// API errors
	ErrUnauthorized    = errors.New("tradekit: unauthorized (invalid credentials)")
	ErrForbidden       = errors.New("tradekit: forbidden")
	ErrNotFound        = errors.New("tradekit: not found")
	ErrTooManyRequests = errors.New("tradekit: too many requests")

	// Source errors
	ErrNotConnected         = errors.New("tradekit: source not connected")
	ErrNoData               = errors.New("tradekit: no data returned")
	ErrUnsupportedTimeframe = errors.New("tradekit: unsupported timeframe")
	ErrUnknownSource        = errors.New("tradekit: unknown source")

	// Client errors
	ErrResponseTooLarge = errors.New("tradekit: response too large")
	ErrInvalidConfig    = errors.New("tradekit: invalid configuration")
	ErrInvalidAPIKey    = errors.New("tradekit: invalid API key")
)

// APIError represents an error response from an upstream market-data or
// brokerage API. Use errors.As() to extract details, errors.Is() to match
// sentinels.
type APIError struct {
	Source      string // upstream source name
	Endpoint    string // endpoint or operation that failed
	Code        int    // HTTP status or vendor error code
	Description string
	RetryAfter  time.Duration
	cause       error // underlying sentinel for errors.Is()
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("tradekit: %s %s failed: %s (code=%d, retry_after=%s)",
			e.Source, e.Endpoint, e.Description, e.Code, e.RetryAfter)
	}
	return fmt.Sprintf("tradekit: %s %s failed: %s (code=%d)",
		e.Source, e.Endpoint, e.Description, e.Code)
}

// Unwrap returns the underlying sentinel error for errors.Is() support.
func (e *APIError) Unwrap() error { return e.cause }

// IsRetryable returns true if the error is temporary and may succeed on retry.
func (e *APIError) IsRetryable() bool {
	return e.Code == 429 || (e.Code >= 500 && e.Code <= 504)
}

// NewAPIError creates an APIError with automatic sentinel detection.
func NewAPIError(source, endpoint string, code int, description string) *APIError {
	return &APIError{
		Source:      source,
		Endpoint:    endpoint,
		Code:        code,
		Description: description,
		cause:       detectSentinel(code),
	}
}

// NewAPIErrorWithRetry creates an APIError carrying a retry-after hint.
func NewAPIErrorWithRetry(source, endpoint string, code int, description string, retryAfter time.Duration) *APIError {
	e := NewAPIError(source, endpoint, code, description)
	e.RetryAfter = retryAfter
	return e
}

func detectSentinel(code int) error {
	switch code {
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 429:
		return ErrTooManyRequests
	}
	return nil
}

// ValidationError represents a request validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tradekit: validation: %s - %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
