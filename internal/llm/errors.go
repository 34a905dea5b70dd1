package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrBreakerOpen is returned when the provider's circuit breaker is open
// and the call was short-circuited without reaching the network.
var ErrBreakerOpen = errors.New("circuit breaker open")

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.Status, e.Message)
}

// Retryable reports whether the failure is transient: rate limiting or a
// server-side error. Auth, policy and bad-request failures are not.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsRetryable classifies an error per the failure taxonomy: API rate
// limits and 5xx are retryable, as are transport-level errors (timeouts
// surface here). Non-retryable provider errors and cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrBreakerOpen) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	// Anything else is a transport error: connection refused, timeout, DNS.
	return true
}

// ParseError is returned when structured output fails strict JSON parsing
// even after repair, so callers can apply format-specific recovery.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("structured output parse failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
