package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider transports. Adapters wrap provider
// failures with these so callers can branch without knowing the
// transport.
var (
	// ErrRateLimited indicates the provider returned a rate-limit response.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthorized indicates the provider rejected the credentials.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrBadRequest indicates the provider rejected the request payload.
	ErrBadRequest = errors.New("bad request")

	// ErrEmptyResponse indicates the provider returned no completion.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// RateLimitError carries the provider's retry hint alongside
// ErrRateLimited.
type RateLimitError struct {
	// RetryAfter is the provider's Retry-After header value, if any.
	RetryAfter string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "rate limit exceeded"
}

// Is reports ErrRateLimited so errors.Is works on wrapped values.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
