package rcsb

import (
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// RateLimitError reports a 429 response that outlived the retry budget.
type RateLimitError struct {
	RetryAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rcsb: rate limit exceeded, retry at %s", e.RetryAt.Format(time.RFC3339))
}

// Is matches domain.ErrRateLimited and domain.ErrSource.
func (e *RateLimitError) Is(target error) bool {
	return target == domain.ErrRateLimited || target == domain.ErrSource
}

// APIError represents a non-success HTTP response.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rcsb: HTTP %d (URL: %s)", e.StatusCode, e.URL)
}

// Is matches domain.ErrSource, and domain.ErrNotFound for 404.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrSource:
		return true
	case domain.ErrNotFound:
		return e.StatusCode == 404
	}
	return false
}

// IsNotFound checks if the error indicates an unknown structure ID.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// retryable reports whether a status code is worth another attempt.
func retryable(status int) bool {
	return status == 429 || status >= 500
}
