package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPreflight is returned when the known-good lookup made before a run
	// does not produce the expected block.
	ErrPreflight = errors.New("preflight check failed")

	// ErrMissingColumn is returned when the input lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrMalformedResponse is returned when the provider body lacks fields
	// every response must carry.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// RateLimitError reports an HTTP-level rate limit (429) from the provider.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider rate limited: status %d, retry after %s", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("provider rate limited: status %d", e.StatusCode)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
