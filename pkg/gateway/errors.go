// -- pkg/gateway/errors.go --
package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout indicates the upstream request exceeded its hard timeout.
// The gateway never retries a timeout implicitly.
var ErrTimeout = errors.New("gateway: request timed out")

// RateLimitedError is returned when the upstream rejected the request
// with 429 and the single retry was exhausted.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("gateway: rate limited by upstream (retry after %s)", e.RetryAfter)
}

// UpstreamError is a non-retryable failure from the model endpoint.
// Safety marks content-filter rejections, which must never be silently
// retried.
type UpstreamError struct {
	Status  int
	Message string
	Safety  bool
}

func (e *UpstreamError) Error() string {
	if e.Safety {
		return fmt.Sprintf("gateway: request blocked by safety filter: %s", e.Message)
	}
	return fmt.Sprintf("gateway: upstream error (status %d): %s", e.Status, e.Message)
}
