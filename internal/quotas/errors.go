package quotas

import (
	"fmt"
)

// RateLimitingError is returned when the rate limiter cannot decide, usually because Redis is
// unreachable. Callers should accept the data in that case.
type RateLimitingError struct {
	Err error
}

func (e RateLimitingError) Error() string {
	return fmt.Sprintf("failed to check rate limits: %s", e.Err)
}

func (e RateLimitingError) Unwrap() error { return e.Err }
