package search

import (
	"fmt"
	"time"
)

// RateLimitedError 限流拒绝
// 携带重试提示，由 HTTP 层转换为 429 与 Retry-After。
type RateLimitedError struct {
	RetryAfter time.Duration
	Reset      time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}
