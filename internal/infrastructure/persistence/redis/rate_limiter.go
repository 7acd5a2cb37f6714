// Package redis 提供 Redis 限流器实现
package redis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// RateLimiter 固定窗口限流器
// 窗口按墙钟对齐（如 60s 窗口在每分钟整点重置），同一窗口内
// 的请求共用一个 INCR 计数键。
type RateLimiter struct {
	client *Client
	prefix string
}

// NewRateLimiter 创建限流器
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RateLimiter{client: client, prefix: prefix}
}

// Decision 限流判定结果
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter 被拒绝时距当前窗口结束的时长
	RetryAfter time.Duration
	// Reset 当前窗口结束时刻
	Reset time.Time
}

// Allow 检查是否允许请求（固定窗口算法）
func (l *RateLimiter) Allow(ctx context.Context, clientID string, limit int, window time.Duration) (*Decision, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow")
	span.SetAttributes(
		attribute.String("ratelimit.client_id", clientID),
		attribute.Int("ratelimit.limit", limit),
		attribute.Int64("ratelimit.window_ms", window.Milliseconds()),
	)
	defer span.End()

	now := time.Now()
	windowStart := now.Truncate(window)
	windowEnd := windowStart.Add(window)
	key := l.buildKey(clientID, windowStart)

	pipe := l.client.rdb.Pipeline()
	countCmd := pipe.Incr(ctx, key)
	// 过期时间取两倍窗口，留出时钟偏移余量
	pipe.Expire(ctx, key, window*2)

	_, err := pipe.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	count := countCmd.Val()
	span.SetAttributes(attribute.Int64("ratelimit.current_count", count))

	decision := &Decision{
		Reset: windowEnd,
	}

	if count > int64(limit) {
		decision.Allowed = false
		decision.Remaining = 0
		decision.RetryAfter = windowEnd.Sub(now)
		span.SetAttributes(attribute.Bool("ratelimit.allowed", false))
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = limit - int(count)
	span.SetAttributes(attribute.Bool("ratelimit.allowed", true))
	return decision, nil
}

// Remaining 获取当前窗口剩余配额
func (l *RateLimiter) Remaining(ctx context.Context, clientID string, limit int, window time.Duration) (int, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Remaining")
	span.SetAttributes(attribute.String("ratelimit.client_id", clientID))
	defer span.End()

	windowStart := time.Now().Truncate(window)
	key := l.buildKey(clientID, windowStart)

	count, err := l.client.rdb.Get(ctx, key).Int64()
	if err != nil {
		if IsNil(err) {
			return limit, nil
		}
		span.RecordError(err)
		return 0, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	span.SetAttributes(attribute.Int("ratelimit.remaining", remaining))
	return remaining, nil
}

// Reset 重置某客户端当前窗口的计数
func (l *RateLimiter) Reset(ctx context.Context, clientID string, window time.Duration) error {
	ctx, span := tracer.Start(ctx, "ratelimit.Reset")
	span.SetAttributes(attribute.String("ratelimit.client_id", clientID))
	defer span.End()

	windowStart := time.Now().Truncate(window)
	return l.client.rdb.Del(ctx, l.buildKey(clientID, windowStart)).Err()
}

func (l *RateLimiter) buildKey(clientID string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", l.prefix, clientID, windowStart.Unix())
}
