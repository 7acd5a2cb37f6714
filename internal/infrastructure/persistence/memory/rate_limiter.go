// Package memory 提供进程内缓存与限流实现
package memory

import (
	"context"
	"sync"
	"time"
)

// Decision 限流判定结果
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter 被拒绝时距当前窗口结束的时长
	RetryAfter time.Duration
	// Reset 当前窗口结束时刻
	Reset time.Time
}

// RateLimiter 进程内固定窗口限流器
// 窗口按墙钟对齐，与 Redis 实现保持相同语义。
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*clientWindow

	// now 可注入，测试用
	now func() time.Time
}

type clientWindow struct {
	start time.Time
	count int
}

// NewRateLimiter 创建限流器
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

// Allow 检查是否允许请求（固定窗口算法）
func (l *RateLimiter) Allow(ctx context.Context, clientID string, limit int, window time.Duration) (*Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Truncate(window)
	windowEnd := windowStart.Add(window)

	w, ok := l.windows[clientID]
	if !ok || !w.start.Equal(windowStart) {
		w = &clientWindow{start: windowStart}
		l.windows[clientID] = w
	}

	w.count++

	decision := &Decision{
		Reset: windowEnd,
	}

	if w.count > limit {
		decision.Allowed = false
		decision.Remaining = 0
		decision.RetryAfter = windowEnd.Sub(now)
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = limit - w.count
	return decision, nil
}

// Remaining 获取当前窗口剩余配额
func (l *RateLimiter) Remaining(ctx context.Context, clientID string, limit int, window time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := l.now().Truncate(window)
	w, ok := l.windows[clientID]
	if !ok || !w.start.Equal(windowStart) {
		return limit, nil
	}

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset 重置某客户端的计数
func (l *RateLimiter) Reset(ctx context.Context, clientID string, window time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, clientID)
	return nil
}
