package memory

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllowUpToLimit(t *testing.T) {
	l := NewRateLimiter()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "client-a", 3, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Fatalf("remaining=%d, want %d", d.Remaining, 3-(i+1))
		}
	}

	d, err := l.Allow(ctx, "client-a", 3, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatalf("request over limit should be rejected")
	}
	if d.Remaining != 0 {
		t.Fatalf("remaining=%d, want 0", d.Remaining)
	}

	// 窗口 10:00:00-10:01:00，当前 10:00:05，还剩 55s
	if d.RetryAfter != 55*time.Second {
		t.Fatalf("retryAfter=%v, want 55s", d.RetryAfter)
	}
	wantReset := time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
	if !d.Reset.Equal(wantReset) {
		t.Fatalf("reset=%v, want %v", d.Reset, wantReset)
	}
}

func TestRateLimiterWindowRollover(t *testing.T) {
	l := NewRateLimiter()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 59, 0, time.UTC)
	l.now = func() time.Time { return base }

	for i := 0; i < 2; i++ {
		if d, _ := l.Allow(ctx, "c", 2, time.Minute); !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if d, _ := l.Allow(ctx, "c", 2, time.Minute); d.Allowed {
		t.Fatalf("third request in window should be rejected")
	}

	// 跨过窗口边界后计数重置
	l.now = func() time.Time { return base.Add(2 * time.Second) }
	d, _ := l.Allow(ctx, "c", 2, time.Minute)
	if !d.Allowed {
		t.Fatalf("request in fresh window should be allowed")
	}
	if d.Remaining != 1 {
		t.Fatalf("remaining=%d, want 1", d.Remaining)
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	l := NewRateLimiter()
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "a", 1, time.Minute); !d.Allowed {
		t.Fatalf("first request for a should pass")
	}
	if d, _ := l.Allow(ctx, "a", 1, time.Minute); d.Allowed {
		t.Fatalf("second request for a should be rejected")
	}
	if d, _ := l.Allow(ctx, "b", 1, time.Minute); !d.Allowed {
		t.Fatalf("client b must not share a's counter")
	}
}

func TestRateLimiterRemainingAndReset(t *testing.T) {
	l := NewRateLimiter()
	ctx := context.Background()

	if r, _ := l.Remaining(ctx, "c", 5, time.Minute); r != 5 {
		t.Fatalf("remaining=%d before any request, want 5", r)
	}

	l.Allow(ctx, "c", 5, time.Minute)
	l.Allow(ctx, "c", 5, time.Minute)

	if r, _ := l.Remaining(ctx, "c", 5, time.Minute); r != 3 {
		t.Fatalf("remaining=%d, want 3", r)
	}

	if err := l.Reset(ctx, "c", time.Minute); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if r, _ := l.Remaining(ctx, "c", 5, time.Minute); r != 5 {
		t.Fatalf("remaining=%d after reset, want 5", r)
	}
}
