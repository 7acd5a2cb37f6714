package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute, 8)
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"))

	got, ok := c.Get(ctx, "k1")
	if !ok {
		t.Fatalf("expected hit for k1")
	}
	if string(got) != "v1" {
		t.Fatalf("got %q, want %q", got, "v1")
	}

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(time.Minute, 8)
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set(ctx, "k1", []byte("v1"))

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, ok := c.Get(ctx, "k1"); !ok {
		t.Fatalf("entry expired before TTL")
	}

	c.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatalf("entry still alive after TTL")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed, len=%d", c.Len())
	}
}

func TestCacheEvictsOldestInserted(t *testing.T) {
	c := NewCache(time.Minute, 2)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))

	// 读取 a 不应改变淘汰顺序：淘汰按插入序，不按访问序
	c.Get(ctx, "a")

	c.Set(ctx, "c", []byte("3"))

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("oldest entry a should have been evicted")
	}
	if _, ok := c.Get(ctx, "b"); !ok {
		t.Fatalf("entry b should survive eviction")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Fatalf("entry c should be present")
	}
	if c.Len() != 2 {
		t.Fatalf("len=%d, want 2", c.Len())
	}
}

func TestCacheSetExistingDoesNotEvict(t *testing.T) {
	c := NewCache(time.Minute, 2)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Set(ctx, "a", []byte("1x"))

	if c.Len() != 2 {
		t.Fatalf("len=%d, want 2", c.Len())
	}
	got, ok := c.Get(ctx, "a")
	if !ok || string(got) != "1x" {
		t.Fatalf("got %q ok=%v, want updated value", got, ok)
	}
}

func TestCacheGetOrLoadHitSemantics(t *testing.T) {
	c := NewCache(time.Minute, 8)
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("loaded"), nil
	}

	val, hit, err := c.GetOrLoad(ctx, "k", loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Fatalf("first call should report miss")
	}
	if string(val) != "loaded" {
		t.Fatalf("got %q", val)
	}

	val, hit, err = c.GetOrLoad(ctx, "k", loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hit {
		t.Fatalf("second call should report hit")
	}
	if string(val) != "loaded" {
		t.Fatalf("got %q", val)
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}

func TestCacheGetOrLoadError(t *testing.T) {
	c := NewCache(time.Minute, 8)
	ctx := context.Background()

	wantErr := errors.New("backend down")
	_, _, err := c.GetOrLoad(ctx, "k", func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got err %v, want %v", err, wantErr)
	}

	// 失败不得缓存
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("failed load must not populate cache")
	}
}

func TestCacheGetOrLoadCollapsesConcurrent(t *testing.T) {
	c := NewCache(time.Minute, 8)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	loader := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("once"), nil
	}

	const workers = 8
	var wg sync.WaitGroup
	var hits int32
	started := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			val, hit, err := c.GetOrLoad(ctx, "k", loader)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if string(val) != "once" {
				t.Errorf("got %q", val)
			}
			if hit {
				atomic.AddInt32(&hits, 1)
			}
		}()
	}

	for i := 0; i < workers; i++ {
		<-started
	}
	// 给落后的 goroutine 一点时间加入同一航班
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
	// 执行 loader 的那一个调用方报告 miss，其余报告 hit
	if got := atomic.LoadInt32(&hits); got != workers-1 {
		t.Fatalf("hits=%d, want %d", got, workers-1)
	}
}

func TestCacheFlush(t *testing.T) {
	c := NewCache(time.Minute, 8)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))

	if n := c.Flush(ctx); n != 2 {
		t.Fatalf("flushed %d, want 2", n)
	}
	if c.Len() != 0 {
		t.Fatalf("len=%d after flush", c.Len())
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("entry survived flush")
	}
}
