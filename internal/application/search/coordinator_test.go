package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"podcast-search-api/internal/config"
	"podcast-search-api/internal/infrastructure/persistence/memory"
	apperrors "podcast-search-api/pkg/errors"
)

type fakeEmbedder struct {
	vec   []float32
	errs  []error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	return [][]float32{f.vec}, nil
}

type fakeLimiter struct {
	decision *LimitDecision
	err      error
	calls    int
}

func (f *fakeLimiter) Allow(ctx context.Context, clientID string) (*LimitDecision, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.decision, nil
}

type fakeSynth struct {
	answer      string
	err         error
	calls       int
	gotQuery    string
	gotPassages []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, query string, passages []string) (string, error) {
	f.calls++
	f.gotQuery = query
	f.gotPassages = passages
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type coordinatorFixture struct {
	coordinator *Coordinator
	vector      *fakeVectorSearcher
	keyword     *fakeKeywordSearcher
	embedder    *fakeEmbedder
	limiter     *fakeLimiter
	synth       *fakeSynth
}

func newFixture(mutate func(*coordinatorFixture, *config.SearchConfig)) *coordinatorFixture {
	f := &coordinatorFixture{
		vector:   &fakeVectorSearcher{hits: []VectorHit{vhit("a", 0.1, 10)}},
		keyword:  &fakeKeywordSearcher{},
		embedder: &fakeEmbedder{vec: []float32{0.1, 0.2}},
		limiter:  &fakeLimiter{decision: &LimitDecision{Allowed: true, Remaining: 5}},
		synth:    &fakeSynth{answer: "synthesized answer"},
	}
	cfg := testSearchConfig()
	cfg.EmbedRetryBackoff = time.Millisecond
	cfg.Synthesis = config.SynthesisConfig{
		Enabled:    true,
		MinScore:   0.6,
		TopContext: 2,
		Timeout:    time.Second,
	}
	if mutate != nil {
		mutate(f, cfg)
	}

	engine := NewEngine(f.vector, f.keyword, cfg)
	gate := NewGate(f.synth, &cfg.Synthesis)
	cache := memory.NewCache(time.Minute, 64)
	f.coordinator = NewCoordinator(cache, f.limiter, f.embedder, engine, gate, cfg, "test")
	return f
}

func TestCoordinatorRejectsEmptyQuery(t *testing.T) {
	f := newFixture(nil)

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := f.coordinator.Search(context.Background(), Query{Text: text})
		if err == nil {
			t.Fatalf("expected error for query %q", text)
		}
		appErr := apperrors.AsAppError(err)
		if appErr.Code != apperrors.CodeInvalidParam {
			t.Fatalf("code=%s, want %s", appErr.Code, apperrors.CodeInvalidParam)
		}
	}
	if f.embedder.calls != 0 {
		t.Fatalf("invalid query must not reach the embedder")
	}
}

func TestCoordinatorRateLimited(t *testing.T) {
	f := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		f.limiter.decision = &LimitDecision{
			Allowed:    false,
			RetryAfter: 42 * time.Second,
			Reset:      time.Now().Add(42 * time.Second),
		}
	})

	_, err := f.coordinator.Search(context.Background(), Query{Text: "q", ClientID: "c1"})
	var rle *RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rle.RetryAfter != 42*time.Second {
		t.Fatalf("retryAfter=%v, want 42s", rle.RetryAfter)
	}
	// 被限流的请求不触碰缓存和后端
	if f.embedder.calls != 0 {
		t.Fatalf("rejected request must not reach the embedder")
	}
}

func TestCoordinatorFailsOpenOnLimiterError(t *testing.T) {
	f := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		f.limiter.err = errors.New("redis down")
	})

	resp, err := f.coordinator.Search(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("limiter failure must not reject the request: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results=%v", resp.Results)
	}
}

func TestCoordinatorCacheHitOnRepeat(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	first, err := f.coordinator.Search(ctx, Query{Text: "Go compilers", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CacheHit {
		t.Fatalf("first request must be a miss")
	}
	if first.SearchMethod != MethodVector {
		t.Fatalf("method=%q", first.SearchMethod)
	}

	// 大小写与空白差异命中同一条目
	second, err := f.coordinator.Search(ctx, Query{Text: "  go   COMPILERS ", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.CacheHit {
		t.Fatalf("second request must be a hit")
	}
	if f.embedder.calls != 1 {
		t.Fatalf("embedder called %d times, want 1", f.embedder.calls)
	}
	if len(second.Results) != len(first.Results) {
		t.Fatalf("cached results differ")
	}

	// 不同分页参数是不同条目
	third, err := f.coordinator.Search(ctx, Query{Text: "go compilers", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.CacheHit {
		t.Fatalf("different limit must be a separate cache entry")
	}
}

func TestCoordinatorEmbedRetrySucceeds(t *testing.T) {
	f := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		f.embedder.errs = []error{errors.New("transient")}
	})

	resp, err := f.coordinator.Search(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.embedder.calls != 2 {
		t.Fatalf("embedder calls=%d, want 2", f.embedder.calls)
	}
	if resp.SearchMethod != MethodVector {
		t.Fatalf("method=%q, want %q", resp.SearchMethod, MethodVector)
	}
}

func TestCoordinatorDegradesToKeywordWhenEmbeddingDown(t *testing.T) {
	f := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		f.embedder.errs = []error{errors.New("down"), errors.New("down")}
		f.keyword.hits = []KeywordHit{khit("k", 0.5, 10)}
	})

	resp, err := f.coordinator.Search(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.embedder.calls != 2 {
		t.Fatalf("embedder calls=%d, want 2 (single retry)", f.embedder.calls)
	}
	if resp.SearchMethod != MethodTextFallback {
		t.Fatalf("method=%q, want %q", resp.SearchMethod, MethodTextFallback)
	}
	if f.vector.calls != 0 {
		t.Fatalf("vector search must not run without embedding")
	}
}

func TestCoordinatorSynthesisAboveThreshold(t *testing.T) {
	f := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		// 距离 0.1 → 相似度 0.9，超过 0.6 阈值
		f.vector.hits = []VectorHit{vhit("a", 0.1, 10), vhit("b", 0.2, 10), vhit("c", 0.3, 10)}
	})

	resp, err := f.coordinator.Search(context.Background(), Query{Text: "what is wasm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "synthesized answer" {
		t.Fatalf("answer=%q", resp.Answer)
	}
	if f.synth.calls != 1 {
		t.Fatalf("synth calls=%d", f.synth.calls)
	}
	if f.synth.gotQuery != "what is wasm" {
		t.Fatalf("synth query=%q", f.synth.gotQuery)
	}
	// TopContext=2 只取前两段作为上下文
	if len(f.synth.gotPassages) != 2 {
		t.Fatalf("passages=%d, want 2", len(f.synth.gotPassages))
	}
}

func TestCoordinatorSynthesisSkippedBelowThreshold(t *testing.T) {
	f := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		// 距离 0.7 → 相似度 0.3，低于阈值
		f.vector.hits = []VectorHit{vhit("a", 0.7, 10)}
	})

	resp, err := f.coordinator.Search(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "" {
		t.Fatalf("answer should be empty, got %q", resp.Answer)
	}
	if f.synth.calls != 0 {
		t.Fatalf("synth must not be called below threshold")
	}
}

func TestCoordinatorSynthesisFailureDegradesSilently(t *testing.T) {
	f := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		f.synth.err = errors.New("llm unavailable")
	})

	resp, err := f.coordinator.Search(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("synthesis failure must not fail the request: %v", err)
	}
	if resp.Answer != "" {
		t.Fatalf("answer should be empty, got %q", resp.Answer)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results must survive synthesis failure")
	}
}

func TestCoordinatorEmptyResultsNotNil(t *testing.T) {
	f := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		f.vector.hits = nil
	})

	resp, err := f.coordinator.Search(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results == nil {
		t.Fatalf("results must be an empty slice, not nil")
	}
	if len(resp.Results) != 0 {
		t.Fatalf("results=%v", resp.Results)
	}
}

func TestCoordinatorRejectsOutOfRangePaging(t *testing.T) {
	f := newFixture(nil)

	// 越界分页参数直接拒绝，不静默截断
	for _, q := range []Query{
		{Text: "q", Limit: 500}, // 超过 MaxLimit=50
		{Text: "q", Limit: -1},
		{Text: "q", Offset: -1},
	} {
		_, err := f.coordinator.Search(context.Background(), q)
		if err == nil {
			t.Fatalf("expected error for query %+v", q)
		}
		appErr := apperrors.AsAppError(err)
		if appErr.Code != apperrors.CodeInvalidParam {
			t.Fatalf("code=%s, want %s", appErr.Code, apperrors.CodeInvalidParam)
		}
	}
	if f.embedder.calls != 0 {
		t.Fatalf("rejected request must not reach the embedder")
	}

	// 未给 limit 使用 DefaultLimit=10，候选数 = 20 × 10
	_, err := f.coordinator.Search(context.Background(), Query{Text: "another"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.vector.gotTopK != 200 {
		t.Fatalf("topK=%d, want 200", f.vector.gotTopK)
	}
}

func TestCoordinatorTotalResultsMatchesPage(t *testing.T) {
	f := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		f.vector.hits = []VectorHit{
			vhit("a", 0.1, 10), vhit("b", 0.2, 10), vhit("c", 0.3, 10), vhit("d", 0.4, 10),
		}
	})
	ctx := context.Background()

	// total_results 恒等于本页结果数，与召回候选总量无关
	resp, err := f.coordinator.Search(ctx, Query{Text: "q", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results=%d, want 2", len(resp.Results))
	}
	if resp.TotalResults != len(resp.Results) {
		t.Fatalf("total_results=%d, want %d", resp.TotalResults, len(resp.Results))
	}

	// 缓存命中同样保持该不变量
	cached, err := f.coordinator.Search(ctx, Query{Text: "q", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cached.CacheHit {
		t.Fatalf("second request must be a hit")
	}
	if cached.TotalResults != len(cached.Results) {
		t.Fatalf("total_results=%d, want %d", cached.TotalResults, len(cached.Results))
	}

	// 空结果集 total_results = 0
	f2 := newFixture(func(f *coordinatorFixture, cfg *config.SearchConfig) {
		f.vector.hits = nil
	})
	empty, err := f2.coordinator.Search(ctx, Query{Text: "nothing here"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.TotalResults != 0 {
		t.Fatalf("total_results=%d, want 0", empty.TotalResults)
	}
}

func TestCacheKeyNormalization(t *testing.T) {
	a := CacheKey("p", Query{Text: "Go  Compilers", Limit: 10})
	b := CacheKey("p", Query{Text: "  go compilers ", Limit: 10})
	if a != b {
		t.Fatalf("normalized queries must share a key: %q vs %q", a, b)
	}

	c := CacheKey("p", Query{Text: "go compilers", Limit: 20})
	if a == c {
		t.Fatalf("different limit must produce a different key")
	}

	d := CacheKey("p", Query{Text: "go compilers", Limit: 10, FeedID: "f1"})
	if a == d {
		t.Fatalf("feed filter must produce a different key")
	}
}
