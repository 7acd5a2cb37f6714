package search

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"podcast-search-api/internal/config"
	apperrors "podcast-search-api/pkg/errors"
)

type fakeVectorSearcher struct {
	hits     []VectorHit
	err      error
	calls    int
	gotTopK  int
	gotFeed  string
	gotQuery []float32
}

func (f *fakeVectorSearcher) Search(ctx context.Context, vector []float32, topK int, feedID string) ([]VectorHit, error) {
	f.calls++
	f.gotQuery = vector
	f.gotTopK = topK
	f.gotFeed = feedID
	return f.hits, f.err
}

type fakeKeywordSearcher struct {
	hits     []KeywordHit
	err      error
	calls    int
	gotQuery string
	gotLimit int
}

func (f *fakeKeywordSearcher) Search(ctx context.Context, query string, limit int) ([]KeywordHit, error) {
	f.calls++
	f.gotQuery = query
	f.gotLimit = limit
	return f.hits, f.err
}

func testSearchConfig() *config.SearchConfig {
	return &config.SearchConfig{
		DefaultLimit:       10,
		MaxLimit:           50,
		NumCandidatesRatio: 20,
		ExcerptMaxChars:    500,
		VectorWeight:       0.7,
		KeywordWeight:      0.3,
	}
}

func vhit(id string, distance float32, publishedAt int64) VectorHit {
	return VectorHit{ChunkID: id, EpisodeID: "ep-" + id, Text: "text " + id, Distance: distance, PublishedAt: publishedAt}
}

func khit(id string, rank float64, publishedAt int64) KeywordHit {
	return KeywordHit{ChunkID: id, EpisodeID: "ep-" + id, Text: "text " + id, Rank: rank, PublishedAt: publishedAt}
}

func TestEngineHybridFusion(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []VectorHit{vhit("a", 0.1, 10), vhit("b", 0.2, 20)}}
	keyword := &fakeKeywordSearcher{hits: []KeywordHit{khit("b", 0.9, 20), khit("c", 0.5, 30)}}
	e := NewEngine(vector, keyword, testSearchConfig())

	ret, err := e.Retrieve(context.Background(), Query{Text: "go compilers", Limit: 10}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Method != MethodHybrid {
		t.Fatalf("method=%q, want %q", ret.Method, MethodHybrid)
	}

	// b 同时出现在两路，融合分最高
	ids := resultIDs(ret.Items)
	want := []string{"b", "a", "c"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order=%v, want %v", ids, want)
		}
	}

	// 对外评分取向量相似度 1 - 距离
	if got := ret.Items[0].Score; got < 0.79 || got > 0.81 {
		t.Fatalf("score for b=%v, want ~0.8", got)
	}
}

func TestEngineVectorOnly(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []VectorHit{vhit("a", 0.1, 10)}}
	keyword := &fakeKeywordSearcher{}
	e := NewEngine(vector, keyword, testSearchConfig())

	ret, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 10}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Method != MethodVector {
		t.Fatalf("method=%q, want %q", ret.Method, MethodVector)
	}
	if len(ret.Items) != 1 || ret.Items[0].ChunkID != "a" {
		t.Fatalf("items=%v", ret.Items)
	}
}

func TestEngineTextFallbackWithoutEmbedding(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []VectorHit{vhit("a", 0.1, 10)}}
	keyword := &fakeKeywordSearcher{hits: []KeywordHit{khit("k", 0.4, 10)}}
	e := NewEngine(vector, keyword, testSearchConfig())

	ret, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 10}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Method != MethodTextFallback {
		t.Fatalf("method=%q, want %q", ret.Method, MethodTextFallback)
	}
	if vector.calls != 0 {
		t.Fatalf("vector search must not run without embedding")
	}
	if len(ret.Items) != 1 || ret.Items[0].ChunkID != "k" {
		t.Fatalf("items=%v", ret.Items)
	}
	// 关键词独有命中的评分取 ts_rank
	if ret.Items[0].Score != 0.4 {
		t.Fatalf("score=%v, want 0.4", ret.Items[0].Score)
	}
}

func TestEngineTextFallbackOnVectorError(t *testing.T) {
	vector := &fakeVectorSearcher{err: errors.New("milvus down")}
	keyword := &fakeKeywordSearcher{hits: []KeywordHit{khit("k", 0.4, 10)}}
	e := NewEngine(vector, keyword, testSearchConfig())

	ret, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 10}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Method != MethodTextFallback {
		t.Fatalf("method=%q, want %q", ret.Method, MethodTextFallback)
	}
}

func TestEngineAllPathsFailed(t *testing.T) {
	vector := &fakeVectorSearcher{err: errors.New("milvus down")}
	keyword := &fakeKeywordSearcher{err: errors.New("postgres down")}
	e := NewEngine(vector, keyword, testSearchConfig())

	_, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 10}, []float32{0.1})
	if err == nil {
		t.Fatalf("expected error when both paths fail")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeRetrievalFailed {
		t.Fatalf("code=%s, want %s", appErr.Code, apperrors.CodeRetrievalFailed)
	}
	// 存储不可用对外是 503，客户端可重试
	if appErr.HTTPStatus != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want %d", appErr.HTTPStatus, http.StatusServiceUnavailable)
	}
}

func TestEngineKeywordErrorKeepsVectorResults(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []VectorHit{vhit("a", 0.1, 10)}}
	keyword := &fakeKeywordSearcher{err: errors.New("postgres down")}
	e := NewEngine(vector, keyword, testSearchConfig())

	ret, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 10}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Method != MethodVector {
		t.Fatalf("method=%q, want %q", ret.Method, MethodVector)
	}
	if len(ret.Items) != 1 {
		t.Fatalf("items=%v", ret.Items)
	}
}

func TestEngineCandidateExpansion(t *testing.T) {
	vector := &fakeVectorSearcher{}
	keyword := &fakeKeywordSearcher{}
	e := NewEngine(vector, keyword, testSearchConfig())

	_, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 10, Offset: 5, FeedID: "feed-1"}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vector.gotTopK != 200 {
		t.Fatalf("topK=%d, want 200", vector.gotTopK)
	}
	if vector.gotFeed != "feed-1" {
		t.Fatalf("feedID=%q", vector.gotFeed)
	}
	if keyword.gotLimit != 200 {
		t.Fatalf("keyword limit=%d, want 200", keyword.gotLimit)
	}
}

func TestEnginePaginationAfterRanking(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []VectorHit{
		vhit("a", 0.1, 10), vhit("b", 0.2, 10), vhit("c", 0.3, 10), vhit("d", 0.4, 10),
	}}
	e := NewEngine(vector, &fakeKeywordSearcher{}, testSearchConfig())

	ret, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 2, Offset: 1}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := resultIDs(ret.Items)
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Fatalf("page=%v, want [b c]", ids)
	}

	// offset 超出全序范围返回空页
	ret, err = e.Retrieve(context.Background(), Query{Text: "q", Limit: 2, Offset: 10}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ret.Items) != 0 {
		t.Fatalf("expected empty page, got %v", ret.Items)
	}
}

func TestEngineTieBreakRecencyThenID(t *testing.T) {
	cfg := testSearchConfig()
	cfg.VectorWeight = 0.5
	cfg.KeywordWeight = 0.5

	// 两路各贡献一个首位命中，融合分相同
	vector := &fakeVectorSearcher{hits: []VectorHit{vhit("older", 0.1, 100)}}
	keyword := &fakeKeywordSearcher{hits: []KeywordHit{khit("newer", 0.9, 200)}}
	e := NewEngine(vector, keyword, cfg)

	ret, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 10}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := resultIDs(ret.Items)
	if ids[0] != "newer" || ids[1] != "older" {
		t.Fatalf("order=%v, want newer first", ids)
	}

	// 发布时间也相同则按切片 ID 升序
	vector.hits = []VectorHit{vhit("bbb", 0.1, 100)}
	keyword.hits = []KeywordHit{khit("aaa", 0.9, 100)}
	ret, err = e.Retrieve(context.Background(), Query{Text: "q", Limit: 10}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids = resultIDs(ret.Items)
	if ids[0] != "aaa" || ids[1] != "bbb" {
		t.Fatalf("order=%v, want aaa first", ids)
	}
}

func TestEngineScoreClamped(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []VectorHit{
		vhit("hot", -0.3, 10), // 距离为负 → 相似度 > 1
		vhit("far", 1.5, 10),  // 距离 > 1 → 相似度 < 0
	}}
	e := NewEngine(vector, &fakeKeywordSearcher{}, testSearchConfig())

	ret, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 10}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, item := range ret.Items {
		if item.Score < 0 || item.Score > 1 {
			t.Fatalf("score %v out of [0,1] for %s", item.Score, item.ChunkID)
		}
	}
}

func TestEngineExcerptTruncation(t *testing.T) {
	cfg := testSearchConfig()
	cfg.ExcerptMaxChars = 10

	long := strings.Repeat("x", 40)
	vector := &fakeVectorSearcher{hits: []VectorHit{{ChunkID: "a", Text: long, Distance: 0.1}}}
	e := NewEngine(vector, &fakeKeywordSearcher{}, cfg)

	ret, err := e.Retrieve(context.Background(), Query{Text: "q", Limit: 10}, []float32{0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ret.Items[0].Excerpt
	if got != strings.Repeat("x", 10)+"..." {
		t.Fatalf("excerpt=%q", got)
	}
}

func resultIDs(items []ResultItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ChunkID
	}
	return ids
}
