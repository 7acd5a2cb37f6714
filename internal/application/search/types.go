// Package search 实现查询解析管线：限流、缓存、检索、答案合成
package search

// 检索方式
const (
	// MethodVector 仅向量召回
	MethodVector = "vector"
	// MethodHybrid 向量 + 关键词融合召回
	MethodHybrid = "hybrid"
	// MethodTextFallback Embedding 不可用时的关键词降级召回
	MethodTextFallback = "text_fallback"
)

// Query 检索请求
type Query struct {
	Text   string
	Limit  int
	Offset int

	// FeedID 非空则仅检索该订阅源
	FeedID string

	// ClientID 限流主体标识
	ClientID string
}

// ResultItem 单条检索结果
type ResultItem struct {
	ChunkID     string  `json:"chunk_id"`
	EpisodeID   string  `json:"episode_id"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Excerpt     string  `json:"excerpt"`
	Score       float64 `json:"score"`
	PublishedAt int64   `json:"published_at"`
}

// Response 检索响应
// Results 与 Answer 随缓存条目存储；CacheHit 和 ElapsedMs
// 属于单次请求，每次返回前重新填写。
type Response struct {
	Results []ResultItem `json:"results"`
	// TotalResults 本页返回的结果条数，恒等于 len(Results)
	TotalResults int    `json:"total_results"`
	SearchMethod string `json:"search_method"`
	Answer       string `json:"answer,omitempty"`
	CacheHit     bool   `json:"cache_hit"`
	ElapsedMs    int64  `json:"elapsed_ms"`
}
