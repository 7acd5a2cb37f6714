package search

import (
	"context"
	"time"
)

// Embedder 查询向量化端口
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorHit 向量召回命中
type VectorHit struct {
	ChunkID     string
	EpisodeID   string
	StartTime   float64
	EndTime     float64
	PublishedAt int64
	Text        string
	// Distance COSINE 距离，越小越相似
	Distance float32
}

// VectorSearcher 向量召回端口
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, topK int, feedID string) ([]VectorHit, error)
}

// KeywordHit 关键词召回命中
type KeywordHit struct {
	ChunkID     string
	EpisodeID   string
	StartTime   float64
	EndTime     float64
	PublishedAt int64
	Text        string
	// Rank Postgres ts_rank 相关性
	Rank float64
}

// KeywordSearcher 关键词召回端口
type KeywordSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]KeywordHit, error)
}

// ResultCache 结果缓存端口
// hit 表示本次调用是否命中缓存或被合并进已有加载。
type ResultCache interface {
	GetOrLoad(ctx context.Context, key string, loader func(context.Context) ([]byte, error)) (value []byte, hit bool, err error)
}

// LimitDecision 限流判定结果
type LimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	Reset      time.Time
}

// RateLimiter 固定窗口限流端口，配额与窗口在实现侧绑定
type RateLimiter interface {
	Allow(ctx context.Context, clientID string) (*LimitDecision, error)
}

// Synthesizer 答案合成端口
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, passages []string) (string, error)
}
