package search

import (
	"context"
	"time"

	"podcast-search-api/internal/infrastructure/persistence/memory"
	"podcast-search-api/internal/infrastructure/persistence/milvus"
	"podcast-search-api/internal/infrastructure/persistence/postgres"
	"podcast-search-api/internal/infrastructure/persistence/redis"
)

// MilvusSearcher Milvus 仓储到向量召回端口的适配
type MilvusSearcher struct {
	repo *milvus.Repository
}

// NewMilvusSearcher 创建向量召回适配器
func NewMilvusSearcher(repo *milvus.Repository) *MilvusSearcher {
	return &MilvusSearcher{repo: repo}
}

// Search 向量召回
func (s *MilvusSearcher) Search(ctx context.Context, vector []float32, topK int, feedID string) ([]VectorHit, error) {
	results, err := s.repo.SearchChunks(ctx, &milvus.SearchParams{
		QueryVector: vector,
		TopK:        topK,
		FeedID:      feedID,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		hits = append(hits, VectorHit{
			ChunkID:     r.ID,
			EpisodeID:   r.EpisodeID,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			PublishedAt: r.PublishedAt,
			Text:        r.TextContent,
			Distance:    r.Score,
		})
	}
	return hits, nil
}

// PostgresKeywordSearcher 全文检索到关键词召回端口的适配
type PostgresKeywordSearcher struct {
	repo *postgres.ChunkRepository
}

// NewPostgresKeywordSearcher 创建关键词召回适配器
func NewPostgresKeywordSearcher(repo *postgres.ChunkRepository) *PostgresKeywordSearcher {
	return &PostgresKeywordSearcher{repo: repo}
}

// Search 关键词召回
func (s *PostgresKeywordSearcher) Search(ctx context.Context, query string, limit int) ([]KeywordHit, error) {
	results, err := s.repo.SearchKeyword(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]KeywordHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, KeywordHit{
			ChunkID:     r.ID,
			EpisodeID:   r.EpisodeID,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			PublishedAt: r.PublishedAt.Unix(),
			Text:        r.Text,
			Rank:        r.Rank,
		})
	}
	return hits, nil
}

// RedisLimiter Redis 限流器到限流端口的适配，绑定配额与窗口
type RedisLimiter struct {
	limiter *redis.RateLimiter
	limit   int
	window  time.Duration
}

// NewRedisLimiter 创建 Redis 限流适配器
func NewRedisLimiter(limiter *redis.RateLimiter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{limiter: limiter, limit: limit, window: window}
}

// Allow 限流判定
func (l *RedisLimiter) Allow(ctx context.Context, clientID string) (*LimitDecision, error) {
	d, err := l.limiter.Allow(ctx, clientID, l.limit, l.window)
	if err != nil {
		return nil, err
	}
	return &LimitDecision{
		Allowed:    d.Allowed,
		Remaining:  d.Remaining,
		RetryAfter: d.RetryAfter,
		Reset:      d.Reset,
	}, nil
}

// MemoryLimiter 进程内限流器到限流端口的适配
type MemoryLimiter struct {
	limiter *memory.RateLimiter
	limit   int
	window  time.Duration
}

// NewMemoryLimiter 创建进程内限流适配器
func NewMemoryLimiter(limiter *memory.RateLimiter, limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limiter: limiter, limit: limit, window: window}
}

// Allow 限流判定
func (l *MemoryLimiter) Allow(ctx context.Context, clientID string) (*LimitDecision, error) {
	d, err := l.limiter.Allow(ctx, clientID, l.limit, l.window)
	if err != nil {
		return nil, err
	}
	return &LimitDecision{
		Allowed:    d.Allowed,
		Remaining:  d.Remaining,
		RetryAfter: d.RetryAfter,
		Reset:      d.Reset,
	}, nil
}
