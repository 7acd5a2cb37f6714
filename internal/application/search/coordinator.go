package search

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"podcast-search-api/internal/config"
	"podcast-search-api/pkg/errors"
	"podcast-search-api/pkg/logger"
	"podcast-search-api/pkg/metrics"
)

// Coordinator 查询协调器
// 按 限流 → 缓存 → 向量化 → 召回 → 合成 的顺序驱动一次查询。
type Coordinator struct {
	cache    ResultCache
	limiter  RateLimiter
	embedder Embedder
	engine   *Engine
	gate     *Gate
	cfg      *config.SearchConfig

	keyPrefix string
}

// NewCoordinator 创建查询协调器
// limiter 为 nil 表示限流关闭。
func NewCoordinator(
	cache ResultCache,
	limiter RateLimiter,
	embedder Embedder,
	engine *Engine,
	gate *Gate,
	cfg *config.SearchConfig,
	keyPrefix string,
) *Coordinator {
	if keyPrefix == "" {
		keyPrefix = "search"
	}
	return &Coordinator{
		cache:     cache,
		limiter:   limiter,
		embedder:  embedder,
		engine:    engine,
		gate:      gate,
		cfg:       cfg,
		keyPrefix: keyPrefix,
	}
}

// Search 解析一次查询
// 限流先于缓存：被拒绝的请求即使命中缓存也不返回结果。
func (c *Coordinator) Search(ctx context.Context, q Query) (*Response, error) {
	start := time.Now()

	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, errors.New(errors.CodeInvalidParam, "query text is required")
	}
	// 越界的分页参数直接拒绝，不做静默截断
	if q.Limit < 0 || q.Limit > c.cfg.MaxLimit {
		return nil, errors.New(errors.CodeInvalidParam, "limit out of range")
	}
	if q.Limit == 0 {
		q.Limit = c.cfg.DefaultLimit
	}
	if q.Offset < 0 {
		return nil, errors.New(errors.CodeInvalidParam, "offset must not be negative")
	}

	if c.limiter != nil {
		decision, err := c.limiter.Allow(ctx, q.ClientID)
		if err != nil {
			// 限流器故障放行，不因辅助设施拒绝用户请求
			logger.Warn(ctx, "rate limiter unavailable, failing open", "error", err)
		} else if !decision.Allowed {
			metrics.RateLimitRejectedTotal.Inc()
			return nil, &RateLimitedError{
				RetryAfter: decision.RetryAfter,
				Reset:      decision.Reset,
			}
		}
	}

	key := CacheKey(c.keyPrefix, q)
	data, hit, err := c.cache.GetOrLoad(ctx, key, func(ctx context.Context) ([]byte, error) {
		resp, err := c.resolve(ctx, q)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "failed to decode cached result")
	}
	if resp.Results == nil {
		resp.Results = []ResultItem{}
	}
	resp.TotalResults = len(resp.Results)
	resp.CacheHit = hit
	resp.ElapsedMs = time.Since(start).Milliseconds()

	cacheLabel := "miss"
	if hit {
		cacheLabel = "hit"
	}
	metrics.SearchRequestsTotal.WithLabelValues(resp.SearchMethod, cacheLabel).Inc()
	metrics.SearchDuration.WithLabelValues(resp.SearchMethod).Observe(time.Since(start).Seconds())
	metrics.SearchResultCount.WithLabelValues(resp.SearchMethod).Observe(float64(len(resp.Results)))

	return &resp, nil
}

// resolve 缓存未命中时的实际解析路径
func (c *Coordinator) resolve(ctx context.Context, q Query) (*Response, error) {
	embedding := c.embedQuery(ctx, q.Text)

	ret, err := c.engine.Retrieve(ctx, q, embedding)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Results:      ret.Items,
		TotalResults: len(ret.Items),
		SearchMethod: ret.Method,
	}
	if answer := c.gate.Answer(ctx, q.Text, ret.Items); answer != "" {
		resp.Answer = answer
	}
	return resp, nil
}

// embedQuery 查询向量化，失败后退避重试一次
// 两次都失败返回 nil，由引擎走关键词降级。
func (c *Coordinator) embedQuery(ctx context.Context, text string) []float32 {
	if vec := c.tryEmbed(ctx, text); vec != nil {
		return vec
	}

	backoff := c.cfg.EmbedRetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(backoff):
	}

	if vec := c.tryEmbed(ctx, text); vec != nil {
		return vec
	}
	logger.Warn(ctx, "embedding unavailable after retry, degrading to keyword search")
	return nil
}

func (c *Coordinator) tryEmbed(ctx context.Context, text string) []float32 {
	start := time.Now()
	vecs, err := c.embedder.Embed(ctx, []string{text})
	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	if err != nil || len(vecs) != 1 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		if err != nil {
			logger.Debug(ctx, "embedding attempt failed", "error", err)
		}
		return nil
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
	return vecs[0]
}
