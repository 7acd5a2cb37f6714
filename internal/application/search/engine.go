package search

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"podcast-search-api/internal/config"
	"podcast-search-api/pkg/errors"
	"podcast-search-api/pkg/logger"
)

// rrfK Reciprocal Rank Fusion 平滑常数
const rrfK = 60

// Engine 检索引擎
// 向量与关键词两路召回，RRF 融合排序；Embedding 不可用时
// 降级为纯关键词召回。
type Engine struct {
	vector  VectorSearcher
	keyword KeywordSearcher
	cfg     *config.SearchConfig
}

// NewEngine 创建检索引擎
func NewEngine(vector VectorSearcher, keyword KeywordSearcher, cfg *config.SearchConfig) *Engine {
	return &Engine{
		vector:  vector,
		keyword: keyword,
		cfg:     cfg,
	}
}

// Retrieval 检索引擎输出
type Retrieval struct {
	Items  []ResultItem
	Method string
}

type candidate struct {
	item  ResultItem
	fused float64
}

// Retrieve 执行召回与排序
// embedding 为 nil 表示向量化不可用，走关键词降级。
// 排序与分页在融合之后进行，offset/limit 作用于融合后的全序。
func (e *Engine) Retrieve(ctx context.Context, q Query, embedding []float32) (*Retrieval, error) {
	topK := e.cfg.NumCandidatesRatio * q.Limit
	if topK < q.Limit+q.Offset {
		topK = q.Limit + q.Offset
	}

	var (
		vectorHits   []VectorHit
		vectorFailed bool
	)
	if embedding != nil {
		hits, err := e.vector.Search(ctx, embedding, topK, q.FeedID)
		if err != nil {
			// 向量库故障不终止请求，转关键词降级
			logger.Warn(ctx, "vector search failed, falling back to keyword", "error", err)
			vectorFailed = true
		} else {
			vectorHits = hits
		}
	}

	var keywordHits []KeywordHit
	if e.keyword != nil {
		hits, err := e.keyword.Search(ctx, q.Text, topK)
		if err != nil {
			if embedding == nil || vectorFailed {
				// 两路都不可用才算检索失败
				return nil, errors.Wrap(err, errors.CodeRetrievalFailed, "all retrieval paths failed")
			}
			logger.Warn(ctx, "keyword search failed, using vector results only", "error", err)
		} else {
			keywordHits = hits
		}
	}

	method := e.resolveMethod(embedding != nil && !vectorFailed, len(vectorHits) > 0, len(keywordHits) > 0)
	items := e.fuse(vectorHits, keywordHits)
	items = paginate(items, q.Offset, q.Limit)

	for i := range items {
		items[i].Excerpt = truncateExcerpt(items[i].Excerpt, e.cfg.ExcerptMaxChars)
	}

	return &Retrieval{
		Items:  items,
		Method: method,
	}, nil
}

func (e *Engine) resolveMethod(vectorAvailable, hasVector, hasKeyword bool) string {
	if !vectorAvailable {
		return MethodTextFallback
	}
	if hasVector && hasKeyword {
		return MethodHybrid
	}
	if !hasVector && hasKeyword {
		return MethodTextFallback
	}
	return MethodVector
}

// fuse 加权 RRF 融合两路召回
// 融合分仅用于排序；对外的 Score 是向量相似度（1 - 距离），
// 关键词独有命中则取 ts_rank，均截断到 [0,1]。
func (e *Engine) fuse(vectorHits []VectorHit, keywordHits []KeywordHit) []ResultItem {
	vw, kw := e.cfg.VectorWeight, e.cfg.KeywordWeight
	if vw <= 0 && kw <= 0 {
		vw, kw = 1, 1
	}

	candidates := make(map[string]*candidate)

	for i, h := range vectorHits {
		candidates[h.ChunkID] = &candidate{
			item: ResultItem{
				ChunkID:     h.ChunkID,
				EpisodeID:   h.EpisodeID,
				StartTime:   h.StartTime,
				EndTime:     h.EndTime,
				Excerpt:     h.Text,
				Score:       clamp01(1 - float64(h.Distance)),
				PublishedAt: h.PublishedAt,
			},
			fused: vw / float64(rrfK+i+1),
		}
	}

	for i, h := range keywordHits {
		contrib := kw / float64(rrfK+i+1)
		if c, ok := candidates[h.ChunkID]; ok {
			c.fused += contrib
			continue
		}
		candidates[h.ChunkID] = &candidate{
			item: ResultItem{
				ChunkID:     h.ChunkID,
				EpisodeID:   h.EpisodeID,
				StartTime:   h.StartTime,
				EndTime:     h.EndTime,
				Excerpt:     h.Text,
				Score:       clamp01(h.Rank),
				PublishedAt: h.PublishedAt,
			},
			fused: contrib,
		}
	}

	ordered := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, c)
	}

	// 融合分降序；同分取发布时间新的在前，再按切片 ID 保证确定性
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].fused != ordered[j].fused {
			return ordered[i].fused > ordered[j].fused
		}
		if ordered[i].item.PublishedAt != ordered[j].item.PublishedAt {
			return ordered[i].item.PublishedAt > ordered[j].item.PublishedAt
		}
		return ordered[i].item.ChunkID < ordered[j].item.ChunkID
	})

	items := make([]ResultItem, len(ordered))
	for i, c := range ordered {
		items[i] = c.item
	}
	return items
}

func paginate(items []ResultItem, offset, limit int) []ResultItem {
	if offset >= len(items) {
		return []ResultItem{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func truncateExcerpt(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxChars])) + "..."
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
