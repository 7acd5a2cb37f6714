// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"podcast-search-api/internal/application/search"
)

// SearchRequest 语义检索请求
type SearchRequest struct {
	Query  string `json:"query" binding:"required"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	FeedID string `json:"feed_id,omitempty"`
}

// SearchResultItem 单条检索结果
type SearchResultItem struct {
	ChunkID     string  `json:"chunk_id"`
	EpisodeID   string  `json:"episode_id"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Excerpt     string  `json:"excerpt"`
	Score       float64 `json:"score"`
	PublishedAt int64   `json:"published_at"`
}

// SearchResponse 语义检索响应
type SearchResponse struct {
	Results      []SearchResultItem `json:"results"`
	TotalResults int                `json:"total_results"`
	SearchMethod string             `json:"search_method"`
	Answer       string             `json:"answer,omitempty"`
	CacheHit     bool               `json:"cache_hit"`
	ElapsedMs    int64              `json:"elapsed_ms"`
}

// FromSearchResponse 由应用层响应构建 DTO
func FromSearchResponse(resp *search.Response) *SearchResponse {
	out := &SearchResponse{
		Results:      make([]SearchResultItem, len(resp.Results)),
		TotalResults: resp.TotalResults,
		SearchMethod: resp.SearchMethod,
		Answer:       resp.Answer,
		CacheHit:     resp.CacheHit,
		ElapsedMs:    resp.ElapsedMs,
	}
	for i, r := range resp.Results {
		out.Results[i] = SearchResultItem{
			ChunkID:     r.ChunkID,
			EpisodeID:   r.EpisodeID,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			Excerpt:     r.Excerpt,
			Score:       r.Score,
			PublishedAt: r.PublishedAt,
		}
	}
	return out
}
