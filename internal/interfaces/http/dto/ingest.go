// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"podcast-search-api/internal/domain/entity"
)

// IngestChunk 入库切片
type IngestChunk struct {
	ID        string  `json:"id,omitempty"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text" binding:"required"`
}

// IngestRequest 单集入库请求
type IngestRequest struct {
	EpisodeID   string        `json:"episode_id,omitempty"`
	FeedID      string        `json:"feed_id" binding:"required"`
	Title       string        `json:"title" binding:"required"`
	AudioURL    string        `json:"audio_url,omitempty"`
	PublishedAt time.Time     `json:"published_at" binding:"required"`
	Chunks      []IngestChunk `json:"chunks" binding:"required"`
}

// IngestResponse 入库响应
type IngestResponse struct {
	EpisodeID      string `json:"episode_id"`
	ChunksIngested int    `json:"chunks_ingested"`
}

// EpisodeChunk 单集切片
type EpisodeChunk struct {
	ID        string  `json:"id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// EpisodeChunksResponse 单集切片列表响应
type EpisodeChunksResponse struct {
	EpisodeID   string         `json:"episode_id"`
	FeedID      string         `json:"feed_id"`
	Title       string         `json:"title"`
	PublishedAt time.Time      `json:"published_at"`
	Chunks      []EpisodeChunk `json:"chunks"`
}

// FromEpisodeChunks 由实体构建 DTO
func FromEpisodeChunks(episode *entity.Episode, chunks []*entity.Chunk) *EpisodeChunksResponse {
	out := &EpisodeChunksResponse{
		EpisodeID:   episode.ID,
		FeedID:      episode.FeedID,
		Title:       episode.Title,
		PublishedAt: episode.PublishedAt,
		Chunks:      make([]EpisodeChunk, len(chunks)),
	}
	for i, c := range chunks {
		out.Chunks[i] = EpisodeChunk{
			ID:        c.ID,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Text:      c.Text,
		}
	}
	return out
}

// CacheInvalidateResponse 缓存清除响应
type CacheInvalidateResponse struct {
	Invalidated int `json:"invalidated"`
}
