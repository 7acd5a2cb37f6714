// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionPodcastChunks 转写切片集合
	CollectionPodcastChunks = "podcast_chunks"

	// DefaultVectorDimension 默认向量维度
	DefaultVectorDimension = 768
)

// PodcastChunksSchema 转写切片 Collection Schema
func PodcastChunksSchema(dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &entity.Schema{
		CollectionName: CollectionPodcastChunks,
		Description:    "Podcast transcript chunks for semantic search",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     "episode_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "feed_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "start_time",
				DataType: entity.FieldTypeDouble,
			},
			{
				Name:     "end_time",
				DataType: entity.FieldTypeDouble,
			},
			{
				Name:     "published_at",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "text_content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// ChunkRecord Milvus 侧的切片数据结构
type ChunkRecord struct {
	ID          string    `json:"id"`
	Vector      []float32 `json:"vector"`
	EpisodeID   string    `json:"episode_id"`
	FeedID      string    `json:"feed_id"`
	StartTime   float64   `json:"start_time"`
	EndTime     float64   `json:"end_time"`
	PublishedAt int64     `json:"published_at"`
	TextContent string    `json:"text_content"`
}
