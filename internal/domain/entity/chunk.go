// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Chunk 转写稿切片实体
// 检索的基本单位：一段带时间范围的转写文本。向量存放在 Milvus，
// 文本与元数据存放在 PostgreSQL 供关键词检索使用。
type Chunk struct {
	ID        string `json:"id" gorm:"type:uuid;primaryKey"`
	EpisodeID string `json:"episode_id" gorm:"type:uuid;index;not null"`
	// StartTime/EndTime 切片在音频中的起止秒
	StartTime float64   `json:"start_time" gorm:"not null"`
	EndTime   float64   `json:"end_time" gorm:"not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Chunk) TableName() string {
	return "chunks"
}

// NewChunk 创建新切片
func NewChunk(episodeID string, start, end float64, text string) *Chunk {
	return &Chunk{
		ID:        uuid.New().String(),
		EpisodeID: episodeID,
		StartTime: start,
		EndTime:   end,
		Text:      text,
	}
}
