// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Episode 播客单集实体
type Episode struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	FeedID      string    `json:"feed_id" gorm:"type:varchar(64);index;not null"`
	Title       string    `json:"title" gorm:"type:varchar(512);not null"`
	AudioURL    string    `json:"audio_url,omitempty" gorm:"type:text"`
	PublishedAt time.Time `json:"published_at" gorm:"index;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Episode) TableName() string {
	return "episodes"
}

// NewEpisode 创建新单集
func NewEpisode(feedID, title string, publishedAt time.Time) *Episode {
	return &Episode{
		ID:          uuid.New().String(),
		FeedID:      feedID,
		Title:       title,
		PublishedAt: publishedAt,
	}
}
