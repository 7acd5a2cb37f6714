// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"podcast-search-api/internal/domain/entity"
)

// EpisodeRepository 单集仓储实现
type EpisodeRepository struct {
	client *Client
}

// NewEpisodeRepository 创建单集仓储
func NewEpisodeRepository(client *Client) *EpisodeRepository {
	return &EpisodeRepository{client: client}
}

// Upsert 按主键插入或更新单集
func (r *EpisodeRepository) Upsert(ctx context.Context, episode *entity.Episode) error {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.Upsert")
	defer span.End()

	err := r.client.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"feed_id", "title", "audio_url", "published_at", "updated_at"}),
	}).Create(episode).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert episode: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取单集
func (r *EpisodeRepository) GetByID(ctx context.Context, id string) (*entity.Episode, error) {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.GetByID")
	defer span.End()

	var episode entity.Episode
	err := r.client.db.WithContext(ctx).First(&episode, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	return &episode, nil
}
