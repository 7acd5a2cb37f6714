// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm/clause"

	"podcast-search-api/internal/domain/entity"
)

// ChunkRepository 切片仓储实现
// 承担块存储的关键词检索侧：Postgres 全文检索。
type ChunkRepository struct {
	client *Client
}

// NewChunkRepository 创建切片仓储
func NewChunkRepository(client *Client) *ChunkRepository {
	return &ChunkRepository{client: client}
}

// KeywordResult 关键词检索结果行
type KeywordResult struct {
	ID          string    `gorm:"column:id"`
	EpisodeID   string    `gorm:"column:episode_id"`
	StartTime   float64   `gorm:"column:start_time"`
	EndTime     float64   `gorm:"column:end_time"`
	Text        string    `gorm:"column:text"`
	PublishedAt time.Time `gorm:"column:published_at"`
	Rank        float64   `gorm:"column:rank"`
}

// UpsertBatch 批量插入或更新切片
func (r *ChunkRepository) UpsertBatch(ctx context.Context, chunks []*entity.Chunk) error {
	ctx, span := tracer.Start(ctx, "postgres.ChunkRepository.UpsertBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(chunks)))

	if len(chunks) == 0 {
		return nil
	}

	err := r.client.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"episode_id", "start_time", "end_time", "text"}),
	}).CreateInBatches(chunks, 200).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

// SearchKeyword 全文检索切片
// 排序：ts_rank 降序，再按单集发布时间降序、切片 ID 升序，保证确定性。
func (r *ChunkRepository) SearchKeyword(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChunkRepository.SearchKeyword")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	if limit <= 0 {
		limit = 10
	}

	var results []*KeywordResult
	err := r.client.db.WithContext(ctx).Raw(`
		SELECT c.id, c.episode_id, c.start_time, c.end_time, c.text,
		       e.published_at,
		       ts_rank(to_tsvector('english', c.text), plainto_tsquery('english', ?)) AS rank
		FROM chunks c
		JOIN episodes e ON e.id = c.episode_id
		WHERE to_tsvector('english', c.text) @@ plainto_tsquery('english', ?)
		ORDER BY rank DESC, e.published_at DESC, c.id ASC
		LIMIT ?`,
		query, query, limit,
	).Scan(&results).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

// ListByEpisode 列出单集的全部切片，按起始时间排序
func (r *ChunkRepository) ListByEpisode(ctx context.Context, episodeID string) ([]*entity.Chunk, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChunkRepository.ListByEpisode")
	defer span.End()

	var chunks []*entity.Chunk
	err := r.client.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("start_time ASC").
		Find(&chunks).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return chunks, nil
}

// PublishedAtByEpisodes 批量查询单集发布时间，用于排序 tie-break
func (r *ChunkRepository) PublishedAtByEpisodes(ctx context.Context, episodeIDs []string) (map[string]time.Time, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChunkRepository.PublishedAtByEpisodes")
	defer span.End()

	out := make(map[string]time.Time, len(episodeIDs))
	if len(episodeIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ID          string    `gorm:"column:id"`
		PublishedAt time.Time `gorm:"column:published_at"`
	}
	err := r.client.db.WithContext(ctx).
		Table("episodes").
		Select("id", "published_at").
		Where("id IN ?", episodeIDs).
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load episode timestamps: %w", err)
	}

	for _, row := range rows {
		out[row.ID] = row.PublishedAt
	}
	return out, nil
}

// Migrate 创建表结构与全文索引
func (r *ChunkRepository) Migrate(ctx context.Context) error {
	db := r.client.db.WithContext(ctx)
	if err := db.AutoMigrate(&entity.Episode{}, &entity.Chunk{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	// GIN 表达式索引支撑 plainto_tsquery 检索
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_text_fts
		ON chunks USING GIN (to_tsvector('english', text))`).Error
}
