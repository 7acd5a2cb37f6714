// Package ingest 实现单集转写切片的入库流程
// 文本与元数据写入 PostgreSQL，向量写入 Milvus，两侧以切片 ID 对齐。
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"podcast-search-api/internal/domain/entity"
	"podcast-search-api/internal/infrastructure/persistence/milvus"
	"podcast-search-api/internal/infrastructure/persistence/postgres"
	"podcast-search-api/pkg/errors"
	"podcast-search-api/pkg/logger"
)

// Embedder 切片向量化端口
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Service 入库服务
type Service struct {
	episodes *postgres.EpisodeRepository
	chunks   *postgres.ChunkRepository
	vector   *milvus.Repository
	embedder Embedder
}

// NewService 创建入库服务
func NewService(
	episodes *postgres.EpisodeRepository,
	chunks *postgres.ChunkRepository,
	vector *milvus.Repository,
	embedder Embedder,
) *Service {
	return &Service{
		episodes: episodes,
		chunks:   chunks,
		vector:   vector,
		embedder: embedder,
	}
}

// EpisodeInput 单集入库输入
type EpisodeInput struct {
	ID          string
	FeedID      string
	Title       string
	AudioURL    string
	PublishedAt time.Time
}

// ChunkInput 切片入库输入
type ChunkInput struct {
	ID        string
	StartTime float64
	EndTime   float64
	Text      string
}

// IngestEpisode 入库一个单集及其全部切片，重复入库覆盖旧数据
// 返回单集 ID（未提供时自动生成）与实际写入的切片数。
func (s *Service) IngestEpisode(ctx context.Context, ep EpisodeInput, chunks []ChunkInput) (string, int, error) {
	ep.FeedID = strings.TrimSpace(ep.FeedID)
	ep.Title = strings.TrimSpace(ep.Title)
	if ep.FeedID == "" || ep.Title == "" {
		return "", 0, errors.New(errors.CodeInvalidParam, "feed_id and title are required")
	}
	if ep.PublishedAt.IsZero() {
		return "", 0, errors.New(errors.CodeInvalidParam, "published_at is required")
	}
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}

	episode := &entity.Episode{
		ID:          ep.ID,
		FeedID:      ep.FeedID,
		Title:       ep.Title,
		AudioURL:    ep.AudioURL,
		PublishedAt: ep.PublishedAt,
	}
	if err := s.episodes.Upsert(ctx, episode); err != nil {
		return "", 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to store episode")
	}

	entities := make([]*entity.Chunk, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			continue
		}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		entities = append(entities, &entity.Chunk{
			ID:        c.ID,
			EpisodeID: ep.ID,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Text:      c.Text,
		})
		texts = append(texts, c.Text)
	}
	if len(entities) == 0 {
		return "", 0, errors.New(errors.CodeInvalidParam, "no non-empty chunks to ingest")
	}

	if err := s.chunks.UpsertBatch(ctx, entities); err != nil {
		return "", 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to store chunks")
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return "", 0, errors.Wrap(err, errors.CodeEmbeddingFailed, "failed to embed chunks")
	}
	if len(vectors) != len(entities) {
		return "", 0, errors.New(errors.CodeEmbeddingFailed, "embedding count mismatch")
	}

	records := make([]*milvus.ChunkRecord, len(entities))
	publishedAt := ep.PublishedAt.Unix()
	for i, e := range entities {
		records[i] = &milvus.ChunkRecord{
			ID:          e.ID,
			Vector:      vectors[i],
			EpisodeID:   e.EpisodeID,
			FeedID:      ep.FeedID,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			PublishedAt: publishedAt,
			TextContent: e.Text,
		}
	}

	// 先清除旧向量再写入，避免重复入库残留过期切片
	if err := s.vector.DeleteChunksByEpisode(ctx, ep.ID); err != nil {
		logger.Warn(ctx, "failed to clear stale vectors before insert", "episode_id", ep.ID, "error", err)
	}
	if err := s.vector.InsertChunks(ctx, records); err != nil {
		return "", 0, errors.Wrap(err, errors.CodeVectorDBError, "failed to index chunks")
	}

	logger.Info(ctx, "episode ingested",
		"episode_id", ep.ID, "feed_id", ep.FeedID, "chunks", len(entities))
	return ep.ID, len(entities), nil
}

// ListChunks 列出单集的全部切片
func (s *Service) ListChunks(ctx context.Context, episodeID string) (*entity.Episode, []*entity.Chunk, error) {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load episode")
	}
	if episode == nil {
		return nil, nil, errors.New(errors.CodeNotFound, "episode not found")
	}

	chunks, err := s.chunks.ListByEpisode(ctx, episodeID)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load chunks")
	}
	return episode, chunks, nil
}
