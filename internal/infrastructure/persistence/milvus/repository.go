// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"podcast-search-api/pkg/metrics"
)

// Repository 向量检索仓储
type Repository struct {
	client *Client
	dim    int
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client, dim int) *Repository {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &Repository{client: client, dim: dim}
}

// SearchParams 检索参数
type SearchParams struct {
	QueryVector []float32
	// TopK 召回候选数（已含候选倍率扩展）
	TopK int
	// FeedID 非空则仅检索该订阅源
	FeedID string
}

// SearchResult 检索结果
type SearchResult struct {
	ID          string
	Score       float32
	EpisodeID   string
	StartTime   float64
	EndTime     float64
	PublishedAt int64
	TextContent string
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", CollectionPodcastChunks)))
	defer span.End()

	schema := PodcastChunksSchema(r.dim)
	schema.CollectionName = r.client.CollectionName(CollectionPodcastChunks)

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", CollectionPodcastChunks)))
	defer span.End()

	collName := r.client.CollectionName(CollectionPodcastChunks)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// SearchChunks 向量相似检索
func (r *Repository) SearchChunks(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionPodcastChunks)

	// 构建过滤表达式
	filter := ""
	if params.FeedID != "" {
		filter = fmt.Sprintf(`feed_id == "%s"`, escapeFilterValue(params.FeedID))
	}

	// 搜索参数
	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	// 执行搜索
	start := time.Now()
	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		[]string{"id", "episode_id", "start_time", "end_time", "published_at", "text_content"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(CollectionPodcastChunks).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(CollectionPodcastChunks, "error").Inc()
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionPodcastChunks, "ok").Inc()

	// 解析结果
	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}

			// 提取字段值
			if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = idCol.Data()[i]
			}
			if epCol, ok := result.Fields.GetColumn("episode_id").(*entity.ColumnVarChar); ok {
				sr.EpisodeID = epCol.Data()[i]
			}
			if startCol, ok := result.Fields.GetColumn("start_time").(*entity.ColumnDouble); ok {
				sr.StartTime = startCol.Data()[i]
			}
			if endCol, ok := result.Fields.GetColumn("end_time").(*entity.ColumnDouble); ok {
				sr.EndTime = endCol.Data()[i]
			}
			if pubCol, ok := result.Fields.GetColumn("published_at").(*entity.ColumnInt64); ok {
				sr.PublishedAt = pubCol.Data()[i]
			}
			if textCol, ok := result.Fields.GetColumn("text_content").(*entity.ColumnVarChar); ok {
				sr.TextContent = textCol.Data()[i]
			}

			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// InsertChunks 插入转写切片
func (r *Repository) InsertChunks(ctx context.Context, chunks []*ChunkRecord) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertChunks",
		trace.WithAttributes(attribute.Int("count", len(chunks))))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	collName := r.client.CollectionName(CollectionPodcastChunks)

	// 准备数据
	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	episodeIDs := make([]string, len(chunks))
	feedIDs := make([]string, len(chunks))
	startTimes := make([]float64, len(chunks))
	endTimes := make([]float64, len(chunks))
	publishedAts := make([]int64, len(chunks))
	textContents := make([]string, len(chunks))

	for i, c := range chunks {
		ids[i] = c.ID
		vectors[i] = c.Vector
		episodeIDs[i] = c.EpisodeID
		feedIDs[i] = c.FeedID
		startTimes[i] = c.StartTime
		endTimes[i] = c.EndTime
		publishedAts[i] = c.PublishedAt
		textContents[i] = c.TextContent
	}

	// 构建列
	idCol := entity.NewColumnVarChar("id", ids)
	vectorCol := entity.NewColumnFloatVector("vector", r.dim, vectors)
	episodeCol := entity.NewColumnVarChar("episode_id", episodeIDs)
	feedCol := entity.NewColumnVarChar("feed_id", feedIDs)
	startCol := entity.NewColumnDouble("start_time", startTimes)
	endCol := entity.NewColumnDouble("end_time", endTimes)
	pubCol := entity.NewColumnInt64("published_at", publishedAts)
	textCol := entity.NewColumnVarChar("text_content", textContents)

	// 插入
	_, err := r.client.milvus.Insert(ctx, collName, "",
		idCol, vectorCol, episodeCol, feedCol, startCol, endCol, pubCol, textCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	return nil
}

// DeleteChunksByEpisode 删除单集的所有切片
func (r *Repository) DeleteChunksByEpisode(ctx context.Context, episodeID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteChunksByEpisode",
		trace.WithAttributes(attribute.String("episode_id", episodeID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionPodcastChunks)
	filter := fmt.Sprintf(`episode_id == "%s"`, escapeFilterValue(episodeID))

	err := r.client.milvus.Delete(ctx, collName, "", filter)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	return nil
}

// escapeFilterValue 转义过滤表达式中的字符串字面量
// 标识符里的引号或反斜杠不能破坏或放大过滤条件。
func escapeFilterValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// EnsurePodcastChunksCollection 确保集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsurePodcastChunksCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionPodcastChunks)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入。
		_ = r.CreateIndex(ctx)
	}

	// 尝试确保集合已加载（若已加载，Milvus 会返回成功）
	return r.client.LoadCollection(ctx, CollectionPodcastChunks)
}
