// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"podcast-search-api/internal/application/ingest"
	"podcast-search-api/internal/interfaces/http/dto"
	"podcast-search-api/pkg/logger"
)

// CacheFlusher 结果缓存清除端口
type CacheFlusher interface {
	Flush(ctx context.Context) (int, error)
}

// AdminHandler 管理接口处理器
type AdminHandler struct {
	ingest *ingest.Service
	cache  CacheFlusher
}

// NewAdminHandler 创建管理接口处理器
func NewAdminHandler(svc *ingest.Service, cache CacheFlusher) *AdminHandler {
	return &AdminHandler{
		ingest: svc,
		cache:  cache,
	}
}

// IngestChunks 入库单集转写切片
// @Summary 入库单集切片
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body dto.IngestRequest true "入库请求"
// @Success 201 {object} dto.Response[dto.IngestResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/admin/chunks [post]
func (h *AdminHandler) IngestChunks(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	chunks := make([]ingest.ChunkInput, len(req.Chunks))
	for i, ch := range req.Chunks {
		chunks[i] = ingest.ChunkInput{
			ID:        ch.ID,
			StartTime: ch.StartTime,
			EndTime:   ch.EndTime,
			Text:      ch.Text,
		}
	}

	ep := ingest.EpisodeInput{
		ID:          req.EpisodeID,
		FeedID:      req.FeedID,
		Title:       req.Title,
		AudioURL:    req.AudioURL,
		PublishedAt: req.PublishedAt,
	}

	episodeID, count, err := h.ingest.IngestEpisode(c.Request.Context(), ep, chunks)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	dto.Created(c, dto.IngestResponse{
		EpisodeID:      episodeID,
		ChunksIngested: count,
	})
}

// InvalidateCache 清除全部检索结果缓存
// @Summary 清除结果缓存
// @Tags Admin
// @Produce json
// @Success 200 {object} dto.Response[dto.CacheInvalidateResponse]
// @Router /v1/admin/cache [delete]
func (h *AdminHandler) InvalidateCache(c *gin.Context) {
	n, err := h.cache.Flush(c.Request.Context())
	if err != nil {
		dto.AppError(c, err)
		return
	}

	logger.Info(c.Request.Context(), "search cache invalidated", "entries", n)
	dto.Success(c, dto.CacheInvalidateResponse{Invalidated: n})
}
