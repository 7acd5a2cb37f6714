// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"podcast-search-api/internal/application/ingest"
	"podcast-search-api/internal/interfaces/http/dto"
)

// EpisodeHandler 单集查询处理器
type EpisodeHandler struct {
	ingest *ingest.Service
}

// NewEpisodeHandler 创建单集查询处理器
func NewEpisodeHandler(svc *ingest.Service) *EpisodeHandler {
	return &EpisodeHandler{ingest: svc}
}

// ListChunks 列出单集的全部切片
// @Summary 单集切片列表
// @Tags Episodes
// @Produce json
// @Param eid path string true "单集 ID"
// @Success 200 {object} dto.Response[dto.EpisodeChunksResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/episodes/{eid}/chunks [get]
func (h *EpisodeHandler) ListChunks(c *gin.Context) {
	episodeID := c.Param("eid")
	if episodeID == "" {
		dto.BadRequest(c, "episode id is required")
		return
	}

	episode, chunks, err := h.ingest.ListChunks(c.Request.Context(), episodeID)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	dto.Success(c, dto.FromEpisodeChunks(episode, chunks))
}
