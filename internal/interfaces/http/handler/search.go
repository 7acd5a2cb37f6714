// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"podcast-search-api/internal/application/search"
	"podcast-search-api/internal/interfaces/http/dto"
	"podcast-search-api/pkg/logger"
)

// SearchHandler 语义检索处理器
type SearchHandler struct {
	coordinator *search.Coordinator
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(coordinator *search.Coordinator) *SearchHandler {
	return &SearchHandler{coordinator: coordinator}
}

// Search 语义检索接口
// @Summary 语义检索
// @Description 在播客转写稿中检索并可选合成答案
// @Tags Search
// @Accept json
// @Produce json
// @Param request body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /v1/search [post]
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.Search(c.Request.Context(), search.Query{
		Text:     req.Query,
		Limit:    req.Limit,
		Offset:   req.Offset,
		FeedID:   req.FeedID,
		ClientID: c.GetString("client_id"),
	})
	if err != nil {
		var rle *search.RateLimitedError
		if errors.As(err, &rle) {
			retryAfter := int(rle.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			dto.Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		logger.Error(c.Request.Context(), "search failed", err, "query_len", len(req.Query))
		dto.AppError(c, err)
		return
	}

	dto.Success(c, dto.FromSearchResponse(resp))
}
