// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"podcast-search-api/internal/config"
	"podcast-search-api/internal/interfaces/http/middleware"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, cfg *config.Config, handlers *Handlers) {
	// 语义检索
	v1.POST("/search", handlers.Search.Search)

	// 单集查询
	episodes := v1.Group("/episodes")
	{
		episodes.GET("/:eid/chunks", handlers.Episode.ListChunks)
	}

	// 管理接口
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg.Security.AdminAPIKey))
	{
		admin.POST("/chunks", handlers.Admin.IngestChunks)
		admin.DELETE("/cache", handlers.Admin.InvalidateCache)
	}
}
