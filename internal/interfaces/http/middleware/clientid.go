// Package middleware 提供 HTTP 中间件
package middleware

import (
	"crypto/sha256"
	"fmt"

	"github.com/gin-gonic/gin"

	"podcast-search-api/pkg/logger"
)

const (
	// APIKeyHeader API 密钥头
	APIKeyHeader = "X-API-Key"
	// ClientIDHeader 客户端标识头
	ClientIDHeader = "X-Client-ID"
)

// ClientID 限流主体识别中间件
// 优先级：API 密钥（取摘要，避免密钥落入日志和限流键）>
// 显式客户端标识 > 客户端 IP。
func ClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := ""

		if key := c.GetHeader(APIKeyHeader); key != "" {
			sum := sha256.Sum256([]byte(key))
			clientID = fmt.Sprintf("key:%x", sum[:8])
		} else if id := c.GetHeader(ClientIDHeader); id != "" {
			clientID = "cid:" + id
		} else {
			clientID = "ip:" + c.ClientIP()
		}

		c.Set("client_id", clientID)

		ctx := logger.WithContext(c.Request.Context(), logger.ClientIDKey, clientID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
