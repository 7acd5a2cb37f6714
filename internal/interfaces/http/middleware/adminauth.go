// Package middleware 提供 HTTP 中间件
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"podcast-search-api/pkg/errors"
)

// AdminAuth 管理接口鉴权中间件
// apiKey 为空时管理接口整体关闭。
func AdminAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"code":    errors.CodeNotFound,
				"message": "not found",
			})
			return
		}

		provided := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    errors.CodeInvalidParam,
				"message": "invalid admin api key",
			})
			return
		}

		c.Next()
	}
}
