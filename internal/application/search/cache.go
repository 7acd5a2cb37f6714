package search

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// NormalizeQueryText 规整查询文本：小写化并折叠空白
// 大小写或空白差异不应产生不同的缓存条目。
func NormalizeQueryText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// CacheKey 构建缓存键
// 键由规整后的查询文本与分页、过滤参数共同决定。
func CacheKey(prefix string, q Query) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s",
		NormalizeQueryText(q.Text), q.Limit, q.Offset, q.FeedID)))
	return fmt.Sprintf("%s:q:%x", prefix, sum[:16])
}
