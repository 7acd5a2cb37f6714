// Package redis 提供 Redis 缓存实现
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"podcast-search-api/pkg/metrics"
)

var cacheTracer = otel.Tracer("redis.cache")

// Cache 检索结果缓存
// 同 key 并发未命中通过 singleflight 合并为一次加载。
type Cache struct {
	client *Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache 创建缓存服务
func NewCache(client *Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
	}
}

// Get 获取缓存值，未命中返回 redis.Nil
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, err
		}
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	return val, nil
}

// Set 设置缓存值
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", c.ttl.Milliseconds()),
		))
	defer span.End()

	return c.client.rdb.Set(ctx, key, value, c.ttl).Err()
}

// GetOrLoad Read-Through 缓存，singleflight 防止缓存击穿。
// 返回的 hit 表示本次调用是否命中缓存：执行 loader 的调用方为 false，
// 被合并到同一航班的调用方为 true。
func (c *Cache) GetOrLoad(ctx context.Context, key string, loader func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.GetOrLoad",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	// 尝试从缓存获取
	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, true, nil
	}

	if err != redis.Nil {
		span.RecordError(err)
		return nil, false, err
	}

	// 使用 singleflight 合并并发请求
	loaded := false
	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		// 再次检查缓存（可能已被其他请求填充）
		val, err := c.client.rdb.Get(ctx, key).Bytes()
		if err == nil {
			return val, nil
		}

		loaded = true
		data, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		if err := c.client.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			// 缓存写入失败不影响返回结果
			span.RecordError(err)
		}

		return data, nil
	})
	if shared {
		metrics.CacheCollapsedTotal.Inc()
	}

	hit := !loaded
	span.SetAttributes(
		attribute.Bool("cache.hit", hit),
		attribute.Bool("cache.shared", shared),
	)

	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	return result.([]byte), hit, nil
}

// Delete 删除缓存
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))))
	defer span.End()

	return c.client.rdb.Del(ctx, keys...).Err()
}

// InvalidatePattern 按模式使缓存失效
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.InvalidatePattern",
		trace.WithAttributes(attribute.String("cache.pattern", pattern)))
	defer span.End()

	iter := c.client.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return 0, err
	}

	if len(keys) > 0 {
		span.SetAttributes(attribute.Int("cache.invalidated_count", len(keys)))
		if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
			span.RecordError(err)
			return 0, err
		}
	}

	return len(keys), nil
}
