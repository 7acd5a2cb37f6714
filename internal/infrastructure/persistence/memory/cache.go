// Package memory 提供进程内缓存与限流实现
// Redis 未启用时作为降级实现使用。
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"podcast-search-api/pkg/metrics"
)

// Cache 进程内结果缓存
// 条目带 TTL，总量超过上限时按插入顺序淘汰最早写入的条目。
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	ttl        time.Duration
	maxEntries int
	group      singleflight.Group

	// now 可注入，测试用
	now func() time.Time
}

type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewCache 创建进程内缓存
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get 获取缓存值，过期或不存在返回 false
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key string) ([]byte, bool) {
	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.removeLocked(elem)
		return nil, false
	}
	return entry.value, true
}

// Set 写入缓存值，必要时淘汰最早插入的条目
func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *Cache) setLocked(key string, value []byte) {
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = c.now().Add(c.ttl)
		return
	}

	for len(c.entries) >= c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		metrics.CacheEvictionsTotal.Inc()
	}

	elem := c.order.PushBack(&cacheEntry{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[key] = elem
}

func (c *Cache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.entries, entry.key)
}

// GetOrLoad Read-Through 缓存，singleflight 合并并发加载。
// hit 语义与 Redis 实现一致：执行 loader 的调用方为 false。
func (c *Cache) GetOrLoad(ctx context.Context, key string, loader func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	c.mu.Lock()
	val, ok := c.getLocked(key)
	c.mu.Unlock()
	if ok {
		return val, true, nil
	}

	loaded := false
	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		val, ok := c.getLocked(key)
		c.mu.Unlock()
		if ok {
			return val, nil
		}

		loaded = true
		data, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.setLocked(key, data)
		c.mu.Unlock()
		return data, nil
	})
	if shared {
		metrics.CacheCollapsedTotal.Inc()
	}
	if err != nil {
		return nil, false, err
	}

	return result.([]byte), !loaded, nil
}

// Delete 删除指定键
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if elem, ok := c.entries[key]; ok {
			c.removeLocked(elem)
		}
	}
}

// Flush 清空全部条目，返回清除数量
func (c *Cache) Flush(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	return n
}

// Len 当前条目数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
