package utils

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem[V any] struct {
	data      V
	expiresAt time.Time
}

// TTLCache 本地 LRU 缓存封装，每个条目带过期时间
type TTLCache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
	now      func() time.Time
}

func NewTTLCache[V any](size int) (*TTLCache[V], error) {
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{lruCache: l, now: time.Now}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *TTLCache[V]) Set(key string, data V, ttl time.Duration) {
	c.lruCache.Add(key, cacheItem[V]{
		data:      data,
		expiresAt: c.now().Add(ttl),
	})
}

// Get returns the cached value, or ok=false if missing or expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(val.expiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}
	return val.data, true
}

func (c *TTLCache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

// DeletePrefix drops every key starting with prefix.
func (c *TTLCache[V]) DeletePrefix(prefix string) {
	for _, k := range c.lruCache.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lruCache.Remove(k)
		}
	}
}
