package kv

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps a Store with a read-through LRU of recently used values.
type Cached struct {
	inner   Store
	cache   *lru.Cache[string, []byte]
	metrics Metrics
}

// NewCached caches up to size values in front of inner.
func NewCached(inner Store, size int) (*Cached, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if value, ok := c.cache.Get(key); ok {
		c.metrics.CacheHit().Inc(1)
		return append([]byte(nil), value...), true, nil
	}
	c.metrics.CacheMiss().Inc(1)

	value, ok, err := c.inner.Get(ctx, key)
	if err != nil || !ok {
		return value, ok, err
	}
	c.cache.Add(key, append([]byte(nil), value...))
	return value, true, nil
}

func (c *Cached) Put(ctx context.Context, key string, value []byte) error {
	if err := c.inner.Put(ctx, key, value); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, append([]byte(nil), value...))
	return nil
}

func (c *Cached) Delete(ctx context.Context, key string) error {
	c.cache.Remove(key)
	return c.inner.Delete(ctx, key)
}

func (c *Cached) Scan(ctx context.Context, prefix string, fn func(Entry) error) error {
	return c.inner.Scan(ctx, prefix, fn)
}

func (c *Cached) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
