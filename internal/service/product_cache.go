package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ProductListCache holds serialized catalog pages keyed by page and limit.
// Any product write invalidates every cached page.
type ProductListCache interface {
	Get(ctx context.Context, page, limit int) ([]byte, bool, error)
	Set(ctx context.Context, page, limit int, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

func productListKey(prefix string, page, limit int) string {
	return fmt.Sprintf("%s:%d:%d", prefix, page, limit)
}

type NoopProductListCache struct{}

func NewNoopProductListCache() *NoopProductListCache { return &NoopProductListCache{} }

func (NoopProductListCache) Get(context.Context, int, int) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopProductListCache) Set(context.Context, int, int, []byte, time.Duration) error {
	return nil
}

func (NoopProductListCache) Invalidate(context.Context) error { return nil }

type memoryCacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// InMemoryProductListCache is the single-process fallback used when Redis is
// not configured.
type InMemoryProductListCache struct {
	mu    sync.RWMutex
	store map[string]memoryCacheEntry
	now   func() time.Time
}

func NewInMemoryProductListCache() *InMemoryProductListCache {
	return &InMemoryProductListCache{store: make(map[string]memoryCacheEntry), now: time.Now}
}

func (c *InMemoryProductListCache) Get(_ context.Context, page, limit int) ([]byte, bool, error) {
	key := productListKey(defaultProductCachePrefix, page, limit)
	c.mu.RLock()
	entry, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.store, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

func (c *InMemoryProductListCache) Set(_ context.Context, page, limit int, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[productListKey(defaultProductCachePrefix, page, limit)] = memoryCacheEntry{
		payload:   append([]byte(nil), payload...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *InMemoryProductListCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]memoryCacheEntry)
	return nil
}
