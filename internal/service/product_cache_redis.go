package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultProductCachePrefix = "products:list"

type RedisProductListCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisProductListCache(client redis.UniversalClient, prefix string) *RedisProductListCache {
	if prefix == "" {
		prefix = defaultProductCachePrefix
	}
	return &RedisProductListCache{client: client, prefix: prefix}
}

func (c *RedisProductListCache) Get(ctx context.Context, page, limit int) ([]byte, bool, error) {
	if c.client == nil {
		return nil, false, nil
	}
	value, err := c.client.Get(ctx, productListKey(c.prefix, page, limit)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores a page and records its key in an index set so Invalidate can drop
// every page without a SCAN.
func (c *RedisProductListCache) Set(ctx context.Context, page, limit int, payload []byte, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	key := productListKey(c.prefix, page, limit)
	index := c.indexKey()
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, payload, ttl)
	pipe.SAdd(ctx, index, key)
	pipe.Expire(ctx, index, ttl+time.Minute)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisProductListCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	index := c.indexKey()
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := c.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, index)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisProductListCache) indexKey() string {
	return c.prefix + ":index"
}
