package tier

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements CacheBackend over github.com/redis/go-redis/v9,
// the cache tier grounded on db/repository.CompositeRepository's
// use of an external cache alongside durable storage; in tests it is exercised against a miniredis instance so no
// live Redis is required (storage/tier/tier_test.go).
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing *redis.Client. keyPrefix namespaces
// all cache keys (e.g. "kotobadb:cache:") so a shared Redis instance
// can host multiple tenants without collision.
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{client: client, prefix: keyPrefix}
}

func (c *RedisCache) key(k []byte) string {
	return c.prefix + string(k)
}

func (c *RedisCache) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key []byte) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// DeletePrefix scans for cache keys sharing prefix and removes them.
// Redis has no native prefix-delete, so this uses SCAN with a MATCH
// glob, deleting in batches to avoid blocking the server on a single
// huge DEL call.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix []byte) error {
	pattern := c.key(prefix) + "*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}
