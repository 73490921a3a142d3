package cache

import (
	"context"
	"time"
)

// LayeredCache is a two-level cache: L1 in-process memory in front of L2
// Redis. Writes go through to both layers; L1 misses fall back to L2 and
// repopulate the memory layer.
type LayeredCache struct {
	mem   *MemoryCache
	redis *RedisCache
}

// NewLayeredCache wires a memory layer in front of an existing Redis cache.
func NewLayeredCache(redisCache *RedisCache, opts ...MemoryOption) *LayeredCache {
	return &LayeredCache{
		mem:   NewMemoryCache(opts...),
		redis: redisCache,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.redis.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, value, expiration)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.redis.Get(ctx, key, dest); err != nil {
		return err
	}
	// Repopulate L1 with a short lifetime; the authoritative expiry lives in
	// Redis and we cannot read the remaining TTL cheaply here.
	_ = lc.mem.Set(ctx, key, dest, 30*time.Second)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.redis.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if ok, err := lc.mem.Exists(ctx, keys...); err == nil && ok {
		return true, nil
	}
	return lc.redis.Exists(ctx, keys...)
}

func (lc *LayeredCache) Sweep(ctx context.Context) int {
	return lc.mem.Sweep(ctx)
}

func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	return lc.redis.Close()
}
