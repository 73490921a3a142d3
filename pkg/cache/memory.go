package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	raw      []byte
	expireAt time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return now.After(m.expireAt)
}

// MemoryCache implements Service with in-process storage. Values are stored
// JSON-encoded so Get semantics match the Redis backend exactly. Reads run
// concurrently; writes serialize on one mutex. Expired entries are reaped
// lazily on access and by Sweep.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]*memoryItem
	access  map[string]time.Time
	maxSize int
}

// NewMemoryCache creates an in-memory cache with LRU eviction at maxSize.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{
		data:    make(map[string]*memoryItem),
		access:  make(map[string]time.Time),
		maxSize: cfg.MaxSize,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.data[key]; !exists && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}
	mc.data[key] = &memoryItem{raw: raw, expireAt: time.Now().Add(expiration)}
	mc.access[key] = time.Now()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.RLock()
	item, exists := mc.data[key]
	mc.mu.RUnlock()

	if !exists {
		return ErrCacheMiss
	}
	if item.expired(time.Now()) {
		mc.mu.Lock()
		delete(mc.data, key)
		delete(mc.access, key)
		mc.mu.Unlock()
		return ErrCacheMiss
	}

	mc.mu.Lock()
	mc.access[key] = time.Now()
	mc.mu.Unlock()

	return json.Unmarshal(item.raw, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.access, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	now := time.Now()
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	for _, key := range keys {
		if item, ok := mc.data[key]; ok && !item.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Sweep(_ context.Context) int {
	now := time.Now()
	mc.mu.Lock()
	defer mc.mu.Unlock()

	dropped := 0
	for key, item := range mc.data {
		if item.expired(now) {
			delete(mc.data, key)
			delete(mc.access, key)
			dropped++
		}
	}
	return dropped
}

func (mc *MemoryCache) Close() error { return nil }

// evictLRU removes the least recently accessed key. Caller holds the lock.
func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, at := range mc.access {
		if first || at.Before(oldestTime) {
			oldestKey, oldestTime = key, at
			first = false
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
		delete(mc.access, oldestKey)
	}
}
