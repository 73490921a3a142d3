package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals an absent or expired key. It is normal control flow,
// not a failure.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the minimal cache surface the engine needs: typed JSON values
// with per-entry TTL.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	// Sweep drops expired entries eagerly and reports how many were removed.
	// Backends with server-side expiry may report zero.
	Sweep(ctx context.Context) int
	Close() error
}
