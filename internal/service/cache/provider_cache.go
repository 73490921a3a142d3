package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AlphaPulse/internal/domain/models"
	domrepo "AlphaPulse/internal/domain/repository"
	pkgcache "AlphaPulse/pkg/cache"
	applogger "AlphaPulse/pkg/logger"
)

// entry is the cached payload: the datum plus its provenance and the wall
// clock bounds. ExpiresAt is stored explicitly so a read can verify freshness
// even if the backing layer returned a stale value.
type entry struct {
	Datum      models.Datum `json:"datum"`
	Provider   string       `json:"provider"`
	Confidence float64      `json:"confidence"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// ProviderCache implements the shared (subject, data class) TTL cache on top
// of pkg/cache. TTL is a function of the data class.
type ProviderCache struct {
	backend pkgcache.Service
	ttls    map[domrepo.DataClass]time.Duration
	log     *applogger.Logger
}

// NewProviderCache wires the cache over a backend with per-class TTL
// overrides; classes not listed use their defaults.
func NewProviderCache(backend pkgcache.Service, overrides map[string]time.Duration, log *applogger.Logger) *ProviderCache {
	ttls := make(map[domrepo.DataClass]time.Duration, len(domrepo.AllDataClasses))
	for _, class := range domrepo.AllDataClasses {
		ttls[class] = class.DefaultTTL()
	}
	for name, ttl := range overrides {
		if ttl > 0 {
			ttls[domrepo.NormalizeDataClass(name)] = ttl
		}
	}
	return &ProviderCache{backend: backend, ttls: ttls, log: log}
}

// TTLFor returns the configured lifetime for a class.
func (c *ProviderCache) TTLFor(class domrepo.DataClass) time.Duration {
	if ttl, ok := c.ttls[class]; ok {
		return ttl
	}
	return class.DefaultTTL()
}

func cacheKey(subject string, class domrepo.DataClass) string {
	return fmt.Sprintf("resolve:%s:%s", class, subject)
}

// Get returns the cached datum with its provider and the confidence it was
// resolved at, or ok=false on miss or expiry. An expired entry is reaped on
// the spot.
func (c *ProviderCache) Get(ctx context.Context, subject string, class domrepo.DataClass) (models.Datum, string, float64, bool) {
	key := cacheKey(subject, class)

	var e entry
	if err := c.backend.Get(ctx, key, &e); err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			c.log.Warn("provider cache read failed",
				applogger.String("key", key),
				applogger.Error(err),
			)
		}
		return models.Datum{}, "", 0, false
	}

	// Expiry is enforced here, not only in the backend: a stale hit must
	// never be served regardless of which layer answered.
	if !e.ExpiresAt.After(time.Now()) {
		_ = c.backend.Delete(ctx, key)
		return models.Datum{}, "", 0, false
	}

	return e.Datum, e.Provider, e.Confidence, true
}

// Put stores a freshly resolved datum under the class TTL.
func (c *ProviderCache) Put(ctx context.Context, subject string, class domrepo.DataClass, d models.Datum, provider string, confidence float64) {
	ttl := c.TTLFor(class)
	now := time.Now()
	e := entry{
		Datum:      d,
		Provider:   provider,
		Confidence: confidence,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := c.backend.Set(ctx, cacheKey(subject, class), e, ttl); err != nil {
		c.log.Warn("provider cache write failed",
			applogger.String("subject", subject),
			applogger.String("class", string(class)),
			applogger.Error(err),
		)
	}
}

// Sweep reaps expired entries in the backing store.
func (c *ProviderCache) Sweep(ctx context.Context) int {
	return c.backend.Sweep(ctx)
}
