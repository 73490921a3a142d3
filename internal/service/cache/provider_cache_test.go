package cache

import (
	"context"
	"testing"
	"time"

	"AlphaPulse/internal/domain/models"
	domrepo "AlphaPulse/internal/domain/repository"
	pkgcache "AlphaPulse/pkg/cache"
	applogger "AlphaPulse/pkg/logger"
)

func newTestProviderCache(overrides map[string]time.Duration) *ProviderCache {
	backend := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(100))
	return NewProviderCache(backend, overrides, applogger.Nop())
}

func TestGetMissThenHit(t *testing.T) {
	c := newTestProviderCache(nil)
	ctx := context.Background()

	if _, _, _, ok := c.Get(ctx, "AAPL", domrepo.ClassPriceIntraday); ok {
		t.Fatalf("expected miss on empty cache")
	}

	want := models.Datum{Price: 187.5, Volume: 1200, AsOf: time.Now()}
	c.Put(ctx, "AAPL", domrepo.ClassPriceIntraday, want, "tiingo", 0.9)

	got, provider, conf, ok := c.Get(ctx, "AAPL", domrepo.ClassPriceIntraday)
	if !ok {
		t.Fatalf("expected hit after put")
	}
	if got.Price != want.Price || got.Volume != want.Volume {
		t.Fatalf("datum mismatch: got %+v want %+v", got, want)
	}
	if provider != "tiingo" {
		t.Fatalf("provenance lost: got %q", provider)
	}
	if conf != 0.9 {
		t.Fatalf("confidence lost: got %v", conf)
	}
}

func TestEntriesExpirePerClassTTL(t *testing.T) {
	c := newTestProviderCache(map[string]time.Duration{
		"price_intraday": 100 * time.Millisecond,
	})
	ctx := context.Background()

	c.Put(ctx, "AAPL", domrepo.ClassPriceIntraday, models.Datum{Price: 1}, "tiingo", 0.9)

	time.Sleep(50 * time.Millisecond)
	if _, _, _, ok := c.Get(ctx, "AAPL", domrepo.ClassPriceIntraday); !ok {
		t.Fatalf("entry must survive inside its TTL")
	}

	time.Sleep(80 * time.Millisecond)
	if _, _, _, ok := c.Get(ctx, "AAPL", domrepo.ClassPriceIntraday); ok {
		t.Fatalf("entry must expire past its TTL")
	}
}

func TestClassesAreIndependentKeys(t *testing.T) {
	c := newTestProviderCache(nil)
	ctx := context.Background()

	c.Put(ctx, "AAPL", domrepo.ClassPriceIntraday, models.Datum{Price: 1}, "tiingo", 0.9)
	c.Put(ctx, "AAPL", domrepo.ClassPriceDaily, models.Datum{Price: 2}, "yahoo", 0.8)

	intraday, _, _, ok := c.Get(ctx, "AAPL", domrepo.ClassPriceIntraday)
	if !ok || intraday.Price != 1 {
		t.Fatalf("intraday entry clobbered: %+v", intraday)
	}
	daily, provider, _, ok := c.Get(ctx, "AAPL", domrepo.ClassPriceDaily)
	if !ok || daily.Price != 2 || provider != "yahoo" {
		t.Fatalf("daily entry wrong: %+v from %q", daily, provider)
	}
}

func TestTTLForUsesOverridesAndDefaults(t *testing.T) {
	c := newTestProviderCache(map[string]time.Duration{
		"sentiment": time.Minute,
	})
	if got := c.TTLFor(domrepo.ClassSentiment); got != time.Minute {
		t.Fatalf("override ignored: %v", got)
	}
	if got := c.TTLFor(domrepo.ClassMetadata); got != domrepo.ClassMetadata.DefaultTTL() {
		t.Fatalf("default lost: %v", got)
	}
}
