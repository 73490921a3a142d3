package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"
	"AlphaPulse/internal/providers"
	applogger "AlphaPulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string)                   {}
func (nopMetrics) RecordProviderCall(_, _, _ string)    {}
func (nopMetrics) RecordBreakerState(string, bool)      {}
func (nopMetrics) RecordResolveLatency(string, float64) {}
func (nopMetrics) RecordComposite(string, float64)      {}
func (nopMetrics) RecordOutcome(string)                 {}
func (nopMetrics) RecordSignalWeight(string, float64)   {}
func (nopMetrics) RecordError(string)                   {}

type cachedResult struct {
	d        models.Datum
	provider string
	conf     float64
}

type memProviderCache struct {
	mu sync.Mutex
	m  map[string]cachedResult
}

func newMemProviderCache() *memProviderCache {
	return &memProviderCache{m: make(map[string]cachedResult)}
}

func (c *memProviderCache) Get(_ context.Context, subject string, class repository.DataClass) (models.Datum, string, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[subject+"/"+string(class)]
	return e.d, e.provider, e.conf, ok
}

func (c *memProviderCache) Put(_ context.Context, subject string, class repository.DataClass, d models.Datum, provider string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[subject+"/"+string(class)] = cachedResult{d, provider, confidence}
}

func (c *memProviderCache) Sweep(context.Context) int { return 0 }

type fakeProvider struct {
	name  string
	calls atomic.Int64
	delay time.Duration
	err   error
	price float64
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Fetch(ctx context.Context, _ string, _ repository.DataClass) (models.Datum, float64, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return models.Datum{}, 0, ctx.Err()
		}
	}
	if p.err != nil {
		return models.Datum{}, 0, p.err
	}
	return models.Datum{Price: p.price, AsOf: time.Now()}, 0.9, nil
}

func newTestResolver(t *testing.T, chain []providers.Provider) (*Resolver, *memProviderCache) {
	t.Helper()
	registry, err := NewRegistry(chain, map[string][]string{
		"price_intraday": providerNames(chain),
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cache := newMemProviderCache()
	r := New(
		Config{PoolSize: 8, ProviderTimeout: 100 * time.Millisecond, RateCapacity: 1000, RateRefill: 1000},
		BreakerConfig{Window: time.Minute, Cooldown: time.Minute, MinCalls: 3, MaxFailureRate: 0.5},
		registry, cache, nopMetrics{}, applogger.Nop(),
	)
	return r, cache
}

func providerNames(chain []providers.Provider) []string {
	names := make([]string, len(chain))
	for i, p := range chain {
		names[i] = p.Name()
	}
	return names
}

func TestResolveCoalescesConcurrentRequests(t *testing.T) {
	slow := &fakeProvider{name: "slow", delay: 30 * time.Millisecond, price: 101}
	r, _ := newTestResolver(t, []providers.Provider{slow})

	const callers = 20
	var wg sync.WaitGroup
	results := make([]models.ProviderResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "AAPL", repository.ClassPriceIntraday)
		}()
	}
	wg.Wait()

	if got := slow.calls.Load(); got != 1 {
		t.Fatalf("%d concurrent resolves must cost one provider call, got %d", callers, got)
	}
	for i, res := range results {
		if !res.OK() || res.Datum.Price != 101 {
			t.Fatalf("caller %d got bad result: %+v", i, res)
		}
	}
}

func TestResolveServesFromCache(t *testing.T) {
	p := &fakeProvider{name: "p", price: 42}
	r, _ := newTestResolver(t, []providers.Provider{p})
	ctx := context.Background()

	first := r.Resolve(ctx, "AAPL", repository.ClassPriceIntraday)
	if !first.OK() || first.Cached {
		t.Fatalf("first resolve must come from the provider: %+v", first)
	}

	second := r.Resolve(ctx, "AAPL", repository.ClassPriceIntraday)
	if !second.OK() || !second.Cached {
		t.Fatalf("second resolve must come from cache: %+v", second)
	}
	if second.Confidence != first.Confidence {
		t.Fatalf("cache hit must keep the resolved confidence: got %v want %v",
			second.Confidence, first.Confidence)
	}
	if got := p.calls.Load(); got != 1 {
		t.Fatalf("cache hit must not call the provider, got %d calls", got)
	}
}

func TestResolveFallsThroughChainInOrder(t *testing.T) {
	broken := &fakeProvider{name: "broken", err: errors.New("boom")}
	backup := &fakeProvider{name: "backup", price: 7}
	r, _ := newTestResolver(t, []providers.Provider{broken, backup})

	res := r.Resolve(context.Background(), "AAPL", repository.ClassPriceIntraday)
	if !res.OK() {
		t.Fatalf("expected fallback success: %+v", res)
	}
	if res.Provider != "backup" {
		t.Fatalf("expected backup provider, got %s", res.Provider)
	}
	if broken.calls.Load() != 1 || backup.calls.Load() != 1 {
		t.Fatalf("chain order violated: broken=%d backup=%d", broken.calls.Load(), backup.calls.Load())
	}
}

func TestResolveUnavailableWhenChainExhausted(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("down")}
	b := &fakeProvider{name: "b", err: errors.New("down")}
	r, _ := newTestResolver(t, []providers.Provider{a, b})

	res := r.Resolve(context.Background(), "AAPL", repository.ClassPriceIntraday)
	if res.OK() {
		t.Fatalf("expected unavailable result")
	}
	if res.Fail != models.FailUnavailable {
		t.Fatalf("expected typed unavailable, got %q", res.Fail)
	}
}

func TestBreakerSkipsFailingProvider(t *testing.T) {
	flaky := &fakeProvider{name: "flaky", err: context.DeadlineExceeded}
	backup := &fakeProvider{name: "backup", price: 9}
	r, _ := newTestResolver(t, []providers.Provider{flaky, backup})
	ctx := context.Background()

	// trip the breaker: three failed calls on distinct subjects
	for _, subject := range []string{"AAPL", "MSFT", "NVDA"} {
		res := r.Resolve(ctx, subject, repository.ClassPriceIntraday)
		if !res.OK() || res.Provider != "backup" {
			t.Fatalf("expected backup to serve %s: %+v", subject, res)
		}
	}
	if flaky.calls.Load() != 3 {
		t.Fatalf("expected 3 attempts before the breaker opens, got %d", flaky.calls.Load())
	}

	res := r.Resolve(ctx, "TSLA", repository.ClassPriceIntraday)
	if !res.OK() || res.Provider != "backup" {
		t.Fatalf("expected backup while breaker open: %+v", res)
	}
	if flaky.calls.Load() != 3 {
		t.Fatalf("open breaker must skip the provider, got %d calls", flaky.calls.Load())
	}

	states := r.BreakerStates()
	if states["flaky"] != "open" {
		t.Fatalf("expected flaky breaker open, got %q", states["flaky"])
	}
}

func TestBreakerProbeSurvivesUnsupportedClass(t *testing.T) {
	flaky := &fakeProvider{name: "flaky", err: context.DeadlineExceeded, price: 11}
	backup := &fakeProvider{name: "backup", price: 9}
	registry, err := NewRegistry([]providers.Provider{flaky, backup}, map[string][]string{
		"price_intraday": {"flaky", "backup"},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	r := New(
		Config{PoolSize: 8, ProviderTimeout: 100 * time.Millisecond, RateCapacity: 1000, RateRefill: 1000},
		BreakerConfig{Window: time.Minute, Cooldown: 20 * time.Millisecond, MinCalls: 3, MaxFailureRate: 0.5},
		registry, newMemProviderCache(), nopMetrics{}, applogger.Nop(),
	)
	ctx := context.Background()

	for _, subject := range []string{"AAPL", "MSFT", "NVDA"} {
		r.Resolve(ctx, subject, repository.ClassPriceIntraday)
	}
	if r.BreakerStates()["flaky"] == "closed" {
		t.Fatalf("breaker must trip after 3 timeouts")
	}

	time.Sleep(40 * time.Millisecond)

	// the probe call answers with an unsupported-class error, which says
	// nothing about provider health and must hand the probe slot back
	flaky.err = providers.ErrUnsupportedClass
	if res := r.Resolve(ctx, "TSLA", repository.ClassPriceIntraday); res.Provider != "backup" {
		t.Fatalf("backup must serve while flaky is probed: %+v", res)
	}

	flaky.err = nil
	res := r.Resolve(ctx, "AMZN", repository.ClassPriceIntraday)
	if !res.OK() || res.Provider != "flaky" {
		t.Fatalf("recovered provider must get a fresh probe and serve: %+v", res)
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	p := &fakeProvider{name: "p", price: 5}
	r, _ := newTestResolver(t, []providers.Provider{p})

	reqs := []Request{
		{Subject: "AAPL", Class: repository.ClassPriceIntraday},
		{Subject: "MSFT", Class: repository.ClassPriceIntraday},
		{Subject: "NVDA", Class: repository.ClassPriceIntraday},
	}
	results := r.ResolveAll(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	for i, res := range results {
		if !res.OK() {
			t.Fatalf("result %d not ok: %+v", i, res)
		}
	}
}
