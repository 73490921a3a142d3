package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"
	"AlphaPulse/internal/providers"
	"AlphaPulse/internal/service/ratelimit"
	applogger "AlphaPulse/pkg/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Config tunes resolution behavior.
type Config struct {
	PoolSize        int           // max concurrent resolutions in ResolveAll
	ProviderTimeout time.Duration // per provider attempt
	RateCapacity    float64       // token bucket per provider
	RateRefill      float64
}

// Resolver answers (subject, data class) lookups. Order of attack: provider
// cache, then the configured chain with in-flight coalescing, so N concurrent
// requests for the same pair cost at most one provider call. Per-provider
// circuit breakers and token buckets keep a degraded upstream from stalling
// the chain.
type Resolver struct {
	cfg      Config
	registry *Registry
	cache    repository.ProviderCache
	limiter  *ratelimit.Limiter
	metrics  repository.Metrics
	log      *applogger.Logger

	flight singleflight.Group

	mu       sync.Mutex
	breakers map[string]*Breaker
	bcfg     BreakerConfig
}

func New(cfg Config, bcfg BreakerConfig, registry *Registry, cache repository.ProviderCache, metrics repository.Metrics, log *applogger.Logger) *Resolver {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 8
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 5 * time.Second
	}
	if cfg.RateCapacity <= 0 {
		cfg.RateCapacity = 5
	}
	if cfg.RateRefill <= 0 {
		cfg.RateRefill = 1
	}
	return &Resolver{
		cfg:      cfg,
		registry: registry,
		cache:    cache,
		limiter:  ratelimit.New(),
		metrics:  metrics,
		log:      log,
		breakers: make(map[string]*Breaker),
		bcfg:     bcfg,
	}
}

// Resolve answers one (subject, class) lookup. It never returns an error for
// exhausted chains: that is the typed Unavailable result, which callers treat
// as "signal absent".
func (r *Resolver) Resolve(ctx context.Context, subject string, class repository.DataClass) models.ProviderResult {
	start := time.Now()

	if d, provider, conf, ok := r.cache.Get(ctx, subject, class); ok {
		r.metrics.RecordProviderCall(provider, string(class), "cache_hit")
		return models.ProviderResult{
			Datum:      d,
			Provider:   provider,
			Confidence: conf,
			Latency:    time.Since(start),
			Cached:     true,
		}
	}

	key := string(class) + "\x00" + subject
	v, err, _ := r.flight.Do(key, func() (interface{}, error) {
		return r.resolveChain(ctx, subject, class), nil
	})
	if err != nil {
		// singleflight itself never fails here
		return models.Unavailable()
	}

	res := v.(models.ProviderResult)
	res.Latency = time.Since(start)
	r.metrics.RecordResolveLatency(string(class), res.Latency.Seconds())
	return res
}

func (r *Resolver) resolveChain(ctx context.Context, subject string, class repository.DataClass) models.ProviderResult {
	chain := r.registry.Chain(class)
	if len(chain) == 0 {
		r.log.Warn("no provider chain for class", applogger.String("class", string(class)))
		return models.Unavailable()
	}

	for _, p := range chain {
		res, retryable := r.attempt(ctx, p, subject, class)
		if res.OK() {
			r.cache.Put(ctx, subject, class, res.Datum, res.Provider, res.Confidence)
			return res
		}
		if !retryable {
			return models.Unavailable()
		}
	}

	r.metrics.RecordProviderCall("none", string(class), "exhausted")
	return models.Unavailable()
}

// attempt runs one provider. The second return is false only when the chain
// as a whole must stop (context canceled).
func (r *Resolver) attempt(ctx context.Context, p providers.Provider, subject string, class repository.DataClass) (models.ProviderResult, bool) {
	name := p.Name()

	if ctx.Err() != nil {
		return models.Unavailable(), false
	}

	br := r.breaker(name)
	if !br.Allow() {
		r.metrics.RecordProviderCall(name, string(class), "breaker_open")
		return models.Unavailable(), true
	}
	if !r.limiter.Allow(name, r.cfg.RateCapacity, r.cfg.RateRefill) {
		r.metrics.RecordProviderCall(name, string(class), "rate_limited")
		// not a provider fault, keep it out of the breaker window and give
		// back any probe slot Allow just granted
		br.CancelProbe()
		return models.Unavailable(), true
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	d, conf, err := p.Fetch(callCtx, subject, class)
	latency := time.Since(start)

	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		if errors.Is(err, providers.ErrUnsupportedClass) {
			// misconfigured chain, not a provider health problem
			r.metrics.RecordProviderCall(name, string(class), "unsupported")
			br.CancelProbe()
			return models.Unavailable(), true
		}

		br.Record(false)
		r.metrics.RecordBreakerState(name, br.State() == BreakerOpen)

		result := "error"
		fail := models.FailUnavailable
		if timedOut {
			result = "timeout"
			fail = models.FailTimeout
		}
		r.metrics.RecordProviderCall(name, string(class), result)
		r.log.Warn("provider attempt failed",
			applogger.String("provider", name),
			applogger.String("class", string(class)),
			applogger.String("subject", subject),
			applogger.Duration("latency", latency),
			applogger.Error(err),
		)
		return models.ProviderResult{Provider: name, Fail: fail, Latency: latency}, true
	}

	br.Record(true)
	r.metrics.RecordBreakerState(name, false)
	r.metrics.RecordProviderCall(name, string(class), "ok")
	return models.ProviderResult{
		Datum:      d,
		Provider:   name,
		Confidence: conf,
		Latency:    latency,
	}, true
}

// Request names one lookup in a batch resolve.
type Request struct {
	Subject string
	Class   repository.DataClass
}

// ResolveAll fans a batch of lookups across the bounded worker pool and
// returns results in request order. Individual unavailability never fails the
// batch.
func (r *Resolver) ResolveAll(ctx context.Context, reqs []Request) []models.ProviderResult {
	results := make([]models.ProviderResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.PoolSize)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = r.Resolve(gctx, req.Subject, req.Class)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// BreakerStates snapshots every known breaker, for diagnostics.
func (r *Resolver) BreakerStates() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State().String()
	}
	return out
}

func (r *Resolver) breaker(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = NewBreaker(r.bcfg)
		r.breakers[name] = b
	}
	return b
}
