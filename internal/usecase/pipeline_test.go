package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"
	"AlphaPulse/internal/providers"
	"AlphaPulse/internal/resolver"
	icache "AlphaPulse/internal/service/cache"
	pkgcache "AlphaPulse/pkg/cache"
	applogger "AlphaPulse/pkg/logger"
)

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error // when set, Register fails
}

func newMemDedup() *memDedup { return &memDedup{seen: make(map[string]bool)} }

func (d *memDedup) Register(_ context.Context, key string, _ time.Time) (repository.RegisterResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return repository.Registered, d.err
	}
	if d.seen[key] {
		return repository.Duplicate, nil
	}
	d.seen[key] = true
	return repository.Registered, nil
}

func (d *memDedup) Unregister(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

func (d *memDedup) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[key], nil
}

func (d *memDedup) SweepBefore(context.Context, time.Time) (int, error) { return 0, nil }
func (d *memDedup) Close() error                                       { return nil }

type capturePublisher struct {
	mu       sync.Mutex
	alerts   []*models.Alert
	failures int // fail the next N publishes
}

func (p *capturePublisher) Publish(_ context.Context, a *models.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unreachable")
	}
	p.alerts = append(p.alerts, a)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

type stubMarketProvider struct{ price float64 }

func (stubMarketProvider) Name() string { return "stub" }

func (s stubMarketProvider) Fetch(_ context.Context, _ string, class repository.DataClass) (models.Datum, float64, error) {
	switch class {
	case repository.ClassPriceIntraday:
		return models.Datum{Price: s.price, Volume: 5000, AsOf: time.Now()}, 0.9, nil
	case repository.ClassPriceDaily:
		return models.Datum{Price: s.price, Volume: 5000, AsOf: time.Now()}, 0.9, nil
	default:
		return models.Datum{}, 0, errors.New("not served")
	}
}

func buildPipeline(t *testing.T, dedup repository.DedupStore, publisher repository.AlertPublisher) (*Pipeline, *OutcomeTracker) {
	t.Helper()
	log := applogger.Nop()

	cache := icache.NewProviderCache(pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(100)), nil, log)
	registry, err := resolver.NewRegistry(
		[]providers.Provider{stubMarketProvider{price: 100}},
		map[string][]string{
			"price_intraday": {"stub"},
			"price_daily":    {"stub"},
		},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	res := resolver.New(
		resolver.Config{PoolSize: 4, ProviderTimeout: 100 * time.Millisecond, RateCapacity: 1000, RateRefill: 1000},
		resolver.BreakerConfig{},
		registry, cache, nopMetrics{}, log,
	)

	outlog := newMemOutcomeLog()
	tracker := NewOutcomeTracker(TrackerConfig{}, outlog, nil, nopMetrics{}, log)
	aggregator := newTestAggregator()
	weights := newMemWeightStore()

	pipeline := NewPipeline(
		PipelineConfig{AlertThreshold: 0.15},
		dedup, res, aggregator, weights, publisher, tracker, nopMetrics{}, log,
	)
	return pipeline, tracker
}

func strongEvent(key string) *models.Event {
	return &models.Event{
		CanonicalKey: key,
		Ticker:       "AAPL",
		SourceID:     "sec-edgar",
		ObservedAt:   time.Now(),
		Signals: []models.Signal{
			{Name: "llm_sentiment", Value: 0.9, Weight: 1.0, Confidence: 1.0},
		},
	}
}

func TestPipelineDispatchesAlertOnce(t *testing.T) {
	dedup := newMemDedup()
	publisher := &capturePublisher{}
	pipeline, tracker := buildPipeline(t, dedup, publisher)
	ctx := context.Background()

	if err := pipeline.Handle(ctx, strongEvent("evt:1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if publisher.count() != 1 {
		t.Fatalf("expected 1 alert, got %d", publisher.count())
	}

	// same canonical key from another feed: suppressed
	dup := strongEvent("evt:1")
	dup.SourceID = "newswire"
	if err := pipeline.Handle(ctx, dup); err != nil {
		t.Fatalf("handle dup: %v", err)
	}
	if publisher.count() != 1 {
		t.Fatalf("duplicate must not dispatch, got %d alerts", publisher.count())
	}

	if tracker.PendingCount() != 1 {
		t.Fatalf("dispatched alert must be tracked, pending=%d", tracker.PendingCount())
	}
}

func TestPipelineFailsOpenOnDedupError(t *testing.T) {
	dedup := newMemDedup()
	dedup.err = errors.New("disk gone")
	publisher := &capturePublisher{}
	pipeline, _ := buildPipeline(t, dedup, publisher)

	if err := pipeline.Handle(context.Background(), strongEvent("evt:2")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if publisher.count() != 1 {
		t.Fatalf("dedup failure must not drop events, got %d alerts", publisher.count())
	}
}

func TestPipelineRedeliveryAfterPublishFailure(t *testing.T) {
	dedup := newMemDedup()
	publisher := &capturePublisher{failures: 1}
	pipeline, _ := buildPipeline(t, dedup, publisher)
	ctx := context.Background()

	event := strongEvent("evt:retry")
	if err := pipeline.Handle(ctx, event); err == nil {
		t.Fatalf("publish failure must surface for redelivery")
	}
	if publisher.count() != 0 {
		t.Fatalf("nothing dispatched yet, got %d", publisher.count())
	}

	// the broker recovers and the consumer redelivers the same event: the
	// dedup gate must not swallow an alert that never went out
	if err := pipeline.Handle(ctx, strongEvent("evt:retry")); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if publisher.count() != 1 {
		t.Fatalf("redelivered event must dispatch, got %d alerts", publisher.count())
	}

	// a third delivery is a genuine duplicate again
	if err := pipeline.Handle(ctx, strongEvent("evt:retry")); err != nil {
		t.Fatalf("third delivery: %v", err)
	}
	if publisher.count() != 1 {
		t.Fatalf("gate must hold once the alert is out, got %d", publisher.count())
	}
}

func TestPipelineSkipsWeakScores(t *testing.T) {
	publisher := &capturePublisher{}
	pipeline, _ := buildPipeline(t, newMemDedup(), publisher)

	event := strongEvent("evt:3")
	event.Signals = []models.Signal{
		{Name: "llm_sentiment", Value: 0.05, Weight: 1.0, Confidence: 1.0},
	}
	if err := pipeline.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if publisher.count() != 0 {
		t.Fatalf("weak score must not alert, got %d", publisher.count())
	}
}

func TestPipelineDropsInvalidEvents(t *testing.T) {
	publisher := &capturePublisher{}
	pipeline, _ := buildPipeline(t, newMemDedup(), publisher)

	if err := pipeline.Handle(context.Background(), &models.Event{Ticker: "AAPL"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if publisher.count() != 0 {
		t.Fatalf("invalid event must be dropped")
	}
}

func TestPipelineRecordsScoreJournal(t *testing.T) {
	pipeline, _ := buildPipeline(t, newMemDedup(), &capturePublisher{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := pipeline.Handle(ctx, strongEvent("evt:j"+string(rune('0'+i)))); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	scores := pipeline.RecentScores("AAPL", 10)
	if len(scores) != 3 {
		t.Fatalf("expected 3 journaled scores, got %d", len(scores))
	}
	if scores[0].Value == 0 {
		t.Fatalf("journal must carry real scores")
	}
}
