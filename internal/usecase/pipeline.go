package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"
	"AlphaPulse/internal/resolver"
	applogger "AlphaPulse/pkg/logger"

	"github.com/google/uuid"
)

// PipelineConfig tunes the event flow.
type PipelineConfig struct {
	AlertThreshold float64 // |score| at or above this dispatches an alert
	ScoreJournal   int     // recent scores kept per ticker for the API
}

// Pipeline is the end-to-end path for one market event: dedup gate, market
// data resolution, signal derivation, aggregation, alert dispatch, and
// outcome registration.
//
// The dedup gate fails open: a broken dedup store degrades to possible
// duplicate alerts, never to dropped events.
type Pipeline struct {
	cfg        PipelineConfig
	dedup      repository.DedupStore
	resolver   *resolver.Resolver
	aggregator *Aggregator
	weights    repository.WeightStore
	publisher  repository.AlertPublisher
	tracker    *OutcomeTracker
	metrics    repository.Metrics
	log        *applogger.Logger

	mu      sync.Mutex
	journal map[string][]models.CompositeScore
}

func NewPipeline(
	cfg PipelineConfig,
	dedup repository.DedupStore,
	res *resolver.Resolver,
	aggregator *Aggregator,
	weights repository.WeightStore,
	publisher repository.AlertPublisher,
	tracker *OutcomeTracker,
	metrics repository.Metrics,
	log *applogger.Logger,
) *Pipeline {
	if cfg.AlertThreshold == 0 {
		cfg.AlertThreshold = 0.15
	}
	if cfg.ScoreJournal == 0 {
		cfg.ScoreJournal = 50
	}
	return &Pipeline{
		cfg:        cfg,
		dedup:      dedup,
		resolver:   res,
		aggregator: aggregator,
		weights:    weights,
		publisher:  publisher,
		tracker:    tracker,
		metrics:    metrics,
		log:        log,
		journal:    make(map[string][]models.CompositeScore),
	}
}

// Handle processes one event end to end. Errors are returned only for
// conditions a redelivery could fix; duplicates and unusable events consume
// the message silently.
func (p *Pipeline) Handle(ctx context.Context, event *models.Event) error {
	if !event.Valid() {
		p.metrics.RecordEvent("invalid")
		p.log.Warn("dropping invalid event", applogger.String("source", event.SourceID))
		return nil
	}

	gateHeld := false
	result, err := p.dedup.Register(ctx, event.CanonicalKey, event.ObservedAt)
	if err != nil {
		// fail open: duplicates are recoverable downstream, lost events are not
		p.metrics.RecordError("dedup_store")
		p.log.Error("dedup register failed, processing anyway",
			applogger.String("canonical_key", event.CanonicalKey),
			applogger.Error(err),
		)
	} else if result == repository.Duplicate {
		p.metrics.RecordEvent("duplicate")
		p.log.Debug("duplicate event suppressed",
			applogger.String("canonical_key", event.CanonicalKey),
			applogger.String("ticker", event.Ticker),
		)
		return nil
	} else {
		gateHeld = true
	}
	p.metrics.RecordEvent("accepted")

	market := p.resolveMarket(ctx, event.Ticker)
	signals := append(deriveSignals(market), event.Signals...)

	profile, err := p.weights.Active(ctx)
	if err != nil {
		p.metrics.RecordError("weight_store")
		p.log.Error("active weight profile unavailable, using defaults", applogger.Error(err))
		profile = models.NewWeightProfile()
	}

	score := p.aggregator.Aggregate(event.Ticker, signals, profile)
	p.recordScore(event.Ticker, score)

	if score.Indeterminate() {
		p.metrics.RecordEvent("indeterminate")
		p.log.Info("no usable signals for event",
			applogger.String("canonical_key", event.CanonicalKey),
			applogger.String("ticker", event.Ticker),
		)
		return nil
	}
	if math.Abs(score.Value) < p.cfg.AlertThreshold {
		p.metrics.RecordEvent("below_threshold")
		return nil
	}

	alert := &models.Alert{
		AlertID:      uuid.NewString(),
		CanonicalKey: event.CanonicalKey,
		Ticker:       event.Ticker,
		Score:        score,
		CreatedAt:    time.Now(),
	}
	if err := p.publisher.Publish(ctx, alert); err != nil {
		p.metrics.RecordError("alert_publish")
		// Release the gate before asking for redelivery, or the retried
		// event would be suppressed as a duplicate and the alert lost.
		if gateHeld {
			if uerr := p.dedup.Unregister(ctx, event.CanonicalKey); uerr != nil {
				p.metrics.RecordError("dedup_store")
				p.log.Error("dedup release after failed publish",
					applogger.String("canonical_key", event.CanonicalKey),
					applogger.Error(uerr),
				)
			}
		}
		return err
	}
	p.metrics.RecordEvent("alerted")

	intraday := market[repository.ClassPriceIntraday]
	if intraday.OK() {
		p.tracker.Track(alert, score.Components, intraday.Datum.Price, intraday.Datum.Volume)
	} else {
		p.tracker.Track(alert, score.Components, 0, 0)
	}
	return nil
}

// resolveMarket fetches the market-data classes for a ticker in parallel
// through the resolver's bounded pool.
func (p *Pipeline) resolveMarket(ctx context.Context, ticker string) map[repository.DataClass]models.ProviderResult {
	classes := []repository.DataClass{
		repository.ClassPriceIntraday,
		repository.ClassPriceDaily,
		repository.ClassSentiment,
	}
	reqs := make([]resolver.Request, len(classes))
	for i, c := range classes {
		reqs[i] = resolver.Request{Subject: ticker, Class: c}
	}
	results := p.resolver.ResolveAll(ctx, reqs)

	out := make(map[repository.DataClass]models.ProviderResult, len(classes))
	for i, c := range classes {
		out[c] = results[i]
	}
	return out
}

// deriveSignals turns resolved market data into aggregator inputs. An
// unavailable class simply contributes no signal.
func deriveSignals(market map[repository.DataClass]models.ProviderResult) []models.Signal {
	var signals []models.Signal

	intraday := market[repository.ClassPriceIntraday]
	daily := market[repository.ClassPriceDaily]

	if intraday.OK() && daily.OK() && daily.Datum.Price > 0 {
		// momentum: intraday move against the last daily close, squashed into
		// [-1, 1] with 5% mapping to saturation
		movePct := (intraday.Datum.Price - daily.Datum.Price) / daily.Datum.Price * 100
		signals = append(signals, models.Signal{
			Name:       "price_momentum",
			Value:      squash(movePct / 5),
			Confidence: math.Min(intraday.Confidence, daily.Confidence),
		})

		if daily.Datum.Volume > 0 && intraday.Datum.Volume > 0 {
			// volume surge: today's volume relative to the daily baseline,
			// positive only; quiet tape is not a bearish signal
			ratio := intraday.Datum.Volume / daily.Datum.Volume
			if ratio > 1 {
				signals = append(signals, models.Signal{
					Name:       "volume_surge",
					Value:      squash((ratio - 1) / 2),
					Confidence: math.Min(intraday.Confidence, daily.Confidence),
				})
			}
		}
	}

	if sentiment := market[repository.ClassSentiment]; sentiment.OK() {
		score := sentiment.Datum.Field("score", 0)
		if score < -1 {
			score = -1
		} else if score > 1 {
			score = 1
		}
		signals = append(signals, models.Signal{
			Name:       "news_sentiment",
			Value:      score,
			Confidence: sentiment.Confidence,
			SampleSize: int(sentiment.Datum.Field("articles", 0)),
		})
	}

	return signals
}

// squash maps an unbounded ratio into (-1, 1) monotonically.
func squash(x float64) float64 {
	return math.Tanh(x)
}

func (p *Pipeline) recordScore(ticker string, score models.CompositeScore) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j := append(p.journal[ticker], score)
	if len(j) > p.cfg.ScoreJournal {
		j = j[len(j)-p.cfg.ScoreJournal:]
	}
	p.journal[ticker] = j
}

// RecentScores returns up to limit of the newest composite scores for a
// ticker, newest first.
func (p *Pipeline) RecentScores(ticker string, limit int) []models.CompositeScore {
	p.mu.Lock()
	defer p.mu.Unlock()
	j := p.journal[ticker]
	if limit <= 0 || limit > len(j) {
		limit = len(j)
	}
	out := make([]models.CompositeScore, 0, limit)
	for i := len(j) - 1; i >= len(j)-limit; i-- {
		out = append(out, j[i])
	}
	return out
}
