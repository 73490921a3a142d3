package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"
	applogger "AlphaPulse/pkg/logger"
)

// TrackerConfig tunes outcome evaluation.
type TrackerConfig struct {
	Intervals     []models.Interval
	SampleGrace   time.Duration // how long to wait for a reported sample past the deadline
	PriceWeight   float64
	VolumeWeight  float64
	WinThreshold  float64
	LossThreshold float64
}

// priceSource is the slice of the resolver used for fallback sampling when no
// price was reported in time.
type priceSource interface {
	Resolve(ctx context.Context, subject string, class repository.DataClass) models.ProviderResult
}

type observation struct {
	price  float64
	volume float64
	at     time.Time
}

type trackedAlert struct {
	alert      *models.Alert
	snapshot   []models.Signal
	basePrice  float64
	baseVolume float64
	createdAt  time.Time

	samples   map[models.Interval]observation
	finalized map[models.Interval]bool
}

// OutcomeTracker evaluates dispatched alerts at fixed horizons. An outcome is
// keyed by (alert_id, interval): re-evaluating the same pair overwrites the
// earlier record instead of appending a second one, so late or repeated price
// samples are safe.
type OutcomeTracker struct {
	cfg     TrackerConfig
	outlog  repository.OutcomeLog
	prices  priceSource // may be nil: no fallback sampling
	metrics repository.Metrics
	log     *applogger.Logger

	mu      sync.Mutex
	pending map[string]*trackedAlert
}

func NewOutcomeTracker(cfg TrackerConfig, outlog repository.OutcomeLog, prices priceSource, metrics repository.Metrics, log *applogger.Logger) *OutcomeTracker {
	if len(cfg.Intervals) == 0 {
		cfg.Intervals = models.DefaultIntervals
	}
	if cfg.SampleGrace == 0 {
		cfg.SampleGrace = 5 * time.Minute
	}
	if cfg.PriceWeight == 0 {
		cfg.PriceWeight = 1.0
	}
	if cfg.WinThreshold == 0 {
		cfg.WinThreshold = 0.75
	}
	if cfg.LossThreshold == 0 {
		cfg.LossThreshold = -0.75
	}
	return &OutcomeTracker{
		cfg:     cfg,
		outlog:  outlog,
		prices:  prices,
		metrics: metrics,
		log:     log,
		pending: make(map[string]*trackedAlert),
	}
}

// Track registers a dispatched alert for outcome evaluation. basePrice and
// baseVolume anchor the change percentages; a zero basePrice means the alert
// cannot be evaluated and is skipped.
func (t *OutcomeTracker) Track(alert *models.Alert, snapshot []models.Signal, basePrice, baseVolume float64) {
	if basePrice == 0 {
		t.log.Warn("alert not trackable, no baseline price",
			applogger.String("alert_id", alert.AlertID),
			applogger.String("ticker", alert.Ticker),
		)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[alert.AlertID] = &trackedAlert{
		alert:      alert,
		snapshot:   snapshot,
		basePrice:  basePrice,
		baseVolume: baseVolume,
		createdAt:  alert.CreatedAt,
		samples:    make(map[models.Interval]observation),
		finalized:  make(map[models.Interval]bool),
	}
}

// ReportPriceSample attaches an observed price to one (alert, interval). A
// repeat report overwrites the previous sample; if the interval was already
// finalized the outcome is recomputed and re-recorded with the new sample.
func (t *OutcomeTracker) ReportPriceSample(ctx context.Context, alertID string, interval models.Interval, price, volume float64) error {
	if !interval.Valid() {
		return fmt.Errorf("unknown interval %q", interval)
	}

	t.mu.Lock()
	ta, ok := t.pending[alertID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("alert %s not tracked", alertID)
	}
	ta.samples[interval] = observation{price: price, volume: volume, at: time.Now()}
	refinalize := ta.finalized[interval]
	t.mu.Unlock()

	if refinalize {
		return t.finalize(ctx, ta, interval)
	}
	return nil
}

// Poll finalizes every (alert, interval) whose horizon has elapsed. Intervals
// with a reported sample finalize immediately; the rest wait out the grace
// window and then fall back to the resolver's daily price, if available.
// Fully evaluated alerts leave the pending set.
func (t *OutcomeTracker) Poll(ctx context.Context) {
	now := time.Now()

	t.mu.Lock()
	type job struct {
		ta       *trackedAlert
		interval models.Interval
		fallback bool
	}
	var jobs []job
	for _, ta := range t.pending {
		for _, iv := range t.cfg.Intervals {
			if ta.finalized[iv] {
				continue
			}
			deadline := ta.createdAt.Add(iv.Duration())
			if now.Before(deadline) {
				continue
			}
			if _, sampled := ta.samples[iv]; sampled {
				jobs = append(jobs, job{ta: ta, interval: iv})
			} else if now.After(deadline.Add(t.cfg.SampleGrace)) {
				jobs = append(jobs, job{ta: ta, interval: iv, fallback: true})
			}
		}
	}
	t.mu.Unlock()

	for _, j := range jobs {
		if j.fallback {
			if !t.sampleFromResolver(ctx, j.ta, j.interval) {
				continue
			}
		}
		if err := t.finalize(ctx, j.ta, j.interval); err != nil {
			t.log.Error("finalize outcome",
				applogger.String("alert_id", j.ta.alert.AlertID),
				applogger.String("interval", string(j.interval)),
				applogger.Error(err),
			)
		}
	}

	t.sweepCompleted()
}

func (t *OutcomeTracker) sampleFromResolver(ctx context.Context, ta *trackedAlert, interval models.Interval) bool {
	if t.prices == nil {
		// no fallback source: drop the interval so the alert can complete
		t.mu.Lock()
		ta.finalized[interval] = true
		t.mu.Unlock()
		return false
	}
	res := t.prices.Resolve(ctx, ta.alert.Ticker, repository.ClassPriceIntraday)
	if !res.OK() {
		return false
	}
	t.mu.Lock()
	ta.samples[interval] = observation{price: res.Datum.Price, volume: res.Datum.Volume, at: time.Now()}
	t.mu.Unlock()
	return true
}

func (t *OutcomeTracker) finalize(ctx context.Context, ta *trackedAlert, interval models.Interval) error {
	t.mu.Lock()
	obs, ok := ta.samples[interval]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("no sample for %s/%s", ta.alert.AlertID, interval)
	}
	ta.finalized[interval] = true
	t.mu.Unlock()

	priceChange := pctChange(ta.basePrice, obs.price)
	volumeChange := pctChange(ta.baseVolume, obs.volume)
	label := t.classify(ta.alert.Score.Value, priceChange, volumeChange)

	o := &models.Outcome{
		AlertID:         ta.alert.AlertID,
		Ticker:          ta.alert.Ticker,
		Interval:        interval,
		SignalSnapshot:  ta.snapshot,
		PriceChangePct:  priceChange,
		VolumeChangePct: volumeChange,
		ScoreValue:      ta.alert.Score.Value,
		Label:           label,
		RecordedAt:      time.Now(),
	}
	if err := t.outlog.Record(ctx, o); err != nil {
		// undo so the next poll retries
		t.mu.Lock()
		ta.finalized[interval] = false
		t.mu.Unlock()
		return err
	}
	t.metrics.RecordOutcome(string(label))
	return nil
}

// classify scores the realized move against the alert's direction. A bearish
// alert wins on a drop, so the combined change is sign-adjusted before
// comparing against the thresholds.
func (t *OutcomeTracker) classify(scoreValue, priceChangePct, volumeChangePct float64) models.OutcomeLabel {
	combined := t.cfg.PriceWeight*priceChangePct + t.cfg.VolumeWeight*volumeChangePct
	if scoreValue < 0 {
		combined = -combined
	}
	switch {
	case combined >= t.cfg.WinThreshold:
		return models.OutcomeWin
	case combined <= t.cfg.LossThreshold:
		return models.OutcomeLoss
	default:
		return models.OutcomeNeutral
	}
}

func (t *OutcomeTracker) sweepCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ta := range t.pending {
		done := true
		for _, iv := range t.cfg.Intervals {
			if !ta.finalized[iv] {
				done = false
				break
			}
		}
		if done {
			delete(t.pending, id)
		}
	}
}

// PendingCount reports how many alerts still await evaluation.
func (t *OutcomeTracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func pctChange(base, current float64) float64 {
	if base == 0 {
		return 0
	}
	return (current - base) / base * 100
}
