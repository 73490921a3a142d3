package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"
	applogger "AlphaPulse/pkg/logger"
)

// AdjusterConfig tunes adaptive weight learning.
type AdjusterConfig struct {
	Mode            string // "manual": recommendations await approval; "auto": committed on recompute
	Lookback        time.Duration
	MinSamples      int // below this a signal's weight never moves
	MinWeight       float64
	MaxWeight       float64
	MaxDelta        float64 // per-recompute change cap
	Sensitivity     float64
	BaselineWinRate float64
	DefaultWeight   float64
}

// WeightAdjuster turns realized outcomes into weight recommendations and, in
// auto mode, committed profile versions. Each adjustment step is bounded: a
// signal's weight moves at most MaxDelta per recompute, scaled down further
// when the win-rate estimate is statistically loose.
type WeightAdjuster struct {
	cfg     AdjusterConfig
	outlog  repository.OutcomeLog
	store   repository.WeightStore
	metrics repository.Metrics
	log     *applogger.Logger

	mu      sync.Mutex
	pending []models.WeightRecommendation
}

func NewWeightAdjuster(cfg AdjusterConfig, outlog repository.OutcomeLog, store repository.WeightStore, metrics repository.Metrics, log *applogger.Logger) *WeightAdjuster {
	if cfg.Mode == "" {
		cfg.Mode = "manual"
	}
	if cfg.Lookback == 0 {
		cfg.Lookback = 14 * 24 * time.Hour
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = 20
	}
	if cfg.MinWeight == 0 {
		cfg.MinWeight = 0.5
	}
	if cfg.MaxWeight == 0 {
		cfg.MaxWeight = 2.0
	}
	if cfg.MaxDelta == 0 {
		cfg.MaxDelta = 0.2
	}
	if cfg.Sensitivity == 0 {
		cfg.Sensitivity = 1.0
	}
	if cfg.BaselineWinRate == 0 {
		cfg.BaselineWinRate = 0.5
	}
	if cfg.DefaultWeight == 0 {
		cfg.DefaultWeight = 1.0
	}
	return &WeightAdjuster{cfg: cfg, outlog: outlog, store: store, metrics: metrics, log: log}
}

type signalStats struct {
	samples    int
	wins       int
	sumPricePc float64
}

// Recompute derives per-signal recommendations from the lookback window.
// Signals below the sample floor produce no recommendation: with too little
// evidence the honest move is no move.
func (w *WeightAdjuster) Recompute(ctx context.Context) ([]models.WeightRecommendation, error) {
	now := time.Now()
	outcomes, err := w.outlog.Window(ctx, now.Add(-w.cfg.Lookback), now)
	if err != nil {
		return nil, fmt.Errorf("adjuster window: %w", err)
	}

	stats := make(map[string]*signalStats)
	for _, o := range outcomes {
		for _, s := range o.SignalSnapshot {
			st, ok := stats[s.Name]
			if !ok {
				st = &signalStats{}
				stats[s.Name] = st
			}
			st.samples++
			if o.Label == models.OutcomeWin {
				st.wins++
			}
			st.sumPricePc += o.PriceChangePct
		}
	}

	active, err := w.store.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("adjuster active profile: %w", err)
	}

	var recs []models.WeightRecommendation
	for name, st := range stats {
		if st.samples < w.cfg.MinSamples {
			w.log.Debug("signal below sample floor",
				applogger.String("signal", name),
				applogger.Int("samples", st.samples),
				applogger.Int("floor", w.cfg.MinSamples),
			)
			continue
		}

		winRate := float64(st.wins) / float64(st.samples)
		lower, upper := wilsonInterval(st.wins, st.samples)

		// A wide confidence interval means a noisy estimate; scale the step
		// toward zero accordingly.
		confScale := 1 - (upper - lower)
		if confScale < 0 {
			confScale = 0
		}

		current := active.WeightFor(name, w.cfg.DefaultWeight)
		delta := w.cfg.Sensitivity * (winRate - w.cfg.BaselineWinRate) * confScale
		if delta > w.cfg.MaxDelta {
			delta = w.cfg.MaxDelta
		} else if delta < -w.cfg.MaxDelta {
			delta = -w.cfg.MaxDelta
		}

		proposed := current + delta
		if proposed < w.cfg.MinWeight {
			proposed = w.cfg.MinWeight
		} else if proposed > w.cfg.MaxWeight {
			proposed = w.cfg.MaxWeight
		}

		recs = append(recs, models.WeightRecommendation{
			SignalName: name,
			Current:    current,
			Proposed:   proposed,
			WinRate:    winRate,
			MeanReturn: st.sumPricePc / float64(st.samples),
			LowerBound: lower,
			UpperBound: upper,
			SampleSize: st.samples,
			ComputedAt: now,
		})
	}

	w.mu.Lock()
	w.pending = recs
	w.mu.Unlock()
	return recs, nil
}

// Run is the scheduled entry point: recompute, then commit immediately in
// auto mode or hold for approval in manual mode.
func (w *WeightAdjuster) Run(ctx context.Context) {
	recs, err := w.Recompute(ctx)
	if err != nil {
		w.log.Error("weight recompute failed", applogger.Error(err))
		w.metrics.RecordError("weight_recompute")
		return
	}
	if len(recs) == 0 {
		w.log.Info("weight recompute produced no recommendations")
		return
	}

	if w.cfg.Mode == "auto" {
		if _, err := w.Apply(ctx, recs, "auto recompute"); err != nil {
			w.log.Error("auto weight apply failed", applogger.Error(err))
			w.metrics.RecordError("weight_apply")
		}
		return
	}
	w.log.Info("weight recommendations awaiting approval", applogger.Int("count", len(recs)))
}

// Apply commits recommendations as one new profile version. The previous
// version stays on record for rollback.
func (w *WeightAdjuster) Apply(ctx context.Context, recs []models.WeightRecommendation, note string) (*models.WeightProfile, error) {
	active, err := w.store.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("adjuster active profile: %w", err)
	}

	next := active.Clone()
	next.Note = note
	next.CreatedAt = time.Now()
	for _, rec := range recs {
		next.Weights[rec.SignalName] = models.WeightEntry{
			Weight:     rec.Proposed,
			LowerBound: rec.LowerBound,
			UpperBound: rec.UpperBound,
			SampleSize: rec.SampleSize,
			UpdatedAt:  rec.ComputedAt,
		}
	}

	version, err := w.store.Commit(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("adjuster commit: %w", err)
	}
	next.Version = version

	for name, entry := range next.Weights {
		w.metrics.RecordSignalWeight(name, entry.Weight)
	}

	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()
	return next, nil
}

// Pending returns the recommendations awaiting manual approval.
func (w *WeightAdjuster) Pending() []models.WeightRecommendation {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.WeightRecommendation, len(w.pending))
	copy(out, w.pending)
	return out
}

// Approve commits the held recommendations, manual mode's second step.
func (w *WeightAdjuster) Approve(ctx context.Context, note string) (*models.WeightProfile, error) {
	recs := w.Pending()
	if len(recs) == 0 {
		return nil, fmt.Errorf("no recommendations pending")
	}
	return w.Apply(ctx, recs, note)
}

// ActiveProfile exposes the committed active profile.
func (w *WeightAdjuster) ActiveProfile(ctx context.Context) (*models.WeightProfile, error) {
	return w.store.Active(ctx)
}

// Profile fetches one committed version.
func (w *WeightAdjuster) Profile(ctx context.Context, version uint64) (*models.WeightProfile, error) {
	return w.store.Version(ctx, version)
}

// Rollback re-activates the previous committed profile version.
func (w *WeightAdjuster) Rollback(ctx context.Context) (*models.WeightProfile, error) {
	p, err := w.store.Rollback(ctx)
	if err != nil {
		return nil, err
	}
	for name, entry := range p.Weights {
		w.metrics.RecordSignalWeight(name, entry.Weight)
	}
	return p, nil
}

// wilsonInterval is the Wilson score interval for a binomial proportion at
// 95% confidence. Preferred over the normal approximation because alert
// counts per signal are often small.
func wilsonInterval(wins, n int) (lower, upper float64) {
	if n == 0 {
		return 0, 1
	}
	const z = 1.96
	p := float64(wins) / float64(n)
	nf := float64(n)
	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	margin := (z / denom) * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf))
	lower = center - margin
	upper = center + margin
	if lower < 0 {
		lower = 0
	}
	if upper > 1 {
		upper = 1
	}
	return lower, upper
}
