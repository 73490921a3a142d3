package usecase

import (
	"context"
	"testing"
	"time"

	"AlphaPulse/internal/domain/models"
	applogger "AlphaPulse/pkg/logger"
)

func newTestAdjuster(outlog *memOutcomeLog, store *memWeightStore, mode string) *WeightAdjuster {
	return NewWeightAdjuster(AdjusterConfig{
		Mode:            mode,
		Lookback:        14 * 24 * time.Hour,
		MinSamples:      20,
		MinWeight:       0.5,
		MaxWeight:       2.0,
		MaxDelta:        0.2,
		Sensitivity:     1.0,
		BaselineWinRate: 0.5,
		DefaultWeight:   1.0,
	}, outlog, store, nopMetrics{}, applogger.Nop())
}

func seedOutcomes(outlog *memOutcomeLog, signal string, wins, losses int) {
	label := func(i int) models.OutcomeLabel {
		if i < wins {
			return models.OutcomeWin
		}
		return models.OutcomeLoss
	}
	for i := 0; i < wins+losses; i++ {
		_ = outlog.Record(context.Background(), &models.Outcome{
			AlertID:        "alert-" + signal + "-" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Ticker:         "AAPL",
			Interval:       models.Interval1h,
			SignalSnapshot: []models.Signal{{Name: signal, Value: 0.5, Weight: 1.0, Confidence: 1.0}},
			PriceChangePct: 1.0,
			Label:          label(i),
			RecordedAt:     time.Now().Add(-time.Hour),
		})
	}
}

func TestRecomputeBelowSampleFloorNoChange(t *testing.T) {
	outlog := newMemOutcomeLog()
	store := newMemWeightStore()
	seedOutcomes(outlog, "news_sentiment", 4, 1) // 5 samples, under the floor of 20

	recs, err := newTestAdjuster(outlog, store, "manual").Recompute(context.Background())
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no recommendations below sample floor, got %d", len(recs))
	}
}

func TestRecomputeWinningSignalGainsWeight(t *testing.T) {
	outlog := newMemOutcomeLog()
	store := newMemWeightStore()
	seedOutcomes(outlog, "price_momentum", 35, 15) // 50 samples, 70% win rate

	recs, err := newTestAdjuster(outlog, store, "manual").Recompute(context.Background())
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Proposed <= rec.Current {
		t.Fatalf("70%% win rate must raise the weight: current %v proposed %v", rec.Current, rec.Proposed)
	}
	if rec.Proposed-rec.Current > 0.2+1e-9 {
		t.Fatalf("delta exceeds cap: %v", rec.Proposed-rec.Current)
	}
	if rec.SampleSize != 50 {
		t.Fatalf("expected 50 samples, got %d", rec.SampleSize)
	}
	if rec.LowerBound >= rec.UpperBound {
		t.Fatalf("bad confidence interval [%v, %v]", rec.LowerBound, rec.UpperBound)
	}
}

func TestRecomputeLosingSignalLosesWeight(t *testing.T) {
	outlog := newMemOutcomeLog()
	store := newMemWeightStore()
	seedOutcomes(outlog, "volume_surge", 10, 40) // 20% win rate

	recs, err := newTestAdjuster(outlog, store, "manual").Recompute(context.Background())
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Proposed >= recs[0].Current {
		t.Fatalf("20%% win rate must lower the weight: current %v proposed %v", recs[0].Current, recs[0].Proposed)
	}
	if recs[0].Proposed < 0.5 {
		t.Fatalf("weight below floor: %v", recs[0].Proposed)
	}
}

func TestManualModeHoldsUntilApproved(t *testing.T) {
	outlog := newMemOutcomeLog()
	store := newMemWeightStore()
	seedOutcomes(outlog, "price_momentum", 35, 15)
	adj := newTestAdjuster(outlog, store, "manual")

	adj.Run(context.Background())

	active, err := store.Active(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.Version != 0 {
		t.Fatalf("manual mode must not commit on recompute, got version %d", active.Version)
	}
	if len(adj.Pending()) != 1 {
		t.Fatalf("expected pending recommendation")
	}

	p, err := adj.Approve(context.Background(), "reviewed")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if p.Version != 1 {
		t.Fatalf("expected version 1 after approval, got %d", p.Version)
	}
	if len(adj.Pending()) != 0 {
		t.Fatalf("pending must clear after approval")
	}
}

func TestAutoModeCommitsOnRun(t *testing.T) {
	outlog := newMemOutcomeLog()
	store := newMemWeightStore()
	seedOutcomes(outlog, "price_momentum", 35, 15)
	adj := newTestAdjuster(outlog, store, "auto")

	adj.Run(context.Background())

	active, err := store.Active(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.Version != 1 {
		t.Fatalf("auto mode must commit on run, got version %d", active.Version)
	}
	entry, ok := active.Weights["price_momentum"]
	if !ok {
		t.Fatalf("committed profile missing signal entry")
	}
	if entry.Weight <= 1.0 {
		t.Fatalf("expected weight above default, got %v", entry.Weight)
	}
}

func TestWilsonIntervalNarrowsWithSamples(t *testing.T) {
	l10, u10 := wilsonInterval(7, 10)
	l1000, u1000 := wilsonInterval(700, 1000)
	if (u1000 - l1000) >= (u10 - l10) {
		t.Fatalf("interval must narrow with more samples: n=10 width %v, n=1000 width %v", u10-l10, u1000-l1000)
	}
	if l1000 > 0.7 || u1000 < 0.7 {
		t.Fatalf("interval must contain the point estimate: [%v, %v]", l1000, u1000)
	}
}
