package usecase

import (
	"context"
	"testing"
	"time"

	"AlphaPulse/internal/domain/models"
	applogger "AlphaPulse/pkg/logger"
)

func newTestTracker(outlog *memOutcomeLog) *OutcomeTracker {
	return NewOutcomeTracker(TrackerConfig{
		Intervals:     []models.Interval{models.Interval15m, models.Interval1h},
		SampleGrace:   5 * time.Minute,
		PriceWeight:   1.0,
		VolumeWeight:  0.25,
		WinThreshold:  0.75,
		LossThreshold: -0.75,
	}, outlog, nil, nopMetrics{}, applogger.Nop())
}

func trackedTestAlert(id string, scoreValue float64, age time.Duration) *models.Alert {
	return &models.Alert{
		AlertID:   id,
		Ticker:    "AAPL",
		Score:     models.CompositeScore{Value: scoreValue, Label: models.LabelBullish},
		CreatedAt: time.Now().Add(-age),
	}
}

func TestClassify(t *testing.T) {
	tr := newTestTracker(newMemOutcomeLog())

	cases := []struct {
		name      string
		score     float64
		pricePct  float64
		volumePct float64
		want      models.OutcomeLabel
	}{
		{"bullish alert, price up", 0.5, 2.0, 0, models.OutcomeWin},
		{"bullish alert, price down", 0.5, -2.0, 0, models.OutcomeLoss},
		{"bullish alert, flat", 0.5, 0.1, 0, models.OutcomeNeutral},
		{"bearish alert, price down", -0.5, -2.0, 0, models.OutcomeWin},
		{"bearish alert, price up", -0.5, 2.0, 0, models.OutcomeLoss},
		{"volume pushes over threshold", 0.5, 0.5, 1.5, models.OutcomeWin}, // 0.5 + 0.25*1.5 = 0.875
	}
	for _, tc := range cases {
		if got := tr.classify(tc.score, tc.pricePct, tc.volumePct); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestPollFinalizesElapsedInterval(t *testing.T) {
	outlog := newMemOutcomeLog()
	tr := newTestTracker(outlog)
	alert := trackedTestAlert("a1", 0.5, 20*time.Minute) // 15m elapsed, 1h not

	tr.Track(alert, []models.Signal{{Name: "price_momentum", Value: 0.5, Weight: 1.0, Confidence: 1.0}}, 100, 1000)
	if err := tr.ReportPriceSample(context.Background(), "a1", models.Interval15m, 102, 1000); err != nil {
		t.Fatalf("report sample: %v", err)
	}

	tr.Poll(context.Background())

	o := outlog.get("a1", models.Interval15m)
	if o == nil {
		t.Fatalf("expected recorded outcome for 15m")
	}
	if o.Label != models.OutcomeWin {
		t.Fatalf("2%% move on a bullish alert is a win, got %s", o.Label)
	}
	if o.PriceChangePct != 2.0 {
		t.Fatalf("expected 2.0%% price change, got %v", o.PriceChangePct)
	}
	if outlog.get("a1", models.Interval1h) != nil {
		t.Fatalf("1h interval must not finalize early")
	}
	if tr.PendingCount() != 1 {
		t.Fatalf("alert must stay pending until every interval finalizes")
	}
}

func TestRepeatSampleOverwrites(t *testing.T) {
	outlog := newMemOutcomeLog()
	tr := newTestTracker(outlog)
	alert := trackedTestAlert("a2", 0.5, 20*time.Minute)

	tr.Track(alert, nil, 100, 1000)
	if err := tr.ReportPriceSample(context.Background(), "a2", models.Interval15m, 102, 1000); err != nil {
		t.Fatalf("report sample: %v", err)
	}
	tr.Poll(context.Background())

	first := outlog.get("a2", models.Interval15m)
	if first == nil || first.Label != models.OutcomeWin {
		t.Fatalf("expected win after first sample")
	}

	// corrected sample arrives late: same (alert, interval), new value
	if err := tr.ReportPriceSample(context.Background(), "a2", models.Interval15m, 98, 1000); err != nil {
		t.Fatalf("repeat sample: %v", err)
	}

	second := outlog.get("a2", models.Interval15m)
	if second.Label != models.OutcomeLoss {
		t.Fatalf("re-recorded outcome must reflect the new sample, got %s", second.Label)
	}
	if second.PriceChangePct != -2.0 {
		t.Fatalf("expected -2.0%% price change, got %v", second.PriceChangePct)
	}
}

func TestUntrackedAlertRejected(t *testing.T) {
	tr := newTestTracker(newMemOutcomeLog())
	if err := tr.ReportPriceSample(context.Background(), "ghost", models.Interval15m, 100, 0); err == nil {
		t.Fatalf("expected error for unknown alert")
	}
	if err := tr.ReportPriceSample(context.Background(), "ghost", "3m", 100, 0); err == nil {
		t.Fatalf("expected error for unknown interval")
	}
}

func TestZeroBaselineNotTracked(t *testing.T) {
	tr := newTestTracker(newMemOutcomeLog())
	tr.Track(trackedTestAlert("a3", 0.5, 0), nil, 0, 0)
	if tr.PendingCount() != 0 {
		t.Fatalf("alert without baseline price must not be tracked")
	}
}
