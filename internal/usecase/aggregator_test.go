package usecase

import (
	"math"
	"testing"

	"AlphaPulse/internal/domain/models"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(AggregatorConfig{
		DefaultWeight:    1.0,
		BullishThreshold: 0.15,
		BearishThreshold: -0.15,
	}, nil)
}

func TestAggregateWeightedMean(t *testing.T) {
	agg := newTestAggregator()
	signals := []models.Signal{
		{Name: "a", Value: 1.0, Weight: 1.0, Confidence: 1.0},
		{Name: "b", Value: -1.0, Weight: 1.0, Confidence: 0.5},
	}

	score := agg.Aggregate("AAPL", signals, models.NewWeightProfile())
	// (1*1*1 + 1*0.5*-1) / (1 + 0.5) = 0.5/1.5
	want := 1.0 / 3.0
	if math.Abs(score.Value-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, score.Value)
	}
	if score.Label != models.LabelBullish {
		t.Fatalf("expected bullish, got %s", score.Label)
	}
}

func TestAggregateRenormalizesOnDrop(t *testing.T) {
	agg := newTestAggregator()
	signals := []models.Signal{
		{Name: "good", Value: 0.8, Weight: 1.0, Confidence: 1.0},
		{Name: "dead", Value: 0.2, Weight: 1.0, Confidence: 0},    // zero confidence
		{Name: "broken", Value: 3.0, Weight: 1.0, Confidence: 1.0}, // out of range
	}

	score := agg.Aggregate("AAPL", signals, models.NewWeightProfile())
	if math.Abs(score.Value-0.8) > 1e-9 {
		t.Fatalf("dropped signals must not dilute: expected 0.8, got %v", score.Value)
	}
	if len(score.Components) != 1 {
		t.Fatalf("expected 1 component, got %d", len(score.Components))
	}
}

func TestAggregateSingleDominantSignal(t *testing.T) {
	agg := newTestAggregator()
	score := agg.Aggregate("AAPL", []models.Signal{
		{Name: "only", Value: -0.63, Weight: 2.0, Confidence: 1.0},
	}, models.NewWeightProfile())

	if score.Value != -0.63 {
		t.Fatalf("single signal must reproduce its value exactly, got %v", score.Value)
	}
	if score.Label != models.LabelBearish {
		t.Fatalf("expected bearish, got %s", score.Label)
	}
}

func TestAggregateIndeterminate(t *testing.T) {
	agg := newTestAggregator()

	score := agg.Aggregate("AAPL", nil, models.NewWeightProfile())
	if !score.Indeterminate() {
		t.Fatalf("expected indeterminate for no signals")
	}
	if score.Value != 0 {
		t.Fatalf("indeterminate score must carry zero value")
	}

	score = agg.Aggregate("AAPL", []models.Signal{
		{Name: "dead", Value: 0.5, Weight: 1.0, Confidence: 0},
	}, models.NewWeightProfile())
	if !score.Indeterminate() {
		t.Fatalf("expected indeterminate when every signal is unusable")
	}
}

func TestAggregateUsesProfileWeights(t *testing.T) {
	agg := newTestAggregator()
	profile := models.NewWeightProfile()
	profile.Weights["a"] = models.WeightEntry{Weight: 2.0}

	signals := []models.Signal{
		{Name: "a", Value: 1.0, Confidence: 1.0},  // profile weight 2.0
		{Name: "b", Value: -1.0, Confidence: 1.0}, // default weight 1.0
	}
	score := agg.Aggregate("AAPL", signals, profile)
	want := (2.0 - 1.0) / 3.0
	if math.Abs(score.Value-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, score.Value)
	}
}

func TestAggregateProfileOverridesCarriedWeight(t *testing.T) {
	agg := newTestAggregator()
	profile := models.NewWeightProfile()
	profile.Weights["llm_sentiment"] = models.WeightEntry{Weight: 2.0}

	// upstream classifiers attach their own weight; once the profile has
	// learned the signal, the committed weight must win
	signals := []models.Signal{
		{Name: "llm_sentiment", Value: 1.0, Weight: 1.0, Confidence: 1.0},
		{Name: "price_momentum", Value: -1.0, Weight: 1.0, Confidence: 1.0},
	}
	score := agg.Aggregate("AAPL", signals, profile)
	want := (2.0 - 1.0) / 3.0
	if math.Abs(score.Value-want) > 1e-9 {
		t.Fatalf("profile weight must apply to pre-weighted signals: got %v want %v", score.Value, want)
	}
	if score.Components[0].Weight != 2.0 {
		t.Fatalf("component must carry the applied weight, got %v", score.Components[0].Weight)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	agg := newTestAggregator()
	signals := []models.Signal{
		{Name: "a", Value: 0.4, Weight: 1.3, Confidence: 0.7},
		{Name: "b", Value: -0.2, Weight: 0.8, Confidence: 0.9},
		{Name: "c", Value: 0.9, Weight: 1.9, Confidence: 0.3},
	}
	profile := models.NewWeightProfile()

	first := agg.Aggregate("AAPL", signals, profile)
	for i := 0; i < 10; i++ {
		again := agg.Aggregate("AAPL", signals, profile)
		if again.Value != first.Value || again.Label != first.Label {
			t.Fatalf("aggregation not deterministic: %v vs %v", again, first)
		}
	}
}

func TestAggregateClampsBounds(t *testing.T) {
	agg := newTestAggregator()
	score := agg.Aggregate("AAPL", []models.Signal{
		{Name: "a", Value: 1.0, Weight: 1.0, Confidence: 1.0},
		{Name: "b", Value: 1.0, Weight: 3.0, Confidence: 1.0},
	}, models.NewWeightProfile())
	if score.Value > 1 || score.Value < -1 {
		t.Fatalf("score out of bounds: %v", score.Value)
	}
}
