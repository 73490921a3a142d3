package usecase

import (
	"math"

	"AlphaPulse/internal/domain/models"
)

// AggregatorConfig tunes composite scoring.
type AggregatorConfig struct {
	DefaultWeight    float64 // weight for signals the profile has not learned
	BullishThreshold float64
	BearishThreshold float64
}

// Aggregator folds the usable signals of an event into one composite score
// under the active weight profile.
//
// The score is the confidence-weighted mean sum(w*c*v) / sum(w*c): a signal's
// influence scales with both its learned weight and how sure its producer
// was. Dropping an unusable signal renormalizes the rest rather than diluting
// the score, so a single surviving signal at full confidence reproduces its
// own value exactly.
type Aggregator struct {
	cfg     AggregatorConfig
	metrics compositeRecorder
}

// compositeRecorder is the slice of the metrics surface the aggregator needs;
// repository.Metrics satisfies it.
type compositeRecorder interface {
	RecordComposite(ticker string, value float64)
}

type noopSink struct{}

func (noopSink) RecordComposite(string, float64) {}

// NewAggregator builds an aggregator. sink may be nil.
func NewAggregator(cfg AggregatorConfig, sink compositeRecorder) *Aggregator {
	if cfg.DefaultWeight <= 0 {
		cfg.DefaultWeight = 1.0
	}
	if cfg.BullishThreshold == 0 {
		cfg.BullishThreshold = 0.15
	}
	if cfg.BearishThreshold == 0 {
		cfg.BearishThreshold = -0.15
	}
	if sink == nil {
		sink = noopSink{}
	}
	return &Aggregator{cfg: cfg, metrics: sink}
}

// usable filters out signals that cannot legally contribute: a confidence or
// weight of zero means zero influence, and out-of-range values indicate a
// broken producer.
func usable(s models.Signal) bool {
	if s.Confidence <= 0 || s.Confidence > 1 {
		return false
	}
	if s.Weight < 0 {
		return false
	}
	if math.IsNaN(s.Value) || s.Value < -1 || s.Value > 1 {
		return false
	}
	return true
}

// Aggregate computes the composite score for signals under profile. The
// result is deterministic for identical inputs. With no usable signals the
// score is the Indeterminate sentinel, never a fabricated neutral zero.
func (a *Aggregator) Aggregate(ticker string, signals []models.Signal, profile *models.WeightProfile) models.CompositeScore {
	var (
		num        float64
		den        float64
		components []models.Signal
	)

	for _, s := range signals {
		if !usable(s) {
			continue
		}
		// The learned profile outranks whatever weight the producer carried:
		// adjuster commits must reach every signal, including upstream
		// classifier signals that arrive pre-weighted. The carried weight
		// only applies while the profile has not learned the signal yet.
		w := s.Weight
		if e, ok := profile.Lookup(s.Name); ok {
			w = e.Weight
		} else if w == 0 {
			w = a.cfg.DefaultWeight
		}
		if w == 0 {
			continue
		}
		contribution := w * s.Confidence
		num += contribution * s.Value
		den += contribution

		applied := s
		applied.Weight = w
		components = append(components, applied)
	}

	version := uint64(0)
	if profile != nil {
		version = profile.Version
	}

	if den == 0 {
		return models.CompositeScore{
			Label:          models.LabelIndeterminate,
			ProfileVersion: version,
		}
	}

	value := num / den
	// clamp guards float drift at the boundaries
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}

	score := models.CompositeScore{
		Value:          value,
		Label:          a.label(value),
		Components:     components,
		ProfileVersion: version,
	}
	a.metrics.RecordComposite(ticker, value)
	return score
}

func (a *Aggregator) label(value float64) models.ScoreLabel {
	switch {
	case value >= a.cfg.BullishThreshold:
		return models.LabelBullish
	case value <= a.cfg.BearishThreshold:
		return models.LabelBearish
	default:
		return models.LabelNeutral
	}
}
