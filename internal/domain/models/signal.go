package models

// Signal is one scored, weighted input to the composite decision. Producers
// are either the resolver (market-data-derived) or upstream classifiers; the
// aggregator treats both uniformly.
type Signal struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`      // [-1, 1]
	Weight     float64 `json:"weight"`     // >= 0
	Confidence float64 `json:"confidence"` // [0, 1]
	SampleSize int     `json:"sample_size"`
}

// ScoreLabel classifies a composite score.
type ScoreLabel string

const (
	LabelBullish       ScoreLabel = "bullish"
	LabelNeutral       ScoreLabel = "neutral"
	LabelBearish       ScoreLabel = "bearish"
	LabelIndeterminate ScoreLabel = "indeterminate"
)

// CompositeScore is the single aggregated decision value for one event.
// Value is a pure function of Components and the profile version used; no
// hidden state contributes.
type CompositeScore struct {
	Value          float64    `json:"value"` // [-1, 1]
	Label          ScoreLabel `json:"label"`
	Components     []Signal   `json:"components"`
	ProfileVersion uint64     `json:"profile_version"`
}

// Indeterminate reports whether too few usable signals were present to
// produce a meaningful score.
func (c CompositeScore) Indeterminate() bool {
	return c.Label == LabelIndeterminate
}
