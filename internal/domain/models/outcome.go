package models

import "time"

// Interval is one of the fixed horizons an alert is evaluated at.
type Interval string

const (
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// DefaultIntervals is the standard evaluation ladder.
var DefaultIntervals = []Interval{Interval15m, Interval1h, Interval4h, Interval1d}

var intervalDurations = map[Interval]time.Duration{
	Interval15m: 15 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
}

// Duration returns the elapsed-time horizon for the interval, or 0 for an
// unknown interval.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// Valid reports whether i is a known interval.
func (i Interval) Valid() bool {
	_, ok := intervalDurations[i]
	return ok
}

// OutcomeLabel is the realized classification of an alert at an interval.
type OutcomeLabel string

const (
	OutcomeWin     OutcomeLabel = "win"
	OutcomeLoss    OutcomeLabel = "loss"
	OutcomeNeutral OutcomeLabel = "neutral"
)

// Outcome records realized price/volume behavior after an alert. Created once
// per (alert_id, interval); a re-record with the same key overwrites rather
// than duplicates. Immutable once finalized.
type Outcome struct {
	AlertID         string       `json:"alert_id"`
	Ticker          string       `json:"ticker"`
	Interval        Interval     `json:"interval"`
	SignalSnapshot  []Signal     `json:"signal_snapshot"`
	PriceChangePct  float64      `json:"price_change_pct"`
	VolumeChangePct float64      `json:"volume_change_pct"`
	ScoreValue      float64      `json:"score_value"`
	Label           OutcomeLabel `json:"label"`
	RecordedAt      time.Time    `json:"recorded_at"`
}

// Alert is a dispatched composite score, the unit outcomes attach to.
type Alert struct {
	AlertID      string         `json:"alert_id"`
	CanonicalKey string         `json:"canonical_key"`
	Ticker       string         `json:"ticker"`
	Score        CompositeScore `json:"score"`
	CreatedAt    time.Time      `json:"created_at"`
}
