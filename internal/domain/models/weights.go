package models

import "time"

// WeightEntry is the adaptive state for one signal name.
type WeightEntry struct {
	Weight     float64   `json:"weight"`
	LowerBound float64   `json:"lower_bound"` // win-rate confidence interval
	UpperBound float64   `json:"upper_bound"`
	SampleSize int       `json:"sample_size"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WeightProfile is the versioned mapping from signal name to influence
// weight. Only the weight adjuster produces new versions; readers only ever
// see a fully committed version.
type WeightProfile struct {
	Version   uint64                 `json:"version"`
	Weights   map[string]WeightEntry `json:"weights"`
	CreatedAt time.Time              `json:"created_at"`
	Note      string                 `json:"note,omitempty"`
}

// NewWeightProfile returns an empty, unversioned profile.
func NewWeightProfile() *WeightProfile {
	return &WeightProfile{Weights: make(map[string]WeightEntry)}
}

// WeightFor returns the committed weight for a signal name, or def for
// signals the profile has never seen.
func (p *WeightProfile) WeightFor(name string, def float64) float64 {
	if p == nil {
		return def
	}
	if e, ok := p.Weights[name]; ok {
		return e.Weight
	}
	return def
}

// Lookup returns the committed entry for a signal name, reporting whether the
// profile has learned it.
func (p *WeightProfile) Lookup(name string) (WeightEntry, bool) {
	if p == nil {
		return WeightEntry{}, false
	}
	e, ok := p.Weights[name]
	return e, ok
}

// Clone returns a deep copy so a new version can be built without mutating
// the committed one.
func (p *WeightProfile) Clone() *WeightProfile {
	c := &WeightProfile{
		Version:   p.Version,
		Weights:   make(map[string]WeightEntry, len(p.Weights)),
		CreatedAt: p.CreatedAt,
		Note:      p.Note,
	}
	for k, v := range p.Weights {
		c.Weights[k] = v
	}
	return c
}

// WeightRecommendation is one proposed adjustment from a recompute run.
type WeightRecommendation struct {
	SignalName string    `json:"signal_name"`
	Current    float64   `json:"current"`
	Proposed   float64   `json:"proposed"`
	WinRate    float64   `json:"win_rate"`
	MeanReturn float64   `json:"mean_return"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
	SampleSize int       `json:"sample_size"`
	ComputedAt time.Time `json:"computed_at"`
}
