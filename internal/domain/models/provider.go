package models

import "time"

// Datum is the value a provider returns for one (subject, data class) pair.
// Price and Volume cover the market-data classes; Fields carries
// class-specific extras (sentiment score, fundamental ratios).
type Datum struct {
	Price  float64            `json:"price,omitempty"`
	Volume float64            `json:"volume,omitempty"`
	Fields map[string]float64 `json:"fields,omitempty"`
	AsOf   time.Time          `json:"as_of"`
}

// Field returns a named extra or the given default when absent.
func (d Datum) Field(name string, def float64) float64 {
	if v, ok := d.Fields[name]; ok {
		return v
	}
	return def
}

// FailKind is the typed failure classification for a resolution attempt.
type FailKind string

const (
	FailNone        FailKind = ""            // result is usable
	FailTimeout     FailKind = "timeout"     // single provider timed out
	FailUnavailable FailKind = "unavailable" // all providers exhausted
)

// ProviderResult is the outcome of resolving one (subject, data class) pair.
// Exactly one of Datum / Fail is meaningful: when Fail is FailNone the datum
// is usable and Provider records provenance.
type ProviderResult struct {
	Datum      Datum         `json:"datum"`
	Provider   string        `json:"provider"`
	Confidence float64       `json:"confidence"` // [0, 1]
	Latency    time.Duration `json:"latency"`
	Cached     bool          `json:"cached"`
	Fail       FailKind      `json:"fail,omitempty"`
}

// OK reports whether the result carries a usable datum.
func (r ProviderResult) OK() bool { return r.Fail == FailNone }

// Unavailable builds the typed all-providers-exhausted result. Callers must
// treat it as "signal absent", never as a fatal error.
func Unavailable() ProviderResult {
	return ProviderResult{Fail: FailUnavailable}
}
