package models

import "time"

// Event is one normalized market-moving item (filing, press release, news
// article) produced by upstream feed ingestion. CanonicalKey is derived by the
// producer; two events carrying the same key describe the same real-world item
// regardless of which feed delivered it. The key is opaque to this engine.
type Event struct {
	CanonicalKey string    `json:"canonical_key"`
	Ticker       string    `json:"ticker"`
	SourceID     string    `json:"source_id"`
	ObservedAt   time.Time `json:"observed_at"`
	PayloadRef   string    `json:"payload_ref"`

	// Signals carries classifier-derived signals (keyword, LLM sentiment)
	// attached upstream. They flow into the aggregator unchanged, alongside
	// the market-data signals this engine resolves itself.
	Signals []Signal `json:"signals,omitempty"`
}

// Valid reports whether the event carries the minimum fields to be processed.
func (e *Event) Valid() bool {
	return e != nil && e.CanonicalKey != "" && e.Ticker != ""
}
