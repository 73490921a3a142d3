package repository

import (
	"context"
	"time"

	"AlphaPulse/internal/domain/models"
)

// RegisterResult is the answer of the dedup gate for one canonical key.
type RegisterResult int

const (
	Registered RegisterResult = iota // first sighting, proceed
	Duplicate                        // already processed, drop
)

func (r RegisterResult) String() string {
	if r == Duplicate {
		return "duplicate"
	}
	return "registered"
}

// DedupStore answers "have we processed this canonical event before?".
// Register is atomic: among racing calls for the same key exactly one
// observes Registered. Implementations must be safe for concurrent use and
// survive restarts.
type DedupStore interface {
	Register(ctx context.Context, canonicalKey string, observedAt time.Time) (RegisterResult, error)
	// Unregister removes a key so the event can re-register on redelivery.
	// Used when dispatch failed after the gate was taken: a duplicate alert
	// is recoverable, a lost one is not.
	Unregister(ctx context.Context, canonicalKey string) error
	Seen(ctx context.Context, canonicalKey string) (bool, error)
	// SweepBefore removes entries first seen before cutoff and returns how
	// many were dropped. Bounds storage growth via a time-sorted index.
	SweepBefore(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// ProviderCache is the shared TTL cache in front of every provider chain,
// keyed by (subject, data class). A Get never returns an expired entry; hits
// carry the provenance and confidence the datum was stored with.
type ProviderCache interface {
	Get(ctx context.Context, subject string, class DataClass) (models.Datum, string, float64, bool)
	Put(ctx context.Context, subject string, class DataClass, d models.Datum, provider string, confidence float64)
	// Sweep reaps expired entries eagerly and returns how many were dropped.
	Sweep(ctx context.Context) int
}

// OutcomeLog is the append-only record of realized alert outcomes. Record is
// idempotent per (alert_id, interval): re-recording overwrites.
type OutcomeLog interface {
	Record(ctx context.Context, o *models.Outcome) error
	Window(ctx context.Context, from, to time.Time) ([]*models.Outcome, error)
	PruneBefore(ctx context.Context, cutoff time.Time) error
	Close() error
}

// WeightStore persists versioned weight profiles. Commit assigns the next
// version atomically and keeps prior versions for rollback; Active returns
// the latest committed version only, never a half-written one.
type WeightStore interface {
	Active(ctx context.Context) (*models.WeightProfile, error)
	Commit(ctx context.Context, p *models.WeightProfile) (uint64, error)
	Version(ctx context.Context, version uint64) (*models.WeightProfile, error)
	// Rollback reactivates the version preceding the active one.
	Rollback(ctx context.Context) (*models.WeightProfile, error)
	Close() error
}

// AlertPublisher dispatches composite-score alerts downstream. Formatting and
// delivery to chat platforms happen outside this engine.
type AlertPublisher interface {
	Publish(ctx context.Context, a *models.Alert) error
	Close() error
}

// Metrics is the engine's observability sink.
type Metrics interface {
	RecordEvent(result string)
	RecordProviderCall(provider, class, result string)
	RecordBreakerState(provider string, open bool)
	RecordResolveLatency(class string, seconds float64)
	RecordComposite(ticker string, value float64)
	RecordOutcome(label string)
	RecordSignalWeight(name string, weight float64)
	RecordError(kind string)
}
