package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"AlphaPulse/internal/domain/models"
	applogger "AlphaPulse/pkg/logger"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const weightMetaKey = "active"

// ErrNoPriorVersion is returned by Rollback when the active profile is the
// oldest one on record.
var ErrNoPriorVersion = errors.New("no prior weight profile version")

type profileRecord struct {
	Version uint64 `badgerhold:"key"`
	Profile models.WeightProfile
}

type weightMeta struct {
	ID            string `badgerhold:"key"`
	ActiveVersion uint64
	LastVersion   uint64
}

// BadgerWeightStore keeps every committed weight profile as an immutable
// versioned record plus a single meta row naming the active version. Commit
// and Rollback flip the meta row inside one transaction, so readers always
// see a complete profile: either the old version or the new one, never a mix.
type BadgerWeightStore struct {
	store *badgerhold.Store
	log   *applogger.Logger

	mu sync.Mutex // serializes version allocation across Commit/Rollback
}

// NewBadgerWeightStore opens the profile store at path; empty path means
// in-memory, used by tests.
func NewBadgerWeightStore(path string, log *applogger.Logger) (*BadgerWeightStore, error) {
	opts := badgerhold.DefaultOptions
	if path == "" {
		opts.Options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts.Dir = path
		opts.ValueDir = path
	}
	opts.Options = opts.Options.WithLogger(nil)

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open weight store: %w", err)
	}
	return &BadgerWeightStore{store: store, log: log}, nil
}

// Active returns the currently active profile. A fresh store yields the
// zero-version profile with no entries; callers fall back to default weights
// per signal.
func (s *BadgerWeightStore) Active(ctx context.Context) (*models.WeightProfile, error) {
	var meta weightMeta
	err := s.store.Get(weightMetaKey, &meta)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return &models.WeightProfile{Version: 0, Weights: map[string]models.WeightEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("weight store meta: %w", err)
	}
	return s.Version(ctx, meta.ActiveVersion)
}

// Version fetches one committed profile by version number.
func (s *BadgerWeightStore) Version(_ context.Context, version uint64) (*models.WeightProfile, error) {
	var rec profileRecord
	if err := s.store.Get(version, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("weight profile version %d not found", version)
		}
		return nil, fmt.Errorf("weight store get: %w", err)
	}
	p := rec.Profile
	return &p, nil
}

// Commit stores p as a new version and atomically marks it active. The
// assigned version is monotonic across rollbacks: rolling back to v2 and then
// committing produces v4, never a rewritten v3.
func (s *BadgerWeightStore) Commit(_ context.Context, p *models.WeightProfile) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta weightMeta
	err := s.store.Get(weightMetaKey, &meta)
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return 0, fmt.Errorf("weight store meta: %w", err)
	}
	next := meta.LastVersion + 1

	stored := p.Clone()
	stored.Version = next
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	err = s.store.Badger().Update(func(txn *badger.Txn) error {
		if err := s.store.TxInsert(txn, next, profileRecord{Version: next, Profile: *stored}); err != nil {
			return err
		}
		return s.store.TxUpsert(txn, weightMetaKey, weightMeta{
			ID:            weightMetaKey,
			ActiveVersion: next,
			LastVersion:   next,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("weight store commit: %w", err)
	}

	if s.log != nil {
		s.log.Info("weight profile committed",
			applogger.Uint64("version", next),
			applogger.Int("signals", len(stored.Weights)),
			applogger.String("note", stored.Note),
		)
	}
	return next, nil
}

// Rollback re-activates the newest committed version older than the active
// one. The record itself is untouched; only the active pointer moves.
func (s *BadgerWeightStore) Rollback(ctx context.Context) (*models.WeightProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta weightMeta
	if err := s.store.Get(weightMetaKey, &meta); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrNoPriorVersion
		}
		return nil, fmt.Errorf("weight store meta: %w", err)
	}

	prev := meta.ActiveVersion
	for prev > 1 {
		prev--
		var rec profileRecord
		err := s.store.Get(prev, &rec)
		if errors.Is(err, badgerhold.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("weight store get: %w", err)
		}

		meta.ActiveVersion = prev
		if err := s.store.Upsert(weightMetaKey, meta); err != nil {
			return nil, fmt.Errorf("weight store rollback: %w", err)
		}
		if s.log != nil {
			s.log.Warn("weight profile rolled back", applogger.Uint64("version", prev))
		}
		p := rec.Profile
		return &p, nil
	}
	return nil, ErrNoPriorVersion
}

// Close closes the underlying store.
func (s *BadgerWeightStore) Close() error {
	return s.store.Close()
}
