package repository

import (
	"context"
	"errors"
	"testing"

	"AlphaPulse/internal/domain/models"
	applogger "AlphaPulse/pkg/logger"
)

func newTestWeightStore(t *testing.T) *BadgerWeightStore {
	t.Helper()
	s, err := NewBadgerWeightStore("", applogger.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func profileWith(weights map[string]float64) *models.WeightProfile {
	p := models.NewWeightProfile()
	for name, w := range weights {
		p.Weights[name] = models.WeightEntry{Weight: w}
	}
	return p
}

func TestFreshStoreYieldsZeroProfile(t *testing.T) {
	s := newTestWeightStore(t)
	p, err := s.Active(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if p.Version != 0 || len(p.Weights) != 0 {
		t.Fatalf("fresh store must yield empty v0 profile, got v%d with %d entries", p.Version, len(p.Weights))
	}
}

func TestCommitAssignsMonotonicVersions(t *testing.T) {
	s := newTestWeightStore(t)
	ctx := context.Background()

	v1, err := s.Commit(ctx, profileWith(map[string]float64{"a": 1.1}))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	v2, err := s.Commit(ctx, profileWith(map[string]float64{"a": 1.2}))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if v1 != 1 || v2 != 2 {
		t.Fatalf("expected versions 1,2 got %d,%d", v1, v2)
	}

	active, err := s.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.Version != 2 || active.Weights["a"].Weight != 1.2 {
		t.Fatalf("active must be the latest commit, got v%d weight %v", active.Version, active.Weights["a"].Weight)
	}

	older, err := s.Version(ctx, 1)
	if err != nil {
		t.Fatalf("version 1: %v", err)
	}
	if older.Weights["a"].Weight != 1.1 {
		t.Fatalf("committed versions are immutable, got %v", older.Weights["a"].Weight)
	}
}

func TestRollbackMovesActivePointer(t *testing.T) {
	s := newTestWeightStore(t)
	ctx := context.Background()

	if _, err := s.Commit(ctx, profileWith(map[string]float64{"a": 1.1})); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Commit(ctx, profileWith(map[string]float64{"a": 1.5})); err != nil {
		t.Fatalf("commit: %v", err)
	}

	p, err := s.Rollback(ctx)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if p.Version != 1 || p.Weights["a"].Weight != 1.1 {
		t.Fatalf("rollback must re-activate v1, got v%d weight %v", p.Version, p.Weights["a"].Weight)
	}

	active, _ := s.Active(ctx)
	if active.Version != 1 {
		t.Fatalf("active must follow the rollback, got v%d", active.Version)
	}

	// a commit after rollback never rewrites history
	v3, err := s.Commit(ctx, profileWith(map[string]float64{"a": 1.3}))
	if err != nil {
		t.Fatalf("commit after rollback: %v", err)
	}
	if v3 != 3 {
		t.Fatalf("expected version 3 after rollback, got %d", v3)
	}
	v2, err := s.Version(ctx, 2)
	if err != nil {
		t.Fatalf("version 2: %v", err)
	}
	if v2.Weights["a"].Weight != 1.5 {
		t.Fatalf("rolled-back version must stay intact, got %v", v2.Weights["a"].Weight)
	}
}

func TestRollbackWithoutHistory(t *testing.T) {
	s := newTestWeightStore(t)
	ctx := context.Background()

	if _, err := s.Rollback(ctx); !errors.Is(err, ErrNoPriorVersion) {
		t.Fatalf("expected ErrNoPriorVersion on empty store, got %v", err)
	}

	if _, err := s.Commit(ctx, profileWith(map[string]float64{"a": 1.0})); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Rollback(ctx); !errors.Is(err, ErrNoPriorVersion) {
		t.Fatalf("expected ErrNoPriorVersion at the oldest version, got %v", err)
	}
}
