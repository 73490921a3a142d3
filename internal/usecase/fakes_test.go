package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlphaPulse/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string)                  {}
func (nopMetrics) RecordProviderCall(_, _, _ string)   {}
func (nopMetrics) RecordBreakerState(string, bool)     {}
func (nopMetrics) RecordResolveLatency(string, float64) {}
func (nopMetrics) RecordComposite(string, float64)     {}
func (nopMetrics) RecordOutcome(string)                {}
func (nopMetrics) RecordSignalWeight(string, float64)  {}
func (nopMetrics) RecordError(string)                  {}

type memOutcomeLog struct {
	mu       sync.Mutex
	outcomes map[string]*models.Outcome // keyed by alert_id/interval
}

func newMemOutcomeLog() *memOutcomeLog {
	return &memOutcomeLog{outcomes: make(map[string]*models.Outcome)}
}

func (l *memOutcomeLog) Record(_ context.Context, o *models.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *o
	l.outcomes[o.AlertID+"/"+string(o.Interval)] = &cp
	return nil
}

func (l *memOutcomeLog) Window(_ context.Context, from, to time.Time) ([]*models.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Outcome
	for _, o := range l.outcomes {
		if !o.RecordedAt.Before(from) && !o.RecordedAt.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (l *memOutcomeLog) PruneBefore(_ context.Context, cutoff time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, o := range l.outcomes {
		if o.RecordedAt.Before(cutoff) {
			delete(l.outcomes, k)
		}
	}
	return nil
}

func (l *memOutcomeLog) Close() error { return nil }

func (l *memOutcomeLog) get(alertID string, interval models.Interval) *models.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outcomes[alertID+"/"+string(interval)]
}

type memWeightStore struct {
	mu       sync.Mutex
	versions map[uint64]*models.WeightProfile
	active   uint64
	last     uint64
}

func newMemWeightStore() *memWeightStore {
	return &memWeightStore{versions: make(map[uint64]*models.WeightProfile)}
}

func (s *memWeightStore) Active(ctx context.Context) (*models.WeightProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == 0 {
		return models.NewWeightProfile(), nil
	}
	return s.versions[s.active].Clone(), nil
}

func (s *memWeightStore) Commit(_ context.Context, p *models.WeightProfile) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	cp := p.Clone()
	cp.Version = s.last
	s.versions[s.last] = cp
	s.active = s.last
	return s.last, nil
}

func (s *memWeightStore) Version(_ context.Context, version uint64) (*models.WeightProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.versions[version]
	if !ok {
		return nil, fmt.Errorf("version %d not found", version)
	}
	return p.Clone(), nil
}

func (s *memWeightStore) Rollback(_ context.Context) (*models.WeightProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for v := s.active - 1; v >= 1; v-- {
		if p, ok := s.versions[v]; ok {
			s.active = v
			return p.Clone(), nil
		}
	}
	return nil, fmt.Errorf("no prior version")
}

func (s *memWeightStore) Close() error { return nil }
