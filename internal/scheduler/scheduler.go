package scheduler

import (
	"context"
	"fmt"
	"time"

	"AlphaPulse/internal/domain/repository"
	"AlphaPulse/internal/usecase"
	applogger "AlphaPulse/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Config carries the cron specs and intervals for background maintenance.
type Config struct {
	WeightSchedule   string        // standard 5-field cron
	DedupSweep       string        // standard 5-field cron
	DedupRetention   time.Duration
	CacheSweep       time.Duration
	OutcomePoll      time.Duration
	OutcomeRetention time.Duration
}

// Scheduler owns the recurring work: outcome polling, weight recomputes,
// dedup and cache retention sweeps, outcome pruning.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	dedup    repository.DedupStore
	cache    repository.ProviderCache
	outlog   repository.OutcomeLog
	tracker  *usecase.OutcomeTracker
	adjuster *usecase.WeightAdjuster
	log      *applogger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(
	cfg Config,
	dedup repository.DedupStore,
	cache repository.ProviderCache,
	outlog repository.OutcomeLog,
	tracker *usecase.OutcomeTracker,
	adjuster *usecase.WeightAdjuster,
	log *applogger.Logger,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		dedup:    dedup,
		cache:    cache,
		outlog:   outlog,
		tracker:  tracker,
		adjuster: adjuster,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register wires every recurring job. Registration failures are configuration
// errors and abort startup.
func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc(s.cfg.WeightSchedule, s.weightRecompute); err != nil {
		return fmt.Errorf("register weight recompute: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.DedupSweep, s.dedupSweep); err != nil {
		return fmt.Errorf("register dedup sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.OutcomePoll), s.outcomePoll); err != nil {
		return fmt.Errorf("register outcome poll: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.CacheSweep), s.cacheSweep); err != nil {
		return fmt.Errorf("register cache sweep: %w", err)
	}
	// prune shares the dedup sweep's off-hours slot
	if _, err := s.cron.AddFunc(s.cfg.DedupSweep, s.outcomePrune); err != nil {
		return fmt.Errorf("register outcome prune: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) weightRecompute() {
	s.adjuster.Run(s.ctx)
}

func (s *Scheduler) outcomePoll() {
	s.tracker.Poll(s.ctx)
}

func (s *Scheduler) dedupSweep() {
	cutoff := time.Now().Add(-s.cfg.DedupRetention)
	dropped, err := s.dedup.SweepBefore(s.ctx, cutoff)
	if err != nil {
		s.log.Error("dedup sweep failed", applogger.Error(err))
		return
	}
	s.log.Info("dedup sweep complete",
		applogger.Int("dropped", dropped),
		applogger.Time("cutoff", cutoff),
	)
}

func (s *Scheduler) cacheSweep() {
	reaped := s.cache.Sweep(s.ctx)
	if reaped > 0 {
		s.log.Debug("cache sweep complete", applogger.Int("reaped", reaped))
	}
}

func (s *Scheduler) outcomePrune() {
	cutoff := time.Now().Add(-s.cfg.OutcomeRetention)
	if err := s.outlog.PruneBefore(s.ctx, cutoff); err != nil {
		s.log.Error("outcome prune failed", applogger.Error(err))
	}
}
