package resolver

import (
	"sync"
	"time"
)

// BreakerState is the lifecycle state of one provider's circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig tunes the sliding-window failure detector.
type BreakerConfig struct {
	Window         time.Duration // how far back calls count
	Cooldown       time.Duration // open duration before a probe is allowed
	MinCalls       int           // below this, never trip
	MaxFailureRate float64       // trip at or above this rate
}

type breakerCall struct {
	at time.Time
	ok bool
}

// Breaker is a per-provider circuit breaker. Failures are counted over a
// sliding window; when the failure rate trips the threshold the breaker opens
// and the resolver skips the provider until the cooldown elapses, after which
// a single probe call decides between closing and reopening.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	calls    []breakerCall
	openedAt time.Time
	probing  bool
	probeAt  time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Window == 0 {
		cfg.Window = 2 * time.Minute
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.MinCalls == 0 {
		cfg.MinCalls = 3
	}
	if cfg.MaxFailureRate == 0 {
		cfg.MaxFailureRate = 0.5
	}
	return &Breaker{cfg: cfg}
}

// Allow reports whether a call may proceed. In the half-open state only the
// first caller gets through; concurrent callers are rejected until the probe
// settles.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		b.probing = true
		b.probeAt = time.Now()
		return true
	case BreakerHalfOpen:
		// A probe whose caller never reported back (rate limited before the
		// call, crashed) would otherwise hold the slot forever; reclaim it
		// after one cooldown.
		if b.probing && time.Since(b.probeAt) < b.cfg.Cooldown {
			return false
		}
		b.probing = true
		b.probeAt = time.Now()
		return true
	}
	return false
}

// CancelProbe releases a half-open probe slot granted by Allow when the call
// it was granted for never ran. Without this the slot stays claimed until the
// probe deadline.
func (b *Breaker) CancelProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen {
		b.probing = false
	}
}

// Record feeds one call result back into the window.
func (b *Breaker) Record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	if b.state == BreakerHalfOpen {
		b.probing = false
		if ok {
			b.state = BreakerClosed
			b.calls = b.calls[:0]
		} else {
			b.state = BreakerOpen
			b.openedAt = now
		}
		return
	}

	b.calls = append(b.calls, breakerCall{at: now, ok: ok})
	b.prune(now)

	if len(b.calls) < b.cfg.MinCalls {
		return
	}
	failures := 0
	for _, c := range b.calls {
		if !c.ok {
			failures++
		}
	}
	if float64(failures)/float64(len(b.calls)) >= b.cfg.MaxFailureRate {
		b.state = BreakerOpen
		b.openedAt = now
	}
}

// State returns the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	i := 0
	for i < len(b.calls) && b.calls[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.calls = b.calls[i:]
	}
}
