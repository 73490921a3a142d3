package resolver

import (
	"testing"
	"time"
)

func newTestBreaker(cooldown time.Duration) *Breaker {
	return NewBreaker(BreakerConfig{
		Window:         time.Minute,
		Cooldown:       cooldown,
		MinCalls:       3,
		MaxFailureRate: 0.5,
	})
}

func TestBreakerOpensOnFailureRate(t *testing.T) {
	b := newTestBreaker(time.Minute)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("closed breaker must allow call %d", i)
		}
		b.Record(false)
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after 3 straight failures, got %s", b.State())
	}
	if b.Allow() {
		t.Fatalf("open breaker must reject")
	}
}

func TestBreakerStaysClosedBelowMinCalls(t *testing.T) {
	b := newTestBreaker(time.Minute)
	b.Record(false)
	b.Record(false)
	if b.State() != BreakerClosed {
		t.Fatalf("two failures are below the min-calls floor, got %s", b.State())
	}
	if !b.Allow() {
		t.Fatalf("breaker must still allow below min calls")
	}
}

func TestBreakerMixedCallsUnderThreshold(t *testing.T) {
	b := newTestBreaker(time.Minute)
	b.Record(true)
	b.Record(true)
	b.Record(true)
	b.Record(false)
	if b.State() != BreakerClosed {
		t.Fatalf("25%% failure rate must not trip a 50%% threshold, got %s", b.State())
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)
	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	if b.Allow() {
		t.Fatalf("must reject inside cooldown")
	}

	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatalf("must allow one probe after cooldown")
	}
	if b.Allow() {
		t.Fatalf("only one probe may proceed at a time")
	}

	b.Record(true)
	if b.State() != BreakerClosed {
		t.Fatalf("successful probe must close the breaker, got %s", b.State())
	}
	if !b.Allow() {
		t.Fatalf("closed breaker must allow")
	}
}

func TestBreakerCancelProbeReleasesSlot(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)
	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatalf("must allow probe after cooldown")
	}
	b.CancelProbe()

	if !b.Allow() {
		t.Fatalf("canceled probe must free the slot for the next caller")
	}
	b.Record(true)
	if b.State() != BreakerClosed {
		t.Fatalf("probe after cancel must settle normally, got %s", b.State())
	}
}

func TestBreakerReclaimsAbandonedProbe(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)
	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatalf("must allow probe after cooldown")
	}
	// probe holder never calls Record; the slot must not be held forever
	if b.Allow() {
		t.Fatalf("abandoned probe still inside its deadline must block")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("probe slot must be reclaimed after the deadline")
	}
	b.Record(true)
	if b.State() != BreakerClosed {
		t.Fatalf("reclaimed probe must settle normally, got %s", b.State())
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)
	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatalf("must allow probe after cooldown")
	}
	b.Record(false)

	if b.Allow() {
		t.Fatalf("failed probe must reopen the breaker")
	}
}
