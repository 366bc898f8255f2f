package resilience

import (
	"testing"
	"time"

	"github.com/smallbiznis/invoicehub/internal/clock"
)

func newTestBreaker(clk clock.Clock) *Breaker {
	cfg := DefaultBreakerConfig()
	cfg.Clock = clk
	return NewBreaker(cfg)
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	b := newTestBreaker(clk)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after 4 failures = %v, want closed", got)
	}

	b.RecordFailure()
	if got := b.State(); got != StateOpen {
		t.Fatalf("state after 5 failures = %v, want open", got)
	}
	if b.CanExecute() {
		t.Fatal("open breaker must reject calls")
	}
}

func TestBreakerSuccessDecrementsFailures(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	b := newTestBreaker(clk)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	if got := b.FailureCount(); got != 1 {
		t.Fatalf("failure count = %d, want 1", got)
	}

	// A success at zero must not go negative.
	b.RecordSuccess()
	b.RecordSuccess()
	if got := b.FailureCount(); got != 0 {
		t.Fatalf("failure count = %d, want 0", got)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	b := newTestBreaker(clk)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	if b.CanExecute() {
		t.Fatal("breaker should be open")
	}

	clk.Advance(61 * time.Second)
	if !b.CanExecute() {
		t.Fatal("breaker should allow a trial call after the recovery timeout")
	}
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", got)
	}

	b.RecordSuccess()
	b.RecordSuccess()
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state after 2 trial successes = %v, want half-open", got)
	}
	b.RecordSuccess()
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after 3 trial successes = %v, want closed", got)
	}
	if got := b.FailureCount(); got != 0 {
		t.Fatalf("failure count after close = %d, want 0", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	b := newTestBreaker(clk)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clk.Advance(61 * time.Second)
	if !b.CanExecute() {
		t.Fatal("expected trial call to be allowed")
	}

	b.RecordSuccess()
	b.RecordFailure()
	if got := b.State(); got != StateOpen {
		t.Fatalf("state after half-open failure = %v, want open", got)
	}
	if b.CanExecute() {
		t.Fatal("reopened breaker must reject calls until the timeout elapses again")
	}

	// The recovery clock restarts from the reopening failure.
	clk.Advance(61 * time.Second)
	if !b.CanExecute() {
		t.Fatal("breaker should allow trial calls again")
	}
}

func TestBreakerHalfOpenBudget(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	b := newTestBreaker(clk)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clk.Advance(61 * time.Second)

	for i := 0; i < 3; i++ {
		if !b.CanExecute() {
			t.Fatalf("trial call %d should be allowed", i+1)
		}
		b.RecordSuccess()
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}
