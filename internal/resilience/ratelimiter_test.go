package resilience

import (
	"testing"
	"time"

	"github.com/smallbiznis/invoicehub/internal/clock"
)

func TestLimiterStartsAtInitialRate(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	l := NewAdaptiveRateLimiter(clk)

	if got := l.Rate(); got != 60 {
		t.Fatalf("initial rate = %d, want 60", got)
	}
	if !l.CanProceed() {
		t.Fatal("fresh limiter must allow requests")
	}
}

func TestLimiterWindowExhaustionAndReset(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	l := NewAdaptiveRateLimiter(clk)

	for i := 0; i < 60; i++ {
		if !l.CanProceed() {
			t.Fatalf("request %d should be within budget", i+1)
		}
		l.RecordSuccess()
	}
	if l.CanProceed() {
		t.Fatal("61st request in the same window should be denied")
	}

	clk.Advance(time.Minute)
	if !l.CanProceed() {
		t.Fatal("budget should reset after the window rolls over")
	}
}

func TestLimiterRaisesCeilingOnSuccessStreaks(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	l := NewAdaptiveRateLimiter(clk)

	for i := 0; i < 10; i++ {
		l.RecordSuccess()
	}
	if got := l.Rate(); got != 65 {
		t.Fatalf("rate after 10 successes = %d, want 65", got)
	}

	// 120 is the hard ceiling no matter how many streaks complete.
	for i := 0; i < 200; i++ {
		l.RecordSuccess()
	}
	if got := l.Rate(); got != 120 {
		t.Fatalf("rate = %d, want capped at 120", got)
	}
}

func TestLimiterLowersCeilingOnThrottling(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	l := NewAdaptiveRateLimiter(clk)

	l.RecordRateLimit()
	if got := l.Rate(); got != 55 {
		t.Fatalf("rate after 1 throttle = %d, want 55", got)
	}
	l.RecordRateLimit()
	if got := l.Rate(); got != 45 {
		t.Fatalf("rate after 2 throttles = %d, want 45", got)
	}
	l.RecordRateLimit()
	if got := l.Rate(); got != 30 {
		t.Fatalf("rate after 3 throttles = %d, want 30", got)
	}

	// The reduction caps at 20 per event and the floor is 10.
	for i := 0; i < 10; i++ {
		l.RecordRateLimit()
	}
	if got := l.Rate(); got != 10 {
		t.Fatalf("rate = %d, want floored at 10", got)
	}
}

func TestLimiterThrottleBreaksSuccessStreak(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	l := NewAdaptiveRateLimiter(clk)

	for i := 0; i < 9; i++ {
		l.RecordSuccess()
	}
	l.RecordRateLimit()
	for i := 0; i < 9; i++ {
		l.RecordSuccess()
	}
	if got := l.Rate(); got != 55 {
		t.Fatalf("rate = %d, want 55 (streak must restart after a throttle)", got)
	}
}

func TestLimiterDelaySpacesRequests(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	l := NewAdaptiveRateLimiter(clk)

	if got := l.GetDelay(); got != 0 {
		t.Fatalf("delay before any request = %v, want 0", got)
	}

	l.RecordSuccess()
	// At 60 rpm the minimum spacing is one second.
	if got := l.GetDelay(); got != time.Second {
		t.Fatalf("delay right after a request = %v, want 1s", got)
	}

	clk.Advance(400 * time.Millisecond)
	if got := l.GetDelay(); got != 600*time.Millisecond {
		t.Fatalf("delay = %v, want 600ms", got)
	}

	clk.Advance(700 * time.Millisecond)
	if got := l.GetDelay(); got != 0 {
		t.Fatalf("delay after spacing elapsed = %v, want 0", got)
	}
}
