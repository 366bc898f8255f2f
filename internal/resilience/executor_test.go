package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/clock"
)

func newTestExecutor(clk clock.Clock) (*Executor, *[]time.Duration) {
	bcfg := DefaultBreakerConfig()
	bcfg.Clock = clk
	e := NewExecutor(DefaultExecutorConfig(), NewBreaker(bcfg), NewAdaptiveRateLimiter(clk), zap.NewNop())

	var slept []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return e, &slept
}

func TestExecutorSucceedsFirstTry(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	e, slept := newTestExecutor(clk)

	calls := 0
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("unexpected sleeps: %v", *slept)
	}
	if got := e.Breaker().FailureCount(); got != 0 {
		t.Fatalf("failure count = %d, want 0", got)
	}
}

func TestExecutorRetriesTransientThenSucceeds(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	e, slept := newTestExecutor(clk)

	calls := 0
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("connection reset"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	// Linear backoff: base*1 then base*2.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestExecutorPermanentAbortsImmediately(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	e, slept := newTestExecutor(clk)

	calls := 0
	permErr := Permanent(errors.New("authentication failed"))
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permErr
	})
	if !errors.Is(err, permErr) {
		t.Fatalf("Do returned %v, want the permanent error", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("unexpected sleeps: %v", *slept)
	}
}

func TestExecutorExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	e, _ := newTestExecutor(clk)

	calls := 0
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Transient(errors.New("upstream timeout"))
	})
	if err == nil {
		t.Fatal("Do should return the last error after exhausting attempts")
	}
	if calls != 5 {
		t.Fatalf("calls = %d, want 5", calls)
	}
	if got := Classify(err); got != ClassTransient {
		t.Fatalf("returned error class = %v, want transient", got)
	}
}

func TestExecutorRateLimitLowersCeilingAndBacksOffExponentially(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	e, slept := newTestExecutor(clk)

	calls := 0
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return RateLimited(errors.New("too many requests"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if got := e.Limiter().Rate(); got != 45 {
		t.Fatalf("limiter rate = %d, want 45 after two throttles", got)
	}
	// Exponential backoff with jitter in [0, 1s): base*2^0 and base*2^1.
	if len(*slept) != 2 {
		t.Fatalf("sleeps = %v, want 2 entries", *slept)
	}
	if (*slept)[0] < time.Second || (*slept)[0] >= 2*time.Second {
		t.Fatalf("first backoff = %v, want in [1s, 2s)", (*slept)[0])
	}
	if (*slept)[1] < 2*time.Second || (*slept)[1] >= 3*time.Second {
		t.Fatalf("second backoff = %v, want in [2s, 3s)", (*slept)[1])
	}
}

func TestExecutorOpenBreakerFailsFastPerAttempt(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	e, _ := newTestExecutor(clk)

	for i := 0; i < 5; i++ {
		e.Breaker().RecordFailure()
	}
	if e.Breaker().State() != StateOpen {
		t.Fatal("breaker should be open")
	}

	calls := 0
	err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Do returned %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Fatalf("guarded fn ran %d times behind an open breaker", calls)
	}
}

func TestExecutorRecoversAfterBreakerTimeout(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	e, _ := newTestExecutor(clk)

	for i := 0; i < 5; i++ {
		e.Breaker().RecordFailure()
	}
	clk.Advance(61 * time.Second)

	err := e.Do(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v after recovery window", err)
	}
	if got := e.Breaker().State(); got != StateHalfOpen {
		t.Fatalf("breaker state = %v, want half-open after one trial success", got)
	}
}

func TestExecutorHonorsCancelledContext(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	e, _ := newTestExecutor(clk)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := e.Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err == nil {
		t.Fatal("Do should not run with a cancelled context")
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}
