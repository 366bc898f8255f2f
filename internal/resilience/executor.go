package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker rejects a call outright.
var ErrCircuitOpen = errors.New("circuit breaker is open - service temporarily unavailable")

// ExecutorConfig tunes the retry loop around a guarded operation.
type ExecutorConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultExecutorConfig returns the default retry tuning.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Executor composes the circuit breaker and adaptive rate limiter around
// outbound calls, retrying with a backoff strategy chosen per error class.
type Executor struct {
	cfg     ExecutorConfig
	breaker *Breaker
	limiter *AdaptiveRateLimiter
	log     *zap.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor over the given primitives.
func NewExecutor(cfg ExecutorConfig, breaker *Breaker, limiter *AdaptiveRateLimiter, log *zap.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		cfg:     cfg,
		breaker: breaker,
		limiter: limiter,
		log:     log.Named("resilience"),
		sleep:   sleepCtx,
	}
}

// Breaker exposes the underlying circuit breaker.
func (e *Executor) Breaker() *Breaker { return e.breaker }

// Limiter exposes the underlying rate limiter.
func (e *Executor) Limiter() *AdaptiveRateLimiter { return e.limiter }

// Do runs fn under breaker, limiter and classified retry. On exhaustion the
// last error is returned. Permanent errors abort retrying immediately.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		}

		var err error
		if !e.breaker.CanExecute() {
			err = ErrCircuitOpen
		} else {
			if delay := e.limiterDelay(); delay > 0 {
				e.log.Debug("rate limit reached, waiting", zap.Duration("delay", delay))
				if serr := e.sleep(ctx, delay); serr != nil {
					return serr
				}
			}

			err = fn(ctx)
			if err == nil {
				e.breaker.RecordSuccess()
				e.limiter.RecordSuccess()
				return nil
			}
		}

		lastErr = err
		e.breaker.RecordFailure()

		class := Classify(err)
		var delay time.Duration
		switch class {
		case ClassRateLimit:
			delay = capDelay(time.Duration(float64(e.cfg.BaseDelay)*math.Pow(2, float64(attempt)))+jitter(), e.cfg.MaxDelay)
			e.limiter.RecordRateLimit()
		case ClassTransient:
			delay = capDelay(e.cfg.BaseDelay*time.Duration(attempt+1), e.cfg.MaxDelay)
		case ClassPermanent:
			e.log.Warn("permanent error, not retrying", zap.Error(err))
			return err
		default:
			delay = capDelay(time.Duration(float64(e.cfg.BaseDelay)*math.Pow(1.5, float64(attempt))), e.cfg.MaxDelay)
		}

		e.log.Debug("retrying after failure",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", e.cfg.MaxAttempts),
			zap.String("class", class.String()),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if attempt < e.cfg.MaxAttempts-1 {
			if serr := e.sleep(ctx, delay); serr != nil {
				return lastErr
			}
		}
	}

	e.log.Warn("all retry attempts failed", zap.Int("attempts", e.cfg.MaxAttempts), zap.Error(lastErr))
	return lastErr
}

func (e *Executor) limiterDelay() time.Duration {
	if e.limiter.CanProceed() {
		return 0
	}
	return e.limiter.GetDelay()
}

func capDelay(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

func jitter() time.Duration {
	return time.Duration(rand.Float64() * float64(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
