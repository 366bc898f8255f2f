package resilience

import (
	"sync"
	"time"

	"github.com/smallbiznis/invoicehub/internal/clock"
)

// State represents the state of the circuit breaker.
type State int

const (
	// StateClosed means the circuit is closed and calls are allowed.
	StateClosed State = iota
	// StateOpen means the circuit is open and calls are rejected.
	StateOpen
	// StateHalfOpen means a limited number of trial calls are allowed.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the failure count that opens the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before allowing trial calls.
	RecoveryTimeout time.Duration
	// HalfOpenMaxCalls is the trial budget in half-open state; that many
	// consecutive successes close the circuit again.
	HalfOpenMaxCalls int

	Clock clock.Clock
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// Breaker stops calling a failing dependency for a cooldown period.
type Breaker struct {
	mu              sync.Mutex
	cfg             BreakerConfig
	clk             clock.Clock
	state           State
	failureCount    int
	halfOpenCalls   int
	lastFailureTime time.Time
}

// NewBreaker creates a circuit breaker with the given configuration.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 3
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Breaker{cfg: cfg, clk: clk, state: StateClosed}
}

// CanExecute reports whether a guarded call may proceed, transitioning
// open→half-open once the recovery timeout has elapsed.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.lastFailureTime.IsZero() || b.clk.Now().Sub(b.lastFailureTime) > b.cfg.RecoveryTimeout {
			b.state = StateHalfOpen
			b.halfOpenCalls = 0
			return true
		}
		return false
	case StateHalfOpen:
		return b.halfOpenCalls < b.cfg.HalfOpenMaxCalls
	}
	return false
}

// RecordSuccess records a successful call. In closed state a success
// decrements the failure counter instead of zeroing it, so a single
// transient failure heals without a full reset.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.halfOpenCalls++
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			b.state = StateClosed
			b.failureCount = 0
		}
	case StateClosed:
		if b.failureCount > 0 {
			b.failureCount--
		}
	}
}

// RecordFailure records a failed call. Any failure in half-open state
// reopens the circuit and resets the recovery clock.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.clk.Now()

	if b.state == StateHalfOpen || b.failureCount >= b.cfg.FailureThreshold {
		b.state = StateOpen
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive-failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
