package resilience

import (
	"sync"
	"time"

	"github.com/smallbiznis/invoicehub/internal/clock"
)

const (
	limiterInitialRate = 60
	limiterMinRate     = 10
	limiterMaxRate     = 120
	limiterWindow      = time.Minute
)

// AdaptiveRateLimiter self-tunes an outbound requests-per-minute budget
// based on observed successes and throttling responses.
type AdaptiveRateLimiter struct {
	mu                   sync.Mutex
	clk                  clock.Clock
	requestsPerMinute    int
	requestCount         int
	windowStart          time.Time
	lastRequestTime      time.Time
	consecutiveSuccesses int
	consecutiveLimits    int
}

// NewAdaptiveRateLimiter returns a limiter starting at a conservative
// 60 requests/minute ceiling, bounded to [10, 120].
func NewAdaptiveRateLimiter(clk clock.Clock) *AdaptiveRateLimiter {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &AdaptiveRateLimiter{
		clk:               clk,
		requestsPerMinute: limiterInitialRate,
		windowStart:       clk.Now(),
	}
}

// CanProceed reports whether the rolling window still has budget.
func (l *AdaptiveRateLimiter) CanProceed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	if now.Sub(l.windowStart) >= limiterWindow {
		l.requestCount = 0
		l.windowStart = now
	}
	return l.requestCount < l.requestsPerMinute
}

// RecordSuccess counts a confirmed request; 10 consecutive successes raise
// the ceiling by 5, up to the maximum.
func (l *AdaptiveRateLimiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.requestCount++
	l.lastRequestTime = l.clk.Now()
	l.consecutiveSuccesses++
	l.consecutiveLimits = 0

	if l.consecutiveSuccesses >= 10 {
		l.requestsPerMinute = min(limiterMaxRate, l.requestsPerMinute+5)
		l.consecutiveSuccesses = 0
	}
}

// RecordRateLimit reacts to a throttling response by lowering the ceiling,
// more aggressively the more often it happens in a row.
func (l *AdaptiveRateLimiter) RecordRateLimit() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecutiveLimits++
	l.consecutiveSuccesses = 0

	reduction := min(20, l.consecutiveLimits*5)
	l.requestsPerMinute = max(limiterMinRate, l.requestsPerMinute-reduction)
}

// GetDelay returns the wait needed to keep 60/ceiling seconds between
// requests, based on the time since the last one.
func (l *AdaptiveRateLimiter) GetDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastRequestTime.IsZero() {
		return 0
	}

	minInterval := time.Duration(float64(limiterWindow) / float64(l.requestsPerMinute))
	elapsed := l.clk.Now().Sub(l.lastRequestTime)
	if elapsed < minInterval {
		return minInterval - elapsed
	}
	return 0
}

// Rate returns the current requests-per-minute ceiling.
func (l *AdaptiveRateLimiter) Rate() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requestsPerMinute
}
