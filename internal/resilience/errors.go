// Package resilience guards outbound calls to unreliable dependencies with a
// circuit breaker, an adaptive rate limiter and classified retry.
package resilience

import (
	"errors"
	"strings"
)

// ErrorClass drives the retry strategy for a failed call.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassTransient
	ClassRateLimit
	ClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRateLimit:
		return "rate_limit"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// TransientError marks a failure worth retrying with linear backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// RateLimitedError marks a throttling response from the dependency.
type RateLimitedError struct {
	Err error
}

func (e *RateLimitedError) Error() string { return e.Err.Error() }
func (e *RateLimitedError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// RateLimited wraps err as a RateLimitedError. Returns nil for nil.
func RateLimited(err error) error {
	if err == nil {
		return nil
	}
	return &RateLimitedError{Err: err}
}

// Permanent wraps err as a PermanentError. Returns nil for nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

var (
	rateLimitKeywords = []string{"rate limit", "too many requests", "quota exceeded", "throttled"}
	transientKeywords = []string{"timeout", "connection", "network", "temporary", "service unavailable"}
	permanentKeywords = []string{"authentication", "authorization", "forbidden", "not found", "invalid"}
)

// Classify maps an error onto a retry class. Typed adapter errors take
// precedence; anything else falls back to keyword matching on the message,
// since errors surfaced by third-party SDKs are not under our control.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return ClassRateLimit
	}
	var tr *TransientError
	if errors.As(err, &tr) {
		return ClassTransient
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return ClassPermanent
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range rateLimitKeywords {
		if strings.Contains(msg, kw) {
			return ClassRateLimit
		}
	}
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return ClassTransient
		}
	}
	for _, kw := range permanentKeywords {
		if strings.Contains(msg, kw) {
			return ClassPermanent
		}
	}
	return ClassUnknown
}
