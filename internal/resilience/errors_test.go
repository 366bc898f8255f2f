package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyTypedErrors(t *testing.T) {
	base := errors.New("boom")

	if got := Classify(RateLimited(base)); got != ClassRateLimit {
		t.Fatalf("Classify(RateLimited) = %v, want rate_limit", got)
	}
	if got := Classify(Transient(base)); got != ClassTransient {
		t.Fatalf("Classify(Transient) = %v, want transient", got)
	}
	if got := Classify(Permanent(base)); got != ClassPermanent {
		t.Fatalf("Classify(Permanent) = %v, want permanent", got)
	}

	// Wrapping must not hide the class.
	wrapped := fmt.Errorf("calling search index: %w", Transient(base))
	if got := Classify(wrapped); got != ClassTransient {
		t.Fatalf("Classify(wrapped transient) = %v, want transient", got)
	}
}

func TestClassifyKeywordFallback(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorClass
	}{
		{"429 Too Many Requests", ClassRateLimit},
		{"monthly quota exceeded for project", ClassRateLimit},
		{"request was throttled", ClassRateLimit},
		{"dial tcp: i/o timeout", ClassTransient},
		{"connection refused", ClassTransient},
		{"503 Service Unavailable", ClassTransient},
		{"authentication failed", ClassPermanent},
		{"document not found", ClassPermanent},
		{"invalid request payload", ClassPermanent},
		{"something inexplicable happened", ClassUnknown},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestClassifyPrecedence(t *testing.T) {
	// Rate-limit keywords win over transient ones when both appear.
	err := errors.New("connection throttled: rate limit reached")
	if got := Classify(err); got != ClassRateLimit {
		t.Fatalf("Classify = %v, want rate_limit", got)
	}

	// A typed wrapper beats contradicting keywords in the message.
	typed := Permanent(errors.New("temporary rate limit"))
	if got := Classify(typed); got != ClassPermanent {
		t.Fatalf("Classify(typed) = %v, want permanent", got)
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != ClassUnknown {
		t.Fatalf("Classify(nil) = %v, want unknown", got)
	}
}

func TestConstructorsReturnNilForNil(t *testing.T) {
	if Transient(nil) != nil || RateLimited(nil) != nil || Permanent(nil) != nil {
		t.Fatal("constructors must pass nil through")
	}
}
