package searchindex

import (
	"testing"

	"github.com/smallbiznis/invoicehub/internal/config"
	"github.com/smallbiznis/invoicehub/internal/resilience"
	"go.uber.org/zap"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   resilience.ErrorClass
	}{
		{429, resilience.ClassRateLimit},
		{404, resilience.ClassPermanent},
		{400, resilience.ClassPermanent},
		{401, resilience.ClassPermanent},
		{500, resilience.ClassTransient},
		{503, resilience.ClassTransient},
	}
	for _, tc := range cases {
		err := classifyStatus(tc.status, "detail")
		if got := resilience.Classify(err); got != tc.want {
			t.Errorf("classifyStatus(%d) class = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestNewElasticIndexDisabledWithoutEndpoint(t *testing.T) {
	idx := NewElasticIndex(config.Config{}, zap.NewNop())
	if idx != nil {
		t.Fatal("index should be nil when no endpoint is configured")
	}
}
