package services

import (
	"context"
	"time"

	"github.com/smallbiznis/invoicehub/internal/cache"
)

// ServiceStatus is the diagnostics snapshot behind the status endpoint
// and the system-status broadcast.
type ServiceStatus struct {
	Services     map[string]bool `json:"services"`
	BreakerState string          `json:"breaker_state"`
	LimiterRate  int             `json:"limiter_rate"`
	Cache        cache.Stats     `json:"cache"`
	CheckedAt    time.Time       `json:"checked_at"`
}

// ConnectivityReport captures the first failing step of the progressive
// AI connectivity test.
type ConnectivityReport struct {
	ClientPresent bool   `json:"client_present"`
	AgentReady    bool   `json:"agent_ready"`
	ThreadOpened  bool   `json:"thread_opened"`
	MessagePosted bool   `json:"message_posted"`
	FailedStep    string `json:"failed_step,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Status returns the availability snapshot, cached for one minute.
func (m *Manager) Status(ctx context.Context) ServiceStatus {
	key := cache.CategoryServiceStatus + ":overview"
	if v, ok := m.cache.Get(key); ok {
		return v.(ServiceStatus)
	}

	status := ServiceStatus{
		Services:     m.Availability(),
		BreakerState: m.executor.Breaker().State().String(),
		LimiterRate:  m.executor.Limiter().Rate(),
		Cache:        m.cache.Stats(),
		CheckedAt:    m.clk.Now(),
	}
	m.cache.Set(key, status)
	return status
}

// TestConnectivity verifies the AI path step by step: client presence,
// agent reachability, thread creation and message posting. It stops at
// the first failure. Diagnostics only, never on the hot path.
func (m *Manager) TestConnectivity(ctx context.Context) ConnectivityReport {
	report := ConnectivityReport{}

	if m.agent == nil {
		report.FailedStep = "client"
		report.Error = "agent client not configured"
		return report
	}
	report.ClientPresent = true

	if err := m.agent.Ping(ctx); err != nil {
		report.FailedStep = "agent"
		report.Error = err.Error()
		return report
	}
	report.AgentReady = true

	threadID, err := m.agent.CreateThread(ctx)
	if err != nil {
		report.FailedStep = "thread"
		report.Error = err.Error()
		return report
	}
	report.ThreadOpened = true

	if err := m.agent.PostMessage(ctx, threadID, "user", "connectivity check"); err != nil {
		report.FailedStep = "message"
		report.Error = err.Error()
		return report
	}
	report.MessagePosted = true
	return report
}
