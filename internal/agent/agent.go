// Package agent talks to the hosted assistant runtime used for
// AI-assisted invoice generation.
package agent

import "context"

// RunStatus is the terminal (or polled) state of an agent run.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunExpired    RunStatus = "expired"
	RunCancelled  RunStatus = "cancelled"
)

// Terminal reports whether the run has finished, successfully or not.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunExpired, RunCancelled:
		return true
	}
	return false
}

// Message is one turn in an agent thread.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the assistant runtime surface consumed by the access layer.
// Each generation opens a fresh thread; no conversation state is kept
// between calls.
type Client interface {
	Ping(ctx context.Context) error
	CreateThread(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, role, content string) error
	Run(ctx context.Context, threadID, instructions string) (RunStatus, error)
	ListMessages(ctx context.Context, threadID, order string) ([]Message, error)
}
