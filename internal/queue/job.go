// Package queue runs invoice generation in the background: a priority
// queue (redis-backed, with an in-process fallback) feeding a fixed
// worker pool.
package queue

import (
	"time"

	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
	"github.com/smallbiznis/invoicehub/internal/services"
)

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// JobResult is what a finished job produced.
type JobResult struct {
	Invoice *domain.Invoice     `json:"invoice,omitempty"`
	Save    services.SaveResult `json:"save"`
}

// Job is one queued invoice generation request.
type Job struct {
	ID          string              `json:"id"`
	Order       domain.OrderDetails `json:"order"`
	Priority    int                 `json:"priority"`
	Status      JobStatus           `json:"status"`
	Progress    float64             `json:"progress"`
	Result      *JobResult          `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	RetryCount  int                 `json:"retry_count"`
	MaxRetries  int                 `json:"max_retries"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// Stats summarizes the queue for dashboards.
type Stats struct {
	Queued     int64 `json:"queue_length"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
}
