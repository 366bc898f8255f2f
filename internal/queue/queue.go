package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/clock"
	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
	"github.com/smallbiznis/invoicehub/internal/services"
)

const idleSleep = 500 * time.Millisecond

// Generator is the slice of the service access layer the queue needs.
type Generator interface {
	GenerateInvoice(ctx context.Context, order domain.OrderDetails) (*domain.Invoice, error)
	SaveInvoice(ctx context.Context, inv *domain.Invoice) (services.SaveResult, error)
}

// Publisher receives job lifecycle events for fan-out to clients.
type Publisher interface {
	Publish(eventType string, payload any)
}

// Recorder counts job lifecycle events for metrics.
type Recorder interface {
	ObserveJob(status string)
}

// Queue feeds queued generation jobs to a fixed pool of workers.
type Queue struct {
	backend    Backend
	gen        Generator
	pub        Publisher
	rec        Recorder
	log        *zap.Logger
	clk        clock.Clock
	workers    int
	maxRetries int

	stop chan struct{}
	wg   sync.WaitGroup
}

// Options tunes the queue. Recorder may be nil.
type Options struct {
	Workers    int
	MaxRetries int
	Recorder   Recorder
}

// New builds a queue over the given backend. pub may be nil.
func New(backend Backend, gen Generator, pub Publisher, clk clock.Clock, log *zap.Logger, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Queue{
		backend:    backend,
		gen:        gen,
		pub:        pub,
		rec:        opts.Recorder,
		log:        log.Named("queue"),
		clk:        clk,
		workers:    opts.Workers,
		maxRetries: opts.MaxRetries,
		stop:       make(chan struct{}),
	}
}

// Enqueue accepts an order for background generation and returns the job id.
func (q *Queue) Enqueue(ctx context.Context, order domain.OrderDetails, priority int) (string, error) {
	job := &Job{
		ID:         uuid.NewString(),
		Order:      order,
		Priority:   priority,
		Status:     StatusQueued,
		MaxRetries: q.maxRetries,
		CreatedAt:  q.clk.Now(),
	}
	if err := q.backend.Push(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	q.publish(job)
	q.log.Info("job enqueued", zap.String("job_id", job.ID), zap.Int("priority", priority))
	return job.ID, nil
}

// GetStatus returns the job by id, or nil when unknown.
func (q *Queue) GetStatus(ctx context.Context, id string) (*Job, error) {
	return q.backend.Get(ctx, id)
}

// Cancel stops a job that has not started yet. Jobs already processing
// run to completion; Cancel returns false for them.
func (q *Queue) Cancel(ctx context.Context, id string) (bool, error) {
	job, err := q.backend.Get(ctx, id)
	if err != nil || job == nil {
		return false, err
	}
	if job.Status != StatusQueued {
		return false, nil
	}

	removed, err := q.backend.RemovePending(ctx, id)
	if err != nil || !removed {
		return false, err
	}

	job.Status = StatusCancelled
	now := q.clk.Now()
	job.CompletedAt = &now
	if err := q.backend.Update(ctx, job); err != nil {
		return false, err
	}
	q.publish(job)
	q.log.Info("job cancelled", zap.String("job_id", id))
	return true, nil
}

// Stats counts jobs by state.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	return q.backend.Stats(ctx)
}

// Start launches the worker pool.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.log.Info("queue workers started", zap.Int("workers", q.workers))
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (q *Queue) Stop(ctx context.Context) error {
	close(q.stop)
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log := q.log.With(zap.Int("worker", id))

	for {
		select {
		case <-q.stop:
			return
		default:
		}

		job, err := q.backend.Pop(context.Background())
		if err != nil {
			log.Warn("pop failed", zap.Error(err))
		}
		if job == nil {
			select {
			case <-q.stop:
				return
			case <-time.After(idleSleep):
			}
			continue
		}
		q.process(context.Background(), job, log)
	}
}

// process runs one job through generation and save, reporting progress at
// fixed checkpoints. A failed job goes back to the queue at reduced
// priority until its retry budget is spent.
func (q *Queue) process(ctx context.Context, job *Job, log *zap.Logger) {
	now := q.clk.Now()
	job.Status = StatusProcessing
	job.StartedAt = &now
	job.Progress = 0.2
	q.checkpoint(ctx, job, log)

	inv, err := q.gen.GenerateInvoice(ctx, job.Order)
	if err != nil {
		q.fail(ctx, job, fmt.Errorf("generate: %w", err), log)
		return
	}
	job.Progress = 0.6
	q.checkpoint(ctx, job, log)

	saveRes, err := q.gen.SaveInvoice(ctx, inv)
	if err != nil {
		q.fail(ctx, job, fmt.Errorf("save: %w", err), log)
		return
	}
	job.Progress = 0.9
	q.checkpoint(ctx, job, log)

	done := q.clk.Now()
	job.Status = StatusCompleted
	job.Progress = 1.0
	job.CompletedAt = &done
	job.Error = ""
	job.Result = &JobResult{Invoice: inv, Save: saveRes}
	q.checkpoint(ctx, job, log)
	log.Info("job completed",
		zap.String("job_id", job.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
	)
}

func (q *Queue) fail(ctx context.Context, job *Job, cause error, log *zap.Logger) {
	job.Error = cause.Error()
	job.RetryCount++

	if job.RetryCount <= job.MaxRetries {
		job.Status = StatusQueued
		job.Progress = 0
		job.StartedAt = nil
		job.Priority -= job.RetryCount
		if err := q.backend.Push(ctx, job); err != nil {
			log.Error("re-enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		q.publish(job)
		log.Warn("job retrying",
			zap.String("job_id", job.ID),
			zap.Int("retry", job.RetryCount),
			zap.Int("priority", job.Priority),
			zap.Error(cause),
		)
		return
	}

	now := q.clk.Now()
	job.Status = StatusFailed
	job.CompletedAt = &now
	q.checkpoint(ctx, job, log)
	log.Error("job failed permanently", zap.String("job_id", job.ID), zap.Error(cause))
}

func (q *Queue) checkpoint(ctx context.Context, job *Job, log *zap.Logger) {
	if err := q.backend.Update(ctx, job); err != nil {
		log.Warn("job update failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	q.publish(job)
}

func (q *Queue) publish(job *Job) {
	if q.rec != nil {
		q.rec.ObserveJob(string(job.Status))
	}
	if q.pub == nil {
		return
	}
	payload := map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"progress": job.Progress,
	}
	if job.Error != "" {
		payload["error"] = job.Error
	}
	if job.Result != nil && job.Result.Invoice != nil {
		payload["invoice_number"] = job.Result.Invoice.InvoiceNumber
	}
	q.pub.Publish("job_status", payload)
}
