package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPendingKey = "invoicehub:jobs:pending"
	redisJobPrefix  = "invoicehub:jobs:"
	redisStatusKey  = "invoicehub:jobs:status:"
	redisJobTTL     = 24 * time.Hour
)

// redisBackend keeps the pending set in a sorted set (score = negative
// priority, so ZPopMin yields the highest priority first) and each job as
// a JSON value with a day's retention.
type redisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend wraps an already-connected redis client.
func NewRedisBackend(rdb *redis.Client) Backend {
	return &redisBackend{rdb: rdb}
}

func jobKey(id string) string { return redisJobPrefix + id }

func statusKey(s JobStatus) string { return redisStatusKey + string(s) }

func (b *redisBackend) writeJob(ctx context.Context, pipe redis.Cmdable, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	return pipe.Set(ctx, jobKey(job.ID), payload, redisJobTTL).Err()
}

func (b *redisBackend) readJob(ctx context.Context, id string) (*Job, error) {
	payload, err := b.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (b *redisBackend) Push(ctx context.Context, job *Job) error {
	pipe := b.rdb.TxPipeline()
	if err := b.writeJob(ctx, pipe, job); err != nil {
		return err
	}
	pipe.ZAdd(ctx, redisPendingKey, redis.Z{Score: -float64(job.Priority), Member: job.ID})
	for _, s := range []JobStatus{StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled} {
		pipe.SRem(ctx, statusKey(s), job.ID)
	}
	pipe.SAdd(ctx, statusKey(StatusQueued), job.ID)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *redisBackend) Pop(ctx context.Context) (*Job, error) {
	popped, err := b.rdb.ZPopMin(ctx, redisPendingKey, 1).Result()
	if err != nil {
		return nil, err
	}
	if len(popped) == 0 {
		return nil, nil
	}
	id, _ := popped[0].Member.(string)
	job, err := b.readJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		// Stale pending entry whose record expired; treat as empty.
		return nil, nil
	}
	return job, nil
}

func (b *redisBackend) Get(ctx context.Context, id string) (*Job, error) {
	return b.readJob(ctx, id)
}

func (b *redisBackend) Update(ctx context.Context, job *Job) error {
	old, err := b.readJob(ctx, job.ID)
	if err != nil {
		return err
	}

	pipe := b.rdb.TxPipeline()
	if err := b.writeJob(ctx, pipe, job); err != nil {
		return err
	}
	if old != nil && old.Status != job.Status {
		pipe.SRem(ctx, statusKey(old.Status), job.ID)
		pipe.SAdd(ctx, statusKey(job.Status), job.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (b *redisBackend) RemovePending(ctx context.Context, id string) (bool, error) {
	removed, err := b.rdb.ZRem(ctx, redisPendingKey, id).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

func (b *redisBackend) Stats(ctx context.Context) (Stats, error) {
	pipe := b.rdb.Pipeline()
	queued := pipe.ZCard(ctx, redisPendingKey)
	processing := pipe.SCard(ctx, statusKey(StatusProcessing))
	completed := pipe.SCard(ctx, statusKey(StatusCompleted))
	failed := pipe.SCard(ctx, statusKey(StatusFailed))
	cancelled := pipe.SCard(ctx, statusKey(StatusCancelled))
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, err
	}
	return Stats{
		Queued:     queued.Val(),
		Processing: processing.Val(),
		Completed:  completed.Val(),
		Failed:     failed.Val(),
		Cancelled:  cancelled.Val(),
	}, nil
}
