package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/clock"
	"github.com/smallbiznis/invoicehub/internal/config"
	"github.com/smallbiznis/invoicehub/internal/services"
)

// Module wires the redis client, backend selection, the queue itself and
// its worker lifecycle.
var Module = fx.Module("queue",
	fx.Provide(NewRedisClient),
	fx.Provide(NewBackend),
	fx.Provide(NewQueue),
	fx.Invoke(run),
)

// NewRedisClient builds the redis client from configuration. Returns nil
// on a malformed URL; backend selection falls through to memory.
func NewRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn("invalid redis url, job queue will run in-process", zap.Error(err))
		return nil
	}
	return redis.NewClient(opts)
}

// NewBackend picks the redis backend when redis answers a ping, and the
// in-process fallback otherwise.
func NewBackend(rdb *redis.Client, log *zap.Logger) Backend {
	if rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err == nil {
			log.Info("job queue using redis backend")
			return NewRedisBackend(rdb)
		} else {
			log.Warn("redis unreachable, job queue will run in-process", zap.Error(err))
		}
	}
	return NewMemoryBackend()
}

// QueueParams collects the queue's dependencies.
type QueueParams struct {
	fx.In

	Cfg     config.Config
	Backend Backend
	Manager *services.Manager
	Pub     Publisher `optional:"true"`
	Rec     Recorder  `optional:"true"`
	Clk     clock.Clock
	Log     *zap.Logger
}

// NewQueue builds the queue over the service access layer.
func NewQueue(p QueueParams) *Queue {
	return New(p.Backend, p.Manager, p.Pub, p.Clk, p.Log, Options{
		Workers:    p.Cfg.QueueWorkers,
		MaxRetries: p.Cfg.QueueMaxRetries,
		Recorder:   p.Rec,
	})
}

func run(lc fx.Lifecycle, q *Queue) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			q.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return q.Stop(ctx)
		},
	})
}
