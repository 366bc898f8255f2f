package cache

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepInterval = 5 * time.Minute

// Module wires the cache store and its background sweeper.
var Module = fx.Module("cache",
	fx.Provide(New),
	fx.Invoke(runSweeper),
)

// runSweeper drops expired entries on a fixed interval so idle entries do
// not linger until their next read.
func runSweeper(lc fx.Lifecycle, store *Store, log *zap.Logger) {
	stop := make(chan struct{})
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(sweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if removed := store.Sweep(); removed > 0 {
							log.Debug("cache sweep", zap.Int("removed", removed))
						}
					case <-stop:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})
}
