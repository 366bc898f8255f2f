package realtime

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/queue"
	"github.com/smallbiznis/invoicehub/internal/services"
)

const (
	dashboardInterval = 30 * time.Second
	systemInterval    = 60 * time.Second
)

// pollers push periodic dashboard and system snapshots so connected
// clients see fresh numbers without asking.
type pollers struct {
	hub *Hub
	mgr *services.Manager
	q   *queue.Queue
	log *zap.Logger

	stop chan struct{}
	done chan struct{}
}

func newPollers(hub *Hub, mgr *services.Manager, q *queue.Queue, log *zap.Logger) *pollers {
	return &pollers{
		hub:  hub,
		mgr:  mgr,
		q:    q,
		log:  log.Named("realtime.pollers"),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (p *pollers) run() {
	defer close(p.done)
	dashboard := time.NewTicker(dashboardInterval)
	system := time.NewTicker(systemInterval)
	defer dashboard.Stop()
	defer system.Stop()

	for {
		select {
		case <-dashboard.C:
			p.pushDashboard()
		case <-system.C:
			p.pushSystem()
		case <-p.stop:
			return
		}
	}
}

func (p *pollers) pushDashboard() {
	if p.hub.ClientCount() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats := p.mgr.GetStatistics(ctx, false)
	payload := map[string]any{"statistics": stats}
	if qstats, err := p.q.Stats(ctx); err == nil {
		payload["queue"] = qstats
	} else {
		p.log.Warn("queue stats unavailable", zap.Error(err))
	}
	p.hub.Publish(EventDashboardData, payload)
}

func (p *pollers) pushSystem() {
	if p.hub.ClientCount() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.hub.Publish(EventSystemStatus, p.mgr.Status(ctx))
}

func runPollers(lc fx.Lifecycle, hub *Hub, mgr *services.Manager, q *queue.Queue, log *zap.Logger) {
	p := newPollers(hub, mgr, q, log)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go p.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(p.stop)
			select {
			case <-p.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
