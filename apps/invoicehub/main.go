package main

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/invoicehub/internal/agent"
	"github.com/smallbiznis/invoicehub/internal/blobstore"
	"github.com/smallbiznis/invoicehub/internal/cache"
	"github.com/smallbiznis/invoicehub/internal/clock"
	"github.com/smallbiznis/invoicehub/internal/config"
	"github.com/smallbiznis/invoicehub/internal/docstore"
	"github.com/smallbiznis/invoicehub/internal/observability/metrics"
	"github.com/smallbiznis/invoicehub/internal/queue"
	"github.com/smallbiznis/invoicehub/internal/realtime"
	"github.com/smallbiznis/invoicehub/internal/searchindex"
	"github.com/smallbiznis/invoicehub/internal/server"
	"github.com/smallbiznis/invoicehub/internal/services"
	"github.com/smallbiznis/invoicehub/pkg/db"
	"github.com/smallbiznis/invoicehub/pkg/log"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		clock.Module,
		metrics.Module,
		db.Module,

		// Storage and external dependencies. Search, blob storage and
		// the AI agent are optional; missing configuration leaves them
		// out of the graph instead of failing startup.
		cache.Module,
		docstore.Module,
		searchindex.Module,
		blobstore.Module,
		agent.Module,

		services.Module,
		queue.Module,
		realtime.Module,
		server.Module,

		fx.Provide(func(m *metrics.Metrics) queue.Recorder { return m }),
		fx.Provide(func(m *metrics.Metrics) realtime.ClientGauge { return m }),
	)
	app.Run()
}
