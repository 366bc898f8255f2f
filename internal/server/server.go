// Package server exposes the dashboard HTTP API: invoice reads and
// writes through the service access layer, job submission, diagnostics
// and the WebSocket stream.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/config"
	obsmetrics "github.com/smallbiznis/invoicehub/internal/observability/metrics"
	"github.com/smallbiznis/invoicehub/internal/queue"
	"github.com/smallbiznis/invoicehub/internal/realtime"
	"github.com/smallbiznis/invoicehub/internal/services"
)

// Module wires the gin engine, route registration and the HTTP lifecycle.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

// NewEngine builds the shared gin engine with logging, recovery and
// metrics middleware plus the health and metrics endpoints.
func NewEngine(cfg config.Config, log *zap.Logger, m *obsmetrics.Metrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(obsmetrics.GinMiddleware(m))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.AppVersion})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// ServerParams collects the API surface dependencies.
type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	Cfg     config.Config
	Log     *zap.Logger
	Manager *services.Manager
	Queue   *queue.Queue
	WS      *realtime.Handler `optional:"true"`
}

// Server holds the handlers behind the dashboard API.
type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	mgr    *services.Manager
	queue  *queue.Queue
	ws     *realtime.Handler
}

// NewServer builds the API server.
func NewServer(p ServerParams) *Server {
	return &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		log:    p.Log.Named("server"),
		mgr:    p.Manager,
		queue:  p.Queue,
		ws:     p.WS,
	}
}

// RegisterRoutes mounts the dashboard API.
func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api/v1")

	api.GET("/invoices", s.listInvoices)
	api.POST("/invoices", s.createInvoice)
	api.GET("/invoices/search", s.searchInvoices)
	api.GET("/invoices/statistics", s.getStatistics)
	api.GET("/invoices/:number", s.getInvoice)
	api.PATCH("/invoices/:number/status", s.updateInvoiceStatus)
	api.DELETE("/invoices/:number", s.deleteInvoice)
	api.GET("/clients/:name/invoices", s.getClientInvoices)

	api.GET("/status", s.getStatus)
	api.POST("/status/refresh", s.refreshStatus)
	api.GET("/status/connectivity", s.testConnectivity)
	api.GET("/cache/stats", s.getCacheStats)

	api.POST("/jobs", s.enqueueJob)
	api.GET("/jobs/stats", s.getJobStats)
	api.GET("/jobs/:id", s.getJob)
	api.DELETE("/jobs/:id", s.cancelJob)

	if s.ws != nil {
		s.engine.GET("/ws", s.ws.Serve)
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
