// Package services contains the service access layer: a single
// cache-aware facade over the document store, search index, blob store
// and AI agent. All dashboard reads and writes go through it; it owns
// availability tracking and cache invalidation policy.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/agent"
	"github.com/smallbiznis/invoicehub/internal/blobstore"
	"github.com/smallbiznis/invoicehub/internal/cache"
	"github.com/smallbiznis/invoicehub/internal/clock"
	"github.com/smallbiznis/invoicehub/internal/config"
	"github.com/smallbiznis/invoicehub/internal/docstore"
	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
	"github.com/smallbiznis/invoicehub/internal/resilience"
	"github.com/smallbiznis/invoicehub/internal/searchindex"
)

// Dependency names used in availability maps and connectivity reports.
const (
	DepDocumentStore = "document_store"
	DepSearchIndex   = "search_index"
	DepAIClient      = "ai_client"
	DepAIAgent       = "ai_agent"
	DepBlobStore     = "blob_store"
)

const probeTimeout = 5 * time.Second

// Params collects the manager's dependencies. The search index, blob
// store and agent client are optional; a nil value means the dependency
// is unavailable, not a wiring error.
type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Clk   clock.Clock
	Cache *cache.Store
	Store docstore.Store
	Index searchindex.Index `optional:"true"`
	Blob  blobstore.Store   `optional:"true"`
	Agent agent.Client      `optional:"true"`
}

// Manager is the service access layer. Constructed once at startup and
// passed by reference; no global state.
type Manager struct {
	cfg   config.Config
	log   *zap.Logger
	clk   clock.Clock
	cache *cache.Store
	store docstore.Store
	index searchindex.Index
	blob  blobstore.Store
	agent agent.Client

	executor *resilience.Executor

	mu        sync.RWMutex
	available map[string]bool
}

// New constructs the manager and probes each dependency independently; a
// failed probe marks the dependency unavailable but never fails startup.
func New(p Params) *Manager {
	bcfg := resilience.DefaultBreakerConfig()
	bcfg.Clock = p.Clk

	m := &Manager{
		cfg:   p.Cfg,
		log:   p.Log.Named("services"),
		clk:   p.Clk,
		cache: p.Cache,
		store: p.Store,
		index: p.Index,
		blob:  p.Blob,
		agent: p.Agent,
		executor: resilience.NewExecutor(
			resilience.ExecutorConfig{
				MaxAttempts: 5,
				BaseDelay:   2 * time.Second,
				MaxDelay:    120 * time.Second,
			},
			resilience.NewBreaker(bcfg),
			resilience.NewAdaptiveRateLimiter(p.Clk),
			p.Log,
		),
		available: make(map[string]bool),
	}
	m.RefreshAvailability(context.Background())
	return m
}

// RefreshAvailability re-probes every dependency and returns the fresh map.
func (m *Manager) RefreshAvailability(ctx context.Context) map[string]bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	fresh := map[string]bool{
		DepDocumentStore: m.store != nil && m.store.Ping(ctx) == nil,
		DepSearchIndex:   m.index != nil && m.index.Ping(ctx) == nil,
		DepAIClient:      m.agent != nil,
		DepAIAgent:       m.agent != nil && m.agent.Ping(ctx) == nil,
		DepBlobStore:     m.blob != nil && m.blob.Ping(ctx) == nil,
	}

	m.mu.Lock()
	m.available = fresh
	m.mu.Unlock()

	for dep, ok := range fresh {
		if !ok {
			m.log.Warn("dependency unavailable", zap.String("dependency", dep))
		}
	}
	return m.Availability()
}

// Availability returns a copy of the current availability map.
func (m *Manager) Availability() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.available))
	for k, v := range m.available {
		out[k] = v
	}
	return out
}

func (m *Manager) isAvailable(dep string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available[dep]
}

// Cache keys. The prefix before the first colon is the cache category.
func statisticsKey() string { return cache.CategoryStatistics + ":dashboard" }

func listKey(opts docstore.ListOptions) string {
	return fmt.Sprintf("%s:%s|%s|%d|%d", cache.CategoryInvoiceList, opts.Status, opts.Client, opts.Limit, opts.Offset)
}

func searchKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return cache.CategorySearchResults + ":" + hex.EncodeToString(sum[:8])
}

func detailKey(invoiceNumber string) string {
	return cache.CategoryInvoiceDetail + ":" + invoiceNumber
}

func clientKey(clientName string) string {
	return cache.CategoryClientData + ":" + clientName
}

// GetStatistics returns the dashboard aggregate, cached for five minutes
// unless force bypasses the cache read. When the document store is down
// it returns an empty snapshot with the error field set rather than
// failing.
func (m *Manager) GetStatistics(ctx context.Context, force bool) domain.Statistics {
	if !force {
		if v, ok := m.cache.Get(statisticsKey()); ok {
			return v.(domain.Statistics)
		}
	}
	if !m.isAvailable(DepDocumentStore) {
		return degradedStatistics(m.clk.Now(), "document store not available")
	}

	stats, err := m.store.Statistics(ctx)
	if err != nil {
		m.degrade(DepDocumentStore, "statistics", err)
		return degradedStatistics(m.clk.Now(), "document store not available")
	}
	m.cache.Set(statisticsKey(), stats)
	return stats
}

func degradedStatistics(at time.Time, msg string) domain.Statistics {
	return domain.Statistics{
		ByStatus:    map[domain.InvoiceStatus]int64{},
		GeneratedAt: at,
		Error:       msg,
	}
}

// ListInvoices returns invoices matching opts, cached per filter/page.
func (m *Manager) ListInvoices(ctx context.Context, opts docstore.ListOptions, force bool) []domain.Invoice {
	key := listKey(opts)
	if !force {
		if v, ok := m.cache.Get(key); ok {
			return v.([]domain.Invoice)
		}
	}
	if !m.isAvailable(DepDocumentStore) {
		return []domain.Invoice{}
	}

	invoices, err := m.store.List(ctx, opts)
	if err != nil {
		m.degrade(DepDocumentStore, "list", err)
		return []domain.Invoice{}
	}
	m.cache.Set(key, invoices)
	return invoices
}

// SearchInvoices queries the search index first and falls back to the
// document store's text search when the index errors or comes back
// empty; an unpopulated index must not hide invoices the store knows
// about. Final results are cached by query hash, empty result sets
// included, so repeated misses do not hammer the backends.
func (m *Manager) SearchInvoices(ctx context.Context, query string, force bool) []domain.Invoice {
	key := searchKey(query)
	if !force {
		if v, ok := m.cache.Get(key); ok {
			return v.([]domain.Invoice)
		}
	}

	if m.isAvailable(DepSearchIndex) {
		invoices, err := m.index.Search(ctx, query)
		if err == nil && len(invoices) > 0 {
			m.cache.Set(key, invoices)
			return invoices
		}
		if err != nil {
			m.degrade(DepSearchIndex, "search", err)
		}
	}

	if !m.isAvailable(DepDocumentStore) {
		return []domain.Invoice{}
	}
	invoices, err := m.store.Search(ctx, query)
	if err != nil {
		m.degrade(DepDocumentStore, "search", err)
		return []domain.Invoice{}
	}
	m.cache.Set(key, invoices)
	return invoices
}

// GetInvoice returns one invoice by number, or nil when missing or the
// store is down.
func (m *Manager) GetInvoice(ctx context.Context, invoiceNumber string, force bool) *domain.Invoice {
	key := detailKey(invoiceNumber)
	if !force {
		if v, ok := m.cache.Get(key); ok {
			return v.(*domain.Invoice)
		}
	}
	if !m.isAvailable(DepDocumentStore) {
		return nil
	}

	inv, err := m.store.Get(ctx, invoiceNumber)
	if err != nil {
		if resilience.Classify(err) != resilience.ClassPermanent {
			m.degrade(DepDocumentStore, "get", err)
		}
		return nil
	}
	m.cache.Set(key, inv)
	return inv
}

// GetClientInvoices returns every invoice for a client, cached per client.
func (m *Manager) GetClientInvoices(ctx context.Context, clientName string, force bool) []domain.Invoice {
	key := clientKey(clientName)
	if !force {
		if v, ok := m.cache.Get(key); ok {
			return v.([]domain.Invoice)
		}
	}
	if !m.isAvailable(DepDocumentStore) {
		return []domain.Invoice{}
	}

	invoices, err := m.store.ByClient(ctx, clientName)
	if err != nil {
		m.degrade(DepDocumentStore, "by_client", err)
		return []domain.Invoice{}
	}
	m.cache.Set(key, invoices)
	return invoices
}

// CacheStats exposes the cache counters for diagnostics.
func (m *Manager) CacheStats() cache.Stats {
	return m.cache.Stats()
}

// degrade logs a dependency failure. Read paths never surface these
// errors to callers; availability flags only change on an explicit
// refresh, not on individual call failures.
func (m *Manager) degrade(dep, op string, err error) {
	m.log.Warn("dependency call failed, serving degraded response",
		zap.String("dependency", dep),
		zap.String("operation", op),
		zap.Error(err),
	)
}
