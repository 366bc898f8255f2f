// Package cache provides the in-memory read cache for dashboard lookups,
// partitioned into categories with independent TTL and capacity budgets.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/invoicehub/internal/clock"
)

// Category names double as key prefixes: a key "statistics:dashboard"
// belongs to the statistics category.
const (
	CategoryStatistics    = "statistics"
	CategoryInvoiceList   = "invoice_list"
	CategorySearchResults = "search_results"
	CategoryInvoiceDetail = "invoice_detail"
	CategoryClientData    = "client_data"
	CategoryAgentConfig   = "agent_config"
	CategoryServiceStatus = "service_status"
)

// Policy holds the TTL and capacity budget for one category.
type Policy struct {
	TTL     time.Duration
	MaxSize int
}

var defaultPolicies = map[string]Policy{
	CategoryStatistics:    {TTL: 5 * time.Minute, MaxSize: 10},
	CategoryInvoiceList:   {TTL: 3 * time.Minute, MaxSize: 20},
	CategorySearchResults: {TTL: 2 * time.Minute, MaxSize: 50},
	CategoryInvoiceDetail: {TTL: 10 * time.Minute, MaxSize: 100},
	CategoryClientData:    {TTL: 15 * time.Minute, MaxSize: 200},
	CategoryAgentConfig:   {TTL: time.Hour, MaxSize: 5},
	CategoryServiceStatus: {TTL: time.Minute, MaxSize: 5},
}

// fallbackPolicy covers keys whose prefix matches no known category.
var fallbackPolicy = Policy{TTL: 5 * time.Minute, MaxSize: 50}

type entry struct {
	value    any
	storedAt time.Time
	category string
}

// CategoryStats is a point-in-time snapshot for one category.
type CategoryStats struct {
	Entries int     `json:"entries"`
	MaxSize int     `json:"max_size"`
	TTL     string  `json:"ttl"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats is a point-in-time snapshot of the whole store.
type Stats struct {
	Entries     int                      `json:"entries"`
	Hits        uint64                   `json:"hits"`
	Misses      uint64                   `json:"misses"`
	Evictions   uint64                   `json:"evictions"`
	CleanupRuns uint64                   `json:"cleanup_runs"`
	HitRate     float64                  `json:"hit_rate"`
	Categories  map[string]CategoryStats `json:"categories"`
}

type counters struct {
	hits   uint64
	misses uint64
}

// Store is a TTL cache with per-category capacity and LRU eviction.
// Reads refresh an entry's timestamp, so hot entries slide their expiry
// forward instead of expiring on a fixed schedule.
type Store struct {
	mu          sync.Mutex
	clk         clock.Clock
	policies    map[string]Policy
	entries     map[string]*entry
	perCat      map[string]counters
	evictions   uint64
	cleanupRuns uint64
}

// New returns an empty store with the default category policies.
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Store{
		clk:      clk,
		policies: defaultPolicies,
		entries:  make(map[string]*entry),
		perCat:   make(map[string]counters),
	}
}

func (s *Store) policyFor(category string) Policy {
	if p, ok := s.policies[category]; ok {
		return p
	}
	return fallbackPolicy
}

func categoryOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// Get returns the cached value for key if present and fresh. A hit
// refreshes the entry's timestamp.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat := categoryOf(key)
	e, ok := s.entries[key]
	if !ok {
		s.miss(cat)
		return nil, false
	}

	now := s.clk.Now()
	if now.Sub(e.storedAt) > s.policyFor(e.category).TTL {
		delete(s.entries, key)
		s.miss(cat)
		return nil, false
	}

	e.storedAt = now
	c := s.perCat[cat]
	c.hits++
	s.perCat[cat] = c
	return e.value, true
}

func (s *Store) miss(category string) {
	c := s.perCat[category]
	c.misses++
	s.perCat[category] = c
}

// Set stores value under key, evicting the category's oldest entries if
// it is at capacity.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat := categoryOf(key)
	pol := s.policyFor(cat)

	if _, exists := s.entries[key]; !exists {
		s.evictOldest(cat, pol.MaxSize)
	}
	s.entries[key] = &entry{value: value, storedAt: s.clk.Now(), category: cat}
}

// evictOldest removes the oldest entries of cat until one more insert fits.
func (s *Store) evictOldest(cat string, maxSize int) {
	count := 0
	for _, e := range s.entries {
		if e.category == cat {
			count++
		}
	}
	for count >= maxSize {
		oldestKey := ""
		var oldestAt time.Time
		for k, e := range s.entries {
			if e.category != cat {
				continue
			}
			if oldestKey == "" || e.storedAt.Before(oldestAt) {
				oldestKey, oldestAt = k, e.storedAt
			}
		}
		if oldestKey == "" {
			return
		}
		delete(s.entries, oldestKey)
		s.evictions++
		count--
	}
}

// Delete removes a single key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// InvalidateCategory drops every entry of the given category and returns
// how many were removed.
func (s *Store) InvalidateCategory(category string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if e.category == category {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Invalidate drops every entry whose key contains the substring and
// returns how many were removed.
func (s *Store) Invalidate(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.entries {
		if strings.Contains(k, substr) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Sweep removes every expired entry and returns how many were dropped.
// Expiry is measured from the last refresh, matching Get.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupRuns++
	now := s.clk.Now()
	removed := 0
	for k, e := range s.entries {
		if now.Sub(e.storedAt) > s.policyFor(e.category).TTL {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the total number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats snapshots hit/miss/eviction counters and per-category occupancy.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Entries:     len(s.entries),
		Evictions:   s.evictions,
		CleanupRuns: s.cleanupRuns,
		Categories:  make(map[string]CategoryStats, len(s.policies)),
	}
	occupancy := make(map[string]int)
	for _, e := range s.entries {
		occupancy[e.category]++
	}
	for cat, pol := range s.policies {
		c := s.perCat[cat]
		cs := CategoryStats{
			Entries: occupancy[cat],
			MaxSize: pol.MaxSize,
			TTL:     pol.TTL.String(),
			Hits:    c.hits,
			Misses:  c.misses,
		}
		if total := c.hits + c.misses; total > 0 {
			cs.HitRate = float64(c.hits) / float64(total)
		}
		st.Categories[cat] = cs
		st.Hits += c.hits
		st.Misses += c.misses
	}
	// Fold in counters for ad-hoc categories outside the known policies.
	for cat, c := range s.perCat {
		if _, known := s.policies[cat]; !known {
			st.Hits += c.hits
			st.Misses += c.misses
		}
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}
