package dircache

import (
	"sync"
	"sync/atomic"
)

// Metrics tracks performance and recovery statistics for the six index
// caches, in the style of the teacher's ldap_cache.Metrics: counters kept
// cheap to update on the hot path, a small mutex-guarded map for the
// per-cache breakdown, and a summary view for monitoring.
type Metrics struct {
	mu        sync.RWMutex
	hits      map[string]int64
	misses    map[string]int64
	evictions map[string]int64
	collapses map[string]int64

	fkRetries       int64 // AddUserGroups foreign-key-violation retries
	uniqueSwallowed int64 // AddUserGroups unique-violations treated as success
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		hits:      make(map[string]int64),
		misses:    make(map[string]int64),
		evictions: make(map[string]int64),
		collapses: make(map[string]int64),
	}
}

// RecordHit records a cache hit for the named cache.
func (m *Metrics) RecordHit(cache string) { m.inc(m.hits, cache) }

// RecordMiss records a cache miss for the named cache.
func (m *Metrics) RecordMiss(cache string) { m.inc(m.misses, cache) }

// RecordEviction records any removal — explicit, TTL, or size — from the
// named cache.
func (m *Metrics) RecordEviction(cache string) { m.inc(m.evictions, cache) }

// RecordSingleflightCollapse records that a load result for the named
// cache was shared among concurrent callers. Every caller that received
// the shared result counts once, the caller that ran the loader included.
func (m *Metrics) RecordSingleflightCollapse(cache string) { m.inc(m.collapses, cache) }

// RecordForeignKeyRetry records one AddUserGroups cache-invalidate-and-
// retry cycle triggered by a foreign-key violation.
func (m *Metrics) RecordForeignKeyRetry() {
	atomic.AddInt64(&m.fkRetries, 1)
}

// RecordUniqueViolationSwallowed records one AddUserGroups unique-key
// violation that was treated as success rather than surfaced.
func (m *Metrics) RecordUniqueViolationSwallowed() {
	atomic.AddInt64(&m.uniqueSwallowed, 1)
}

func (m *Metrics) inc(counter map[string]int64, cache string) {
	m.mu.Lock()
	counter[cache]++
	m.mu.Unlock()
}

// CacheStats is the hit/miss/eviction breakdown for a single index cache.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Collapses int64   `json:"singleflight_collapses"`
	HitRate   float64 `json:"hit_rate"`
}

// SummaryStats is a comprehensive, monitoring-friendly view of cache
// performance and coherence-layer recovery activity.
type SummaryStats struct {
	PerCache                  map[string]CacheStats `json:"per_cache"`
	ForeignKeyRetries         int64                 `json:"foreign_key_retries"`
	UniqueViolationsSwallowed int64                 `json:"unique_violations_swallowed"`
}

// GetSummaryStats returns a snapshot of every counter tracked so far.
func (m *Metrics) GetSummaryStats() SummaryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make(map[string]struct{}, len(m.hits)+len(m.misses)+len(m.evictions)+len(m.collapses))
	for n := range m.hits {
		names[n] = struct{}{}
	}
	for n := range m.misses {
		names[n] = struct{}{}
	}
	for n := range m.evictions {
		names[n] = struct{}{}
	}
	for n := range m.collapses {
		names[n] = struct{}{}
	}

	perCache := make(map[string]CacheStats, len(names))
	for name := range names {
		hits := m.hits[name]
		misses := m.misses[name]

		var hitRate float64
		if total := hits + misses; total > 0 {
			hitRate = float64(hits) / float64(total) * 100
		}

		perCache[name] = CacheStats{
			Hits:      hits,
			Misses:    misses,
			Evictions: m.evictions[name],
			Collapses: m.collapses[name],
			HitRate:   hitRate,
		}
	}

	return SummaryStats{
		PerCache:                  perCache,
		ForeignKeyRetries:         atomic.LoadInt64(&m.fkRetries),
		UniqueViolationsSwallowed: atomic.LoadInt64(&m.uniqueSwallowed),
	}
}
