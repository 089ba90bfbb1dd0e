package wikipack

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// metrics/prometheus for a Prometheus implementation.
type MetricsCollector interface {
	// RecordSearch is called after each exact search with the number of
	// results, the time taken and the error, if any.
	RecordSearch(results int, duration time.Duration, err error)

	// RecordPartialSearch is called after each partial search.
	RecordPartialSearch(results int, duration time.Duration, err error)

	// RecordGetItem is called after each content lookup. kind is "article"
	// or "image"; found is false for not-found results.
	RecordGetItem(kind string, found bool, duration time.Duration)

	// RecordCache reports cumulative hit and miss counts of a named cache
	// ("docstore", "articles", "images", "blob"). It is called from
	// Library.Stats.
	RecordCache(name string, hits, misses int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordPartialSearch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordGetItem(string, bool, time.Duration)     {}
func (NoopMetricsCollector) RecordCache(string, int64, int64)              {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SearchCount             atomic.Int64
	SearchErrors            atomic.Int64
	SearchTotalNanos        atomic.Int64
	PartialSearchCount      atomic.Int64
	PartialSearchErrors     atomic.Int64
	PartialSearchTotalNanos atomic.Int64
	GetItemCount            atomic.Int64
	GetItemMisses           atomic.Int64
	GetItemTotalNanos       atomic.Int64
	CacheHits               atomic.Int64
	CacheMisses             atomic.Int64
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordPartialSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPartialSearch(_ int, duration time.Duration, err error) {
	b.PartialSearchCount.Add(1)
	b.PartialSearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PartialSearchErrors.Add(1)
	}
}

// RecordGetItem implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGetItem(_ string, found bool, duration time.Duration) {
	b.GetItemCount.Add(1)
	b.GetItemTotalNanos.Add(duration.Nanoseconds())
	if !found {
		b.GetItemMisses.Add(1)
	}
}

// RecordCache implements MetricsCollector. Counts are cumulative, so the
// latest report replaces the previous one.
func (b *BasicMetricsCollector) RecordCache(_ string, hits, misses int64) {
	b.CacheHits.Store(hits)
	b.CacheMisses.Store(misses)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SearchCount:           b.SearchCount.Load(),
		SearchErrors:          b.SearchErrors.Load(),
		SearchAvgNanos:        avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		PartialSearchCount:    b.PartialSearchCount.Load(),
		PartialSearchErrors:   b.PartialSearchErrors.Load(),
		PartialSearchAvgNanos: avg(b.PartialSearchTotalNanos.Load(), b.PartialSearchCount.Load()),
		GetItemCount:          b.GetItemCount.Load(),
		GetItemMisses:         b.GetItemMisses.Load(),
		GetItemAvgNanos:       avg(b.GetItemTotalNanos.Load(), b.GetItemCount.Load()),
		CacheHits:             b.CacheHits.Load(),
		CacheMisses:           b.CacheMisses.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SearchCount           int64
	SearchErrors          int64
	SearchAvgNanos        int64
	PartialSearchCount    int64
	PartialSearchErrors   int64
	PartialSearchAvgNanos int64
	GetItemCount          int64
	GetItemMisses         int64
	GetItemAvgNanos       int64
	CacheHits             int64
	CacheMisses           int64
}
