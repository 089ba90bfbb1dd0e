// Package prometheus exports wikipack metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c, _ := wpprom.New(reg)
//	lib, _ := wikipack.OpenLocal(ctx, dir, wikipack.WithMetricsCollector(c))
//	http.Handle("/metrics", wpprom.Handler(reg))
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/wikipack"
)

const namespace = "wikipack"

var _ wikipack.MetricsCollector = (*Collector)(nil)

// Collector implements wikipack.MetricsCollector with Prometheus metrics.
type Collector struct {
	searches      *prometheus.CounterVec
	searchLatency *prometheus.HistogramVec
	searchResults *prometheus.HistogramVec
	items         *prometheus.CounterVec
	itemLatency   *prometheus.HistogramVec
	cacheHits     *prometheus.GaugeVec
	cacheMisses   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by mode (exact, partial) and status (ok, error).",
		}, []string{"mode", "status"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"mode"}),
		searchResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results per search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
		}, []string{"mode"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Content lookups by kind (article, image) and result (found, not_found).",
		}, []string{"kind", "result"}),
		itemLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Content lookup latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		cacheHits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_hits",
			Help:      "Cumulative cache hits as of the last Library.Stats call.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_misses",
			Help:      "Cumulative cache misses as of the last Library.Stats call.",
		}, []string{"cache"}),
	}
	for _, m := range []prometheus.Collector{
		c.searches, c.searchLatency, c.searchResults, c.items, c.itemLatency, c.cacheHits, c.cacheMisses,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) recordSearch(mode string, results int, d time.Duration, err error) {
	c.searches.WithLabelValues(mode, status(err)).Inc()
	c.searchLatency.WithLabelValues(mode).Observe(d.Seconds())
	if err == nil {
		c.searchResults.WithLabelValues(mode).Observe(float64(results))
	}
}

// RecordSearch implements wikipack.MetricsCollector.
func (c *Collector) RecordSearch(results int, d time.Duration, err error) {
	c.recordSearch("exact", results, d, err)
}

// RecordPartialSearch implements wikipack.MetricsCollector.
func (c *Collector) RecordPartialSearch(results int, d time.Duration, err error) {
	c.recordSearch("partial", results, d, err)
}

// RecordGetItem implements wikipack.MetricsCollector.
func (c *Collector) RecordGetItem(kind string, found bool, d time.Duration) {
	result := "found"
	if !found {
		result = "not_found"
	}
	c.items.WithLabelValues(kind, result).Inc()
	c.itemLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordCache implements wikipack.MetricsCollector.
func (c *Collector) RecordCache(name string, hits, misses int64) {
	c.cacheHits.WithLabelValues(name).Set(float64(hits))
	c.cacheMisses.WithLabelValues(name).Set(float64(misses))
}
