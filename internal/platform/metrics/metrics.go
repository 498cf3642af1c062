// Package metrics collects and exposes Prometheus metrics for the portal
// services: catalog cache behaviour, store round-trips, playback resolution.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the counters and histograms shared by the services.
type Collector struct {
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheInvalidations prometheus.Counter
	cacheFallbacks     prometheus.Counter
	storeLatency       prometheus.Histogram
	storeStatus        *prometheus.CounterVec
	playbackResolved   *prometheus.CounterVec
}

// NewCollector registers all metrics on reg and returns the collector.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_catalog_cache_hits_total",
			Help: "Catalog reads served from the in-process cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_catalog_cache_misses_total",
			Help: "Catalog reads that went to the remote store.",
		}),
		cacheInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_catalog_cache_invalidations_total",
			Help: "Times the catalog cache entry was dropped.",
		}),
		cacheFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_catalog_default_fallbacks_total",
			Help: "Catalog reads answered with the default collection.",
		}),
		storeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_store_request_seconds",
			Help:    "Latency of document store round-trips.",
			Buckets: prometheus.DefBuckets,
		}),
		storeStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_store_status_total",
			Help: "Document store responses by HTTP status code.",
		}, []string{"status_code"}),
		playbackResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_playback_resolved_total",
			Help: "Audio source resolutions by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.cacheInvalidations,
		c.cacheFallbacks,
		c.storeLatency,
		c.storeStatus,
		c.playbackResolved,
	)
	return c
}

func (c *Collector) CacheHit()          { c.cacheHits.Inc() }
func (c *Collector) CacheMiss()         { c.cacheMisses.Inc() }
func (c *Collector) CacheInvalidation() { c.cacheInvalidations.Inc() }
func (c *Collector) DefaultFallback()   { c.cacheFallbacks.Inc() }

func (c *Collector) StoreLatency(d time.Duration) { c.storeLatency.Observe(d.Seconds()) }

func (c *Collector) StoreStatus(code int) {
	c.storeStatus.WithLabelValues(strconv.Itoa(code)).Inc()
}

// PlaybackResolved records one resolution outcome: direct, third_party, or embed_fallback.
func (c *Collector) PlaybackResolved(outcome string) {
	c.playbackResolved.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape handler for /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
