// Package metrics provides Prometheus metrics for the caching proxy.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/krisalay/caching-proxy/types"
)

// Prometheus implements types.Metrics on top of a Prometheus registry.
type Prometheus struct {
	// Cache metrics
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheStores  prometheus.Counter
	CacheExpired prometheus.Counter

	// Origin metrics
	OriginRequests *prometheus.CounterVec
	OriginLatency  prometheus.Histogram
	OriginErrors   prometheus.Counter

	registerer prometheus.Registerer
	namespace  string
}

var _ types.Metrics = (*Prometheus)(nil)

// NewPrometheus creates the metrics under namespace and registers them with reg.
func NewPrometheus(namespace string, reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Lookups answered from a fresh cache entry",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Lookups that found no entry or a stale one",
		}),
		CacheStores: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_stores_total",
			Help:      "Origin responses written into the cache",
		}),
		CacheExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expired_total",
			Help:      "Stale entries removed by the sweeper",
		}),

		OriginRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "origin_requests_total",
			Help:      "Origin responses by status code",
		}, []string{"code"}),
		OriginLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "origin_request_duration_seconds",
			Help:      "Origin fetch latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OriginErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "origin_errors_total",
			Help:      "Origin fetches that produced no response",
		}),

		registerer: reg,
		namespace:  namespace,
	}
}

func (m *Prometheus) Hit()         { m.CacheHits.Inc() }
func (m *Prometheus) Miss()        { m.CacheMisses.Inc() }
func (m *Prometheus) Store()       { m.CacheStores.Inc() }
func (m *Prometheus) Expire(n int) { m.CacheExpired.Add(float64(n)) }
func (m *Prometheus) OriginError() { m.OriginErrors.Inc() }

// OriginResponse records one answered origin fetch.
func (m *Prometheus) OriginResponse(status int, took time.Duration) {
	m.OriginRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.OriginLatency.Observe(took.Seconds())
}

// TrackEntries exposes size() as a gauge read at scrape time.
func (m *Prometheus) TrackEntries(size func() int) {
	promauto.With(m.registerer).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "cache_entries",
		Help:      "Entries currently stored, including stale ones not yet swept",
	}, func() float64 { return float64(size()) })
}
