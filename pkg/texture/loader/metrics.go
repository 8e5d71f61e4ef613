package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the loader's counters. All methods are nil-safe so the
// loader can run unmetered.
type Metrics struct {
	requests     *prometheus.CounterVec
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	fetchedBytes prometheus.Counter
}

// NewMetrics registers the loader metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "texloader_requests_total",
			Help: "Texture requests by terminal outcome.",
		}, []string{"outcome"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "texloader_cache_hits_total",
			Help: "Requests served from the local cache.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "texloader_cache_misses_total",
			Help: "Cache lookups that fell through to a network fetch.",
		}),
		fetchedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "texloader_fetched_bytes_total",
			Help: "Bytes downloaded from remote sources.",
		}),
	}
}

func (m *Metrics) observeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) observeCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) observeFetchedBytes(n int) {
	if m == nil {
		return
	}
	m.fetchedBytes.Add(float64(n))
}
