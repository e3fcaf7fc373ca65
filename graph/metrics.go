package graph

import (
	"github.com/prometheus/client_golang/prometheus"
)

// cacheMetrics holds Prometheus metrics for path cache operations.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	inserts   prometheus.Counter
	evictions prometheus.Counter
	reloads   prometheus.Counter

	size prometheus.Gauge
}

// newCacheMetrics creates the path cache metrics for one database and
// registers them with reg.
func newCacheMetrics(reg prometheus.Registerer, database string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"database": database}
	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "arbor",
			Subsystem:   "path_cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Total number of path cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "arbor",
			Subsystem:   "path_cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Total number of path cache misses",
		}),
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "arbor",
			Subsystem:   "path_cache",
			Name:        "inserts_total",
			ConstLabels: labels,
			Help:        "Total number of nodes inserted into the path cache",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "arbor",
			Subsystem:   "path_cache",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Total number of nodes evicted from the path cache",
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "arbor",
			Subsystem:   "path_cache",
			Name:        "reloads_total",
			ConstLabels: labels,
			Help:        "Total number of cached nodes reloaded from the store",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "arbor",
			Subsystem:   "path_cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of nodes in the path cache",
		}),
	}

	for _, c := range []prometheus.Collector{m.hits, m.misses, m.inserts, m.evictions, m.reloads, m.size} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// The record methods are no-ops on a nil receiver so the cache can run
// without metrics.

func (m *cacheMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *cacheMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *cacheMetrics) recordInsert() {
	if m != nil {
		m.inserts.Inc()
	}
}

func (m *cacheMetrics) recordEvictions(n int) {
	if m != nil {
		m.evictions.Add(float64(n))
	}
}

func (m *cacheMetrics) recordReload() {
	if m != nil {
		m.reloads.Inc()
	}
}

func (m *cacheMetrics) updateSize(size int) {
	if m != nil {
		m.size.Set(float64(size))
	}
}
