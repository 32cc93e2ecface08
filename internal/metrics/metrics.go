// Package metrics registers the Prometheus collectors for the read cache,
// the store lock and committed mutations. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stockcount"

type Metrics struct {
	cacheRequests *prometheus.CounterVec
	lockAttempts  *prometheus.CounterVec
	mutations     *prometheus.CounterVec
	version       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "read_cache",
			Name:      "requests_total",
			Help:      "Read cache lookups by operation and result (hit, miss, error).",
		}, []string{"operation", "result"}),
		lockAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store_lock",
			Name:      "acquisitions_total",
			Help:      "Store lock acquisition attempts by result (acquired, timeout, canceled).",
		}, []string{"result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_committed_total",
			Help:      "Committed mutations by action.",
		}, []string{"action"}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_version",
			Help:      "Latest committed store version token.",
		}),
	}
	reg.MustRegister(m.cacheRequests, m.lockAttempts, m.mutations, m.version)
	return m
}

func (m *Metrics) CacheResult(operation, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) LockAttempt(result string) {
	if m == nil {
		return
	}
	m.lockAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) MutationCommitted(action string, version uint64) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(action).Inc()
	m.version.Set(float64(version))
}
