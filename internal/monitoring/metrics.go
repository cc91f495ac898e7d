// internal/monitoring/metrics.go - Prometheus metrics for the rotation engine
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

const namespace = "proxyrotexter"

// MetricsManager exposes rotation events as Prometheus metrics. It
// implements the rotator's MetricsRecorder interface and additionally
// refreshes pool level gauges from snapshots.
type MetricsManager struct {
	registry *prometheus.Registry

	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	selectionsTotal *prometheus.CounterVec
	bootstrapTotal  *prometheus.CounterVec
	bootstrapAdded  prometheus.Gauge
	poolSize        *prometheus.GaugeVec
	circuitState    *prometheus.GaugeVec
}

// NewMetricsManager creates the metric set on its own registry so two
// managers in one process never collide.
func NewMetricsManager() *MetricsManager {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &MetricsManager{
		registry: registry,
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_attempts_total",
			Help:      "Request attempts through proxies by outcome",
		}, []string{"proxy_id", "outcome"}),
		attemptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of request attempts through proxies",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		selectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Proxy selections by strategy",
		}, []string{"strategy"}),
		bootstrapTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_total",
			Help:      "Pool bootstrap attempts by outcome",
		}, []string{"outcome"}),
		bootstrapAdded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bootstrap_proxies_added",
			Help:      "Proxies added by the last successful bootstrap",
		}),
		poolSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_size",
			Help:      "Pool size by health bucket",
		}, []string{"health"}),
		circuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breakers",
			Help:      "Circuit breaker count by state",
		}, []string{"state"}),
	}
}

// Registry returns the manager's Prometheus registry for serving.
func (m *MetricsManager) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAttempt counts one request attempt and its duration.
func (m *MetricsManager) RecordAttempt(proxyID string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.attemptsTotal.WithLabelValues(proxyID, outcome).Inc()
	m.attemptDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordSelection counts one strategy selection.
func (m *MetricsManager) RecordSelection(strategy string) {
	m.selectionsTotal.WithLabelValues(strategy).Inc()
}

// RecordBootstrap counts one bootstrap attempt.
func (m *MetricsManager) RecordBootstrap(success bool, added int) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.bootstrapTotal.WithLabelValues(outcome).Inc()
	if success {
		m.bootstrapAdded.Set(float64(added))
	}
}

// UpdatePoolGauges refreshes the pool and circuit gauges from rotator
// snapshots. Called by the stats server on each scrape-ish interval.
func (m *MetricsManager) UpdatePoolGauges(stats proxy.PoolStats, circuits map[string]string) {
	m.poolSize.WithLabelValues("healthy").Set(float64(stats.HealthyProxies))
	m.poolSize.WithLabelValues("unhealthy").Set(float64(stats.UnhealthyProxies))
	m.poolSize.WithLabelValues("dead").Set(float64(stats.DeadProxies))

	counts := make(map[string]int, 3)
	for _, state := range circuits {
		counts[state]++
	}
	for _, state := range []string{"CLOSED", "OPEN", "HALF_OPEN"} {
		m.circuitState.WithLabelValues(state).Set(float64(counts[state]))
	}
}
