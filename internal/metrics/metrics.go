// Package metrics exposes zsnapper's Prometheus counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zsnapper"

// Metrics holds the collectors of one process. All methods are safe on a
// nil receiver so callers that run without metrics need no checks.
type Metrics struct {
	registry *prometheus.Registry

	created         *prometheus.CounterVec
	destroyed       *prometheus.CounterVec
	destroyFailures *prometheus.CounterVec
	sends           *prometheus.CounterVec
	lastRun         prometheus.Gauge
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_created_total",
			Help:      "Snapshots created.",
		}, []string{"filesystem"}),
		destroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_destroyed_total",
			Help:      "Snapshots destroyed by pruning or on request.",
		}, []string{"filesystem"}),
		destroyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "destroy_failures_total",
			Help:      "Snapshot destroy attempts that failed.",
		}, []string{"filesystem"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Replication sends by result.",
		}, []string{"filesystem", "result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed scheduled run.",
		}),
	}

	m.registry.MustRegister(
		m.created,
		m.destroyed,
		m.destroyFailures,
		m.sends,
		m.lastRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SnapshotCreated(fs string) {
	if m != nil {
		m.created.WithLabelValues(fs).Inc()
	}
}

func (m *Metrics) SnapshotDestroyed(fs string) {
	if m != nil {
		m.destroyed.WithLabelValues(fs).Inc()
	}
}

func (m *Metrics) DestroyFailed(fs string) {
	if m != nil {
		m.destroyFailures.WithLabelValues(fs).Inc()
	}
}

// Sent counts a replication attempt; err == nil counts as success.
func (m *Metrics) Sent(fs string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.sends.WithLabelValues(fs, result).Inc()
}

// RunCompleted records the time a scheduled run finished.
func (m *Metrics) RunCompleted(at time.Time) {
	if m != nil {
		m.lastRun.Set(float64(at.Unix()))
	}
}
