// Package metrics exposes reconciliation and feed counters in Prometheus format.
// Every recorder is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xui-sub-sync/internal/models"
)

const namespace = "subsync"

// Metrics holds the collectors of one process
type Metrics struct {
	registry *prometheus.Registry

	passes           prometheus.Counter
	passesSkipped    prometheus.Counter
	passDuration     prometheus.Histogram
	hostResults      *prometheus.CounterVec
	clientsFixed     *prometheus.CounterVec
	fixFailures      *prometheus.CounterVec
	feedFallbacks    *prometheus.CounterVec
	feedOmitted      *prometheus.CounterVec
	feedDuplicates   prometheus.Counter
	selectorDiscards prometheus.Counter
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Reconciliation passes completed.",
		}),
		passesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_skipped_total",
			Help:      "Scheduled ticks skipped because a pass was still running.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a reconciliation pass.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		hostResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_results_total",
			Help:      "Per host reconciliation outcomes by status.",
		}, []string{"host", "status"}),
		clientsFixed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_fixed_total",
			Help:      "Client entries whose flow was corrected.",
		}, []string{"host"}),
		fixFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fix_failures_total",
			Help:      "Corrections or inbound inspections that failed.",
		}, []string{"host"}),
		feedFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fallbacks_total",
			Help:      "Feed lines served from the cached connection string.",
		}, []string{"host"}),
		feedOmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_omitted_total",
			Help:      "Feed lines dropped because no live or cached line existed.",
		}, []string{"host"}),
		feedDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_duplicates_dropped_total",
			Help:      "Feed lines dropped as exact duplicates.",
		}),
		selectorDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_discards_total",
			Help:      "Provisioned entries superseded by a later expiring entry on the same host.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.passes,
		m.passesSkipped,
		m.passDuration,
		m.hostResults,
		m.clientsFixed,
		m.fixFailures,
		m.feedFallbacks,
		m.feedOmitted,
		m.feedDuplicates,
		m.selectorDiscards,
	)
	return m
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// PassCompleted records a finished pass
func (m *Metrics) PassCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.passDuration.Observe(d.Seconds())
}

// PassSkipped records a tick that found a pass in flight
func (m *Metrics) PassSkipped() {
	if m == nil {
		return
	}
	m.passesSkipped.Inc()
}

// HostReconciled records one host's pass outcome
func (m *Metrics) HostReconciled(result *models.HostResult) {
	if m == nil || result == nil {
		return
	}
	m.hostResults.WithLabelValues(result.Host, result.Status()).Inc()
	if result.Fixed > 0 {
		m.clientsFixed.WithLabelValues(result.Host).Add(float64(result.Fixed))
	}
	if result.Failed > 0 {
		m.fixFailures.WithLabelValues(result.Host).Add(float64(result.Failed))
	}
}

// FeedFallback records a line served from cache
func (m *Metrics) FeedFallback(host string) {
	if m == nil {
		return
	}
	m.feedFallbacks.WithLabelValues(host).Inc()
}

// FeedOmitted records a line left out of a feed
func (m *Metrics) FeedOmitted(host string) {
	if m == nil {
		return
	}
	m.feedOmitted.WithLabelValues(host).Inc()
}

// FeedDuplicatesDropped records lines removed by the content dedup
func (m *Metrics) FeedDuplicatesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.feedDuplicates.Add(float64(n))
}

// SelectorDiscards records entries dropped by the key selector
func (m *Metrics) SelectorDiscards(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.selectorDiscards.Add(float64(n))
}
