package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "market_pulse"

// Fetch outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
)

// -----------------------------------------------------------------------------
// Collector owns the feed's prometheus instruments on a private registry.
// A nil *Collector is valid and records nothing.
// -----------------------------------------------------------------------------

type Collector struct {
	registry       *prometheus.Registry
	fetchAttempts  *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	activeSessions prometheus.Gauge
	pushes         *prometheus.CounterVec
	lastSuccess    prometheus.Gauge
}

// -----------------------------------------------------------------------------

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_attempts_total",
			Help:      "Upstream fetches by outcome.",
		}, []string{"outcome"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of upstream fetches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "active_sessions",
			Help:      "Connected subscriber sessions.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "pushes_total",
			Help:      "Messages enqueued to subscribers by type.",
		}, []string{"type"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful upstream fetch.",
		}),
	}

	c.registry.MustRegister(
		c.fetchAttempts,
		c.fetchLatency,
		c.activeSessions,
		c.pushes,
		c.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// -----------------------------------------------------------------------------

// ObserveFetch records one upstream call. outcome is OutcomeSuccess or an error kind.
func (c *Collector) ObserveFetch(outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.fetchAttempts.WithLabelValues(outcome).Inc()
	c.fetchLatency.Observe(took.Seconds())
}

// -----------------------------------------------------------------------------

func (c *Collector) SetLastSuccess(at time.Time) {
	if c == nil {
		return
	}
	c.lastSuccess.Set(float64(at.Unix()))
}

// -----------------------------------------------------------------------------

func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.activeSessions.Inc()
}

func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}

// -----------------------------------------------------------------------------

func (c *Collector) PushSent(messageType string) {
	if c == nil {
		return
	}
	c.pushes.WithLabelValues(messageType).Inc()
}

// -----------------------------------------------------------------------------

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}
