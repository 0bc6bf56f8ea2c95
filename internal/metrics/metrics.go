// Package metrics exports gateway counters on the admin listener.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the gateway's Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
	preflightTotal   prometheus.Counter
}

// NewCollector creates and registers the gateway metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Requests handled, by classification, method and final status.",
		}, []string{"class", "method", "status"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Degraded responses, by error kind.",
		}, []string{"kind"}),
		upstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_upstream_duration_seconds",
			Help:    "Upstream call latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		preflightTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_preflight_total",
			Help: "CORS preflights answered locally.",
		}),
	}
	reg.MustRegister(c.requestsTotal, c.errorsTotal, c.upstreamDuration, c.preflightTotal)
	return c
}

// RecordRequest records a completed request.
func (c *Collector) RecordRequest(isAPI bool, method string, status int) {
	class := "page"
	if isAPI {
		class = "api"
	}
	c.requestsTotal.WithLabelValues(class, method, strconv.Itoa(status)).Inc()
}

// RecordError records a degraded response by error kind.
func (c *Collector) RecordError(kind string) {
	c.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordUpstream records one upstream call duration.
func (c *Collector) RecordUpstream(d time.Duration) {
	c.upstreamDuration.Observe(d.Seconds())
}

// RecordPreflight records a locally answered preflight.
func (c *Collector) RecordPreflight() {
	c.preflightTotal.Inc()
}

// Handler serves the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
