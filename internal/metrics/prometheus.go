// Package metrics exposes gateway metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "siteadmin_gateway"

// PrometheusMetrics holds the gateway collectors. A nil *PrometheusMetrics
// records nothing.
type PrometheusMetrics struct {
	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	UpstreamFailures *prometheus.CounterVec
	UpstreamUp       prometheus.Gauge
	UpstreamLatency  prometheus.Gauge
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Handled requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Proxy operations answered with upstream_error.",
		}, []string{"operation"}),
		UpstreamUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_up",
			Help:      "Result of the last backend probe (1 = reachable).",
		}),
		UpstreamLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_probe_latency_seconds",
			Help:      "Latency of the last backend probe.",
		}),
	}

	for _, c := range []prometheus.Collector{m.Requests, m.RequestDuration, m.UpstreamFailures, m.UpstreamUp, m.UpstreamLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordRequest counts one handled request.
func (m *PrometheusMetrics) RecordRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordUpstreamFailure counts a proxy operation that fell back to 502.
func (m *PrometheusMetrics) RecordUpstreamFailure(operation string) {
	if m == nil {
		return
	}
	m.UpstreamFailures.WithLabelValues(operation).Inc()
}

// SetUpstreamStatus records a probe result.
func (m *PrometheusMetrics) SetUpstreamStatus(up bool, latency time.Duration) {
	if m == nil {
		return
	}
	if up {
		m.UpstreamUp.Set(1)
	} else {
		m.UpstreamUp.Set(0)
	}
	m.UpstreamLatency.Set(latency.Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
