package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "iute_bridge"

// Metrics owns its registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec
	GatewayCalls      *prometheus.CounterVec
	SignatureFailures *prometheus.CounterVec
	StoreFailures     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		}, []string{"route"}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Outbound Iute API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		SignatureFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_signature_failures_total",
			Help:      "Rejected webhook signatures by failure code.",
		}, []string{"code"}),
		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_store_failures_total",
			Help:      "Best-effort order store writes that failed.",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		m.Requests, m.LatencyMS, m.GatewayCalls, m.SignatureFailures, m.StoreFailures,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, http.StatusText(status)).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) GatewayCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) SignatureFailure(code string) {
	if m == nil {
		return
	}
	m.SignatureFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) StoreFailure(operation string) {
	if m == nil {
		return
	}
	m.StoreFailures.WithLabelValues(operation).Inc()
}
