package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartasset/internal/core"
)

const metricsNamespace = "smartasset"

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	interpretations  *prometheus.CounterVec
	interpretLatency prometheus.Histogram
	draftsStaged     prometheus.Counter
	written          *prometheus.CounterVec
	coercions        *prometheus.CounterVec
	suspicious       prometheus.Counter
	rateLimited      prometheus.Counter
}

// NewMetrics registers every collector, plus the Go and process collectors,
// on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		interpretations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "receipt_interpretations_total",
			Help:      "Receipt interpreter calls by outcome.",
		}, []string{"outcome"}),
		interpretLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "receipt_interpretation_seconds",
			Help:      "Latency of receipt interpreter calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		draftsStaged: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "drafts_staged_total",
			Help:      "Draft rows placed in reconciliation buffers.",
		}),
		written: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transactions_written_total",
			Help:      "Transactions appended to the ledger by source.",
		}, []string{"source"}),
		coercions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "coercion_warnings_total",
			Help:      "Draft fields replaced by a default on confirm.",
		}, []string{"field"}),
		suspicious: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "suspicious_requests_total",
			Help:      "Requests matching scanner patterns.",
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
}

// Register adds extra collectors, such as gauges owned by other components.
func (m *Metrics) Register(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest matches trace.Observer.
func (m *Metrics) ObserveRequest(r *http.Request, status int, elapsed time.Duration) {
	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) observeInterpretation(outcome string, elapsed time.Duration, drafts int) {
	m.interpretations.WithLabelValues(outcome).Inc()
	m.interpretLatency.Observe(elapsed.Seconds())
	m.draftsStaged.Add(float64(drafts))
}

func (m *Metrics) observeWritten(source string, n int, warns []core.Warning) {
	m.written.WithLabelValues(source).Add(float64(n))
	for _, w := range warns {
		m.coercions.WithLabelValues(w.Field).Inc()
	}
}
