package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry        *prometheus.Registry
	decisions       *prometheus.CounterVec
	payments        prometheus.Counter
	appliedAmount   prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	outboxProcessed *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditoya",
			Name:      "loan_decisions_total",
			Help:      "Loan applications decided, by resulting status.",
		}, []string{"status"}),
		payments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "creditoya",
			Name:      "payments_recorded_total",
			Help:      "Payments appended to the ledger.",
		}),
		appliedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "creditoya",
			Name:      "payments_applied_pesos_total",
			Help:      "Sum of applied payment amounts in CLP.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditoya",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "creditoya",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		outboxProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditoya",
			Name:      "outbox_jobs_total",
			Help:      "Outbox jobs handled by the relay, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.decisions, m.payments, m.appliedAmount, m.httpRequests, m.httpDuration, m.outboxProcessed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) LoanDecided(status string) {
	m.decisions.WithLabelValues(status).Inc()
}

func (m *Metrics) PaymentRecorded(applied int64) {
	m.payments.Inc()
	m.appliedAmount.Add(float64(applied))
}

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) OutboxJob(outcome string) {
	m.outboxProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
