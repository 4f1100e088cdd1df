package core

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bizpulse/internal/types"
)

// PrometheusMetrics holds the Prometheus collectors of the API process.
// Besides request telemetry it counts the domain events that operators
// watch: payments, insight generations and upstream failures.
type PrometheusMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	PaymentsTotal    *prometheus.CounterVec
	InsightsTotal    *prometheus.CounterVec
	ExternalFailures *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewPrometheusMetrics registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid global state.
func NewPrometheusMetrics(namespace string, reg *prometheus.Registry) *PrometheusMetrics {
	if namespace == "" {
		namespace = types.DefaultMetricNamespace
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      types.MetricHTTPRequests,
				Help:      "Total number of HTTP requests processed",
			},
			[]string{types.LabelMethod, types.LabelEndpoint, types.LabelStatus},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      types.MetricHTTPRequestDuration,
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{types.LabelMethod, types.LabelEndpoint},
		),
		PaymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      types.MetricPaymentsProcessed,
				Help:      "Total number of payments recorded, by provider and status",
			},
			[]string{types.LabelProvider, types.LabelStatus},
		),
		InsightsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      types.MetricInsightsGenerated,
				Help:      "Total number of insight reports, by summary source",
			},
			[]string{types.LabelSource},
		),
		ExternalFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      types.MetricExternalAPIFailure,
				Help:      "Total number of failed calls to upstream providers",
			},
			[]string{types.LabelProvider},
		),
		gatherer: reg,
	}
}

// RecordRequest implements MetricsCollector.
func (m *PrometheusMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPayment counts a recorded payment.
func (m *PrometheusMetrics) RecordPayment(provider string, status types.PaymentStatus) {
	m.PaymentsTotal.WithLabelValues(provider, string(status)).Inc()
}

// RecordInsight counts an insight report by the source of its summary
// ("ai" or "rules").
func (m *PrometheusMetrics) RecordInsight(source string) {
	m.InsightsTotal.WithLabelValues(source).Inc()
}

// RecordExternalFailure counts a failed upstream call.
func (m *PrometheusMetrics) RecordExternalFailure(provider string) {
	m.ExternalFailures.WithLabelValues(provider).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
