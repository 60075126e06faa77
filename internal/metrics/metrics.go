package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	registry *prometheus.Registry

	// Interaction metrics
	InteractionsReceivedTotal *prometheus.CounterVec
	ResponsesTotal            *prometheus.CounterVec
	ResponseLatency           *prometheus.HistogramVec
	DeadlineExpiredTotal      prometheus.Counter
	LateRepliesTotal          prometheus.Counter

	// Webhook metrics
	SignatureFailuresTotal prometheus.Counter

	// Gateway metrics
	CallbackDeliveriesTotal *prometheus.CounterVec

	// Registry sync metrics
	CommandSyncsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		InteractionsReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interactions_received_total",
				Help: "Total number of interaction payloads received",
			},
			[]string{"transport", "kind"},
		),
		ResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interaction_responses_total",
				Help: "Total number of response envelopes produced",
			},
			[]string{"kind"},
		),
		ResponseLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "interaction_response_seconds",
				Help:    "Time from dispatch to response envelope",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"transport"},
		),
		DeadlineExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "interaction_deadlines_expired_total",
				Help: "Total number of interactions answered by the deadline timer",
			},
		),
		LateRepliesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "interaction_late_replies_total",
				Help: "Total number of replies rejected after the deadline",
			},
		),

		SignatureFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "webhook_signature_failures_total",
				Help: "Total number of webhook deliveries rejected by signature verification",
			},
		),

		CallbackDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_callback_deliveries_total",
				Help: "Total number of gateway callback deliveries",
			},
			[]string{"status"},
		),

		CommandSyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "command_syncs_total",
				Help: "Total number of command registry sync runs",
			},
			[]string{"status"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.InteractionsReceivedTotal)
	m.registry.MustRegister(m.ResponsesTotal)
	m.registry.MustRegister(m.ResponseLatency)
	m.registry.MustRegister(m.DeadlineExpiredTotal)
	m.registry.MustRegister(m.LateRepliesTotal)
	m.registry.MustRegister(m.SignatureFailuresTotal)
	m.registry.MustRegister(m.CallbackDeliveriesTotal)
	m.registry.MustRegister(m.CommandSyncsTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
