package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// ExternalAPIMetrics contains all metrics for external API monitoring
type ExternalAPIMetrics struct {
	// API call duration histogram
	apiDuration *prometheus.HistogramVec

	// API call count counter
	apiCalls *prometheus.CounterVec

	// Circuit breaker state gauge
	circuitBreakerState *prometheus.GaugeVec

	// Timeout count counter
	timeouts *prometheus.CounterVec
}

// NewExternalAPIMetrics creates a new instance of external API metrics
func NewExternalAPIMetrics() *ExternalAPIMetrics {
	return &ExternalAPIMetrics{
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paylink_external_api_duration_seconds",
				Help:    "Duration of external API calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api_name", "endpoint", "status"},
		),

		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paylink_external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api_name", "status"},
		),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "paylink_circuit_breaker_state",
				Help: "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"api_name"},
		),

		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paylink_external_api_timeouts_total",
				Help: "Total number of external API timeouts",
			},
			[]string{"api_name", "timeout_type"},
		),
	}
}

// MustRegister registers all metrics with the provided registry
func (m *ExternalAPIMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.apiDuration,
		m.apiCalls,
		m.circuitBreakerState,
		m.timeouts,
	)
}

// RecordAPICall records an API call with duration and status
func (m *ExternalAPIMetrics) RecordAPICall(apiName, endpoint, status string, duration float64) {
	m.apiDuration.WithLabelValues(apiName, endpoint, status).Observe(duration)
	m.apiCalls.WithLabelValues(apiName, status).Inc()
}

// UpdateCircuitBreakerState updates the circuit breaker state metric
func (m *ExternalAPIMetrics) UpdateCircuitBreakerState(apiName string, state gobreaker.State) {
	m.circuitBreakerState.WithLabelValues(apiName).Set(float64(state))
}

// RecordTimeout records a timeout event
func (m *ExternalAPIMetrics) RecordTimeout(apiName, timeoutType string) {
	m.timeouts.WithLabelValues(apiName, timeoutType).Inc()
}

// SettlementMetrics tracks the settlement worker. A nil receiver records nothing.
type SettlementMetrics struct {
	jobs              *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	confirmationPolls *prometheus.CounterVec
	events            *prometheus.CounterVec
}

func NewSettlementMetrics() *SettlementMetrics {
	return &SettlementMetrics{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paylink_settlement_jobs_total",
				Help: "Settlement job runs by outcome",
			},
			[]string{"outcome"}, // completed, retry, failed, noop
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paylink_settlement_job_duration_seconds",
				Help:    "Wall time of one settlement job run",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800, 3600},
			},
			[]string{"outcome"},
		),
		confirmationPolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paylink_settlement_confirmation_polls_total",
				Help: "Receipt polls made while waiting for confirmations",
			},
			[]string{"chain_id"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paylink_settlement_events_total",
				Help: "Payment events emitted by the settlement worker",
			},
			[]string{"type"},
		),
	}
}

func (m *SettlementMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(m.jobs, m.jobDuration, m.confirmationPolls, m.events)
}

func (m *SettlementMetrics) RecordJob(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(outcome).Inc()
	m.jobDuration.WithLabelValues(outcome).Observe(seconds)
}

func (m *SettlementMetrics) RecordPoll(chainID string) {
	if m == nil {
		return
	}
	m.confirmationPolls.WithLabelValues(chainID).Inc()
}

func (m *SettlementMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// RealtimeMetrics tracks the websocket fanout. A nil receiver records nothing.
type RealtimeMetrics struct {
	connections prometheus.Gauge
	delivered   *prometheus.CounterVec
	published   *prometheus.CounterVec
	rateLimited prometheus.Counter
}

func NewRealtimeMetrics() *RealtimeMetrics {
	return &RealtimeMetrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paylink_realtime_connections",
			Help: "Live websocket connections on this process",
		}),
		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paylink_realtime_events_delivered_total",
				Help: "Events written to local sessions by route",
			},
			[]string{"route"},
		),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paylink_realtime_events_published_total",
				Help: "Events published to the shared channel",
			},
			[]string{"status"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paylink_realtime_rate_limited_total",
			Help: "Client messages rejected by the rate limiter",
		}),
	}
}

func (m *RealtimeMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(m.connections, m.delivered, m.published, m.rateLimited)
}

func (m *RealtimeMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *RealtimeMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *RealtimeMetrics) RecordDelivered(route string, sessions int) {
	if m == nil || sessions == 0 {
		return
	}
	m.delivered.WithLabelValues(route).Add(float64(sessions))
}

func (m *RealtimeMetrics) RecordPublished(status string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(status).Inc()
}

func (m *RealtimeMetrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
