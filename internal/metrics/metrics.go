// Package metrics defines the Prometheus metrics exported on /metrics.
//
// All Record/Set helpers are nil-safe so packages can be exercised in tests
// without a registry.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Dialogue metrics
	TurnsTotal          *prometheus.CounterVec
	TurnDuration        prometheus.Histogram
	SessionsActive      prometheus.Gauge
	ClarificationsTotal prometheus.Counter
	EventsPublished     *prometheus.CounterVec

	// LLM metrics
	LLMTotal          *prometheus.CounterVec
	LLMDuration       *prometheus.HistogramVec
	LLMFallbackTotal  *prometheus.CounterVec
	LLMMalformedTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterClients *prometheus.GaugeVec

	// Archive metrics
	ArchiveUploadsTotal *prometheus.CounterVec

	// Logging metrics
	LogRecordsDropped *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniflow_turns_total",
				Help: "Total number of dialogue turns by resulting stage and status",
			},
			[]string{"stage", "status"}, // status: success, error, rejected
		),

		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uniflow_turn_duration_seconds",
				Help:    "End-to-end dialogue turn duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60}, // Bounded by the 60s LLM budget
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "uniflow_sessions_active",
				Help: "Number of live conversation sessions",
			},
		),

		ClarificationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uniflow_clarifications_total",
				Help: "Total number of clarification questions asked (e.g. bare weekdays)",
			},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniflow_events_published_total",
				Help: "Total number of events published by type",
			},
			[]string{"type"}, // type: recruit, activity, lecture
		),

		LLMTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniflow_llm_requests_total",
				Help: "Total LLM requests by provider, operation and status",
			},
			[]string{"provider", "operation", "status"}, // operation: classify, extract, respond
		),

		LLMDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uniflow_llm_duration_seconds",
				Help:    "LLM request duration in seconds by provider and operation",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "operation"},
		),

		LLMFallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniflow_llm_fallback_total",
				Help: "Total number of successful fallbacks between models or providers",
			},
			[]string{"from", "to", "operation"},
		),

		LLMMalformedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniflow_llm_malformed_total",
				Help: "Total number of model responses that could not be parsed",
			},
			[]string{"operation"},
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniflow_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: invalid_input, not_found, upstream, rate_limit, internal
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniflow_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: client, global
		),

		RateLimiterClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uniflow_rate_limiter_clients",
				Help: "Number of clients currently tracked by a keyed rate limiter",
			},
			[]string{"limiter_type"},
		),

		ArchiveUploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniflow_archive_uploads_total",
				Help: "Total number of archive uploads by status",
			},
			[]string{"status"},
		),

		LogRecordsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniflow_log_records_dropped_total",
				Help: "Log records that never reached the remote sink",
			},
			[]string{"reason"}, // reason: buffer_full, closed, sink_error
		),
	}
}

var global atomic.Pointer[Metrics]

// InitGlobal installs m as the process-wide instance used by packages that
// have no handle of their own (genai, nlu, the async log sink).
func InitGlobal(m *Metrics) {
	global.Store(m)
}

// Global returns the process-wide instance, or nil before InitGlobal.
func Global() *Metrics {
	return global.Load()
}

// RecordTurn records a finished dialogue turn
func (m *Metrics) RecordTurn(stage, status string, duration float64) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(stage, status).Inc()
	m.TurnDuration.Observe(duration)
}

// SetSessionsActive sets the live session gauge
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))
}

// RecordClarification records a clarification question
func (m *Metrics) RecordClarification() {
	if m == nil {
		return
	}
	m.ClarificationsTotal.Inc()
}

// RecordEventPublished records a published event
func (m *Metrics) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordLLMRequest records one model call
func (m *Metrics) RecordLLMRequest(provider, operation, status string, duration float64) {
	if m == nil {
		return
	}
	m.LLMTotal.WithLabelValues(provider, operation, status).Inc()
	if status == "success" {
		m.LLMDuration.WithLabelValues(provider, operation).Observe(duration)
	}
}

// RecordLLMFallback records a request answered by a fallback model
func (m *Metrics) RecordLLMFallback(from, to, operation string) {
	if m == nil {
		return
	}
	m.LLMFallbackTotal.WithLabelValues(from, to, operation).Inc()
}

// RecordLLMMalformed records an unparseable model response
func (m *Metrics) RecordLLMMalformed(operation string) {
	if m == nil {
		return
	}
	m.LLMMalformedTotal.WithLabelValues(operation).Inc()
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterClients sets the tracked client count for a keyed limiter
func (m *Metrics) SetRateLimiterClients(limiterType string, count int) {
	if m == nil {
		return
	}
	m.RateLimiterClients.WithLabelValues(limiterType).Set(float64(count))
}

// RecordArchiveUpload records an archive upload result
func (m *Metrics) RecordArchiveUpload(status string) {
	if m == nil {
		return
	}
	m.ArchiveUploadsTotal.WithLabelValues(status).Inc()
}

// RecordLogDropped records a log record lost by the async sink
func (m *Metrics) RecordLogDropped(reason string) {
	if m == nil {
		return
	}
	m.LogRecordsDropped.WithLabelValues(reason).Inc()
}
