package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
// All helpers are safe to call on a nil *Metrics.
type Metrics struct {
	// Session Metrics
	sessionTransitionsTotal *prometheus.CounterVec
	sessionsActive          prometheus.Gauge
	subscriberDropsTotal    *prometheus.CounterVec

	// Provider Metrics
	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec

	// Transaction Metrics
	transactionsTotal     *prometheus.CounterVec
	transactionAmount     *prometheus.HistogramVec
	insufficientBalance   prometheus.Counter
	confirmationDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHit *prometheus.CounterVec
	solanaRPCRetries      *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		sessionTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_session_transitions_total",
				Help: "Total number of applied session transitions by event kind",
			},
			[]string{"kind"},
		),
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_sessions_active",
				Help: "Number of sessions held by the registry",
			},
		),
		subscriberDropsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_session_subscriber_drops_total",
				Help: "Events dropped because a subscriber buffer was full",
			},
			[]string{"kind"},
		),

		providerCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_provider_calls_total",
				Help: "Total number of wallet provider calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		providerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_provider_call_duration_seconds",
				Help:    "Duration of wallet provider calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"operation"},
		),

		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_transactions_total",
				Help: "Total number of transactions by settlement status",
			},
			[]string{"status", "currency"},
		),
		transactionAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_transaction_amount",
				Help:    "Amount of confirmed transactions",
				Buckets: prometheus.ExponentialBuckets(0.001, 10, 9),
			},
			[]string{"currency"},
		),
		insufficientBalance: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_insufficient_balance_rejections_total",
				Help: "Transfers rejected pre-flight for insufficient balance",
			},
		),
		confirmationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_confirmation_duration_seconds",
				Help:    "Time from send to confirmation of a Solana transfer",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"network", "status"},
		),
		solanaRPCRateLimitHit: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject_prefix", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject_prefix"},
		),
	}
}

// Session metric helpers

// RecordSessionTransition records an applied session transition.
func (m *Metrics) RecordSessionTransition(kind string) {
	if m == nil {
		return
	}
	m.sessionTransitionsTotal.WithLabelValues(kind).Inc()
}

// RecordSessionsActive sets the number of sessions in the registry.
func (m *Metrics) RecordSessionsActive(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// RecordSubscriberDrop records an event dropped for a slow subscriber.
func (m *Metrics) RecordSubscriberDrop(kind string) {
	if m == nil {
		return
	}
	m.subscriberDropsTotal.WithLabelValues(kind).Inc()
}

// Provider metric helpers

// RecordProviderCall records a wallet provider call with duration.
func (m *Metrics) RecordProviderCall(operation string, err error, duration float64) {
	if m == nil {
		return
	}
	m.providerCallsTotal.WithLabelValues(operation, statusFromErr(err)).Inc()
	m.providerCallDuration.WithLabelValues(operation).Observe(duration)
}

// Transaction metric helpers

// RecordTransaction records a settled transaction.
func (m *Metrics) RecordTransaction(status, currency string, amount float64) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(status, currency).Inc()
	if status == "Confirmed" {
		m.transactionAmount.WithLabelValues(currency).Observe(amount)
	}
}

// RecordInsufficientBalance records a pre-flight balance rejection.
func (m *Metrics) RecordInsufficientBalance() {
	if m == nil {
		return
	}
	m.insufficientBalance.Inc()
}

// RecordConfirmation records how long a Solana transfer took to settle.
func (m *Metrics) RecordConfirmation(network, status string, duration float64) {
	if m == nil {
		return
	}
	m.confirmationDuration.WithLabelValues(network, status).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	if m == nil {
		return
	}
	m.solanaRPCRateLimitHit.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	if m == nil {
		return
	}
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, statusFromErr(err)).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	if m == nil {
		return
	}
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	if m == nil {
		return
	}
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subjectPrefix string, err error, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subjectPrefix, statusFromErr(err)).Inc()
	m.natsPublishDuration.WithLabelValues(subjectPrefix).Observe(duration)
}

// Helper functions

func statusFromErr(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
