package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Upstream fetch metrics (raw RPC and enhanced feed)
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCRateLimitHits     *prometheus.CounterVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec
	enhancedFeedCallsTotal     *prometheus.CounterVec
	enhancedFeedCallDuration   *prometheus.HistogramVec

	// Classification metrics
	transactionsClassifiedTotal *prometheus.CounterVec
	transactionsDroppedTotal    *prometheus.CounterVec

	// Scan workflow metrics
	scanWorkflowDuration        *prometheus.HistogramVec
	scanWorkflowExecutionsTotal *prometheus.CounterVec
	activityDuration            *prometheus.HistogramVec

	// Database metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS metrics
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
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures fetched per GetSignaturesForAddress call",
				Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
			},
			[]string{"endpoint"},
		),
		enhancedFeedCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enhanced_feed_calls_total",
				Help: "Total number of enhanced feed API calls by status",
			},
			[]string{"status"},
		),
		enhancedFeedCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enhanced_feed_call_duration_seconds",
				Help:    "Duration of enhanced feed API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"status"},
		),

		transactionsClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_classified_total",
				Help: "Total number of transactions classified, by resulting type",
			},
			[]string{"wallet_address", "type"},
		),
		transactionsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_dropped_total",
				Help: "Total number of transactions dropped during a scan",
			},
			[]string{"wallet_address", "reason"},
		),

		scanWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scan_workflow_duration_seconds",
				Help:    "Duration of scan workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"wallet_address", "status"},
		),
		scanWorkflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_workflow_executions_total",
				Help: "Total number of scan workflow executions",
			},
			[]string{"wallet_address", "status"},
		),

		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "activity_duration_seconds",
				Help:    "Duration of workflow activity execution in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"activity", "wallet_address"},
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

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Upstream fetch metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// RecordFeedCall records an enhanced feed API call with duration.
func (m *Metrics) RecordFeedCall(status string, duration float64) {
	m.enhancedFeedCallsTotal.WithLabelValues(status).Inc()
	m.enhancedFeedCallDuration.WithLabelValues(status).Observe(duration)
}

// Classification metric helpers

// RecordTransactionClassified records one classified transaction by type.
func (m *Metrics) RecordTransactionClassified(walletAddress, txType string) {
	m.transactionsClassifiedTotal.WithLabelValues(walletAddress, txType).Inc()
}

// RecordTransactionsDropped records transactions dropped during a scan.
func (m *Metrics) RecordTransactionsDropped(walletAddress, reason string, count int) {
	m.transactionsDroppedTotal.WithLabelValues(walletAddress, reason).Add(float64(count))
}

// Scan workflow metric helpers

// RecordScanWorkflow records a scan workflow execution with duration.
func (m *Metrics) RecordScanWorkflow(walletAddress, status string, duration float64) {
	m.scanWorkflowExecutionsTotal.WithLabelValues(walletAddress, status).Inc()
	m.scanWorkflowDuration.WithLabelValues(walletAddress, status).Observe(duration)
}

// RecordActivityDuration records the duration of a workflow activity.
func (m *Metrics) RecordActivityDuration(activity, walletAddress string, duration float64) {
	m.activityDuration.WithLabelValues(activity, walletAddress).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table, status string, duration float64) {
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := strconv.Itoa(statusCode)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation with duration.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}
