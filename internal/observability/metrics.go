// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. All methods
// are nil-safe so components can run without metrics in tests.
type Metrics struct {
	// Trade metrics
	TradesExecuted *prometheus.CounterVec
	TradesBlocked  *prometheus.CounterVec
	TradeDuration  prometheus.Histogram

	// Retry metrics
	RetryAttempts  *prometheus.CounterVec
	RetryExhausted *prometheus.CounterVec

	// Confirmation metrics
	ConfirmationOutcomes *prometheus.CounterVec
	ConfirmationPolls    prometheus.Histogram

	// Risk metrics
	CircuitBreakerActive prometheus.Gauge

	// Market data metrics
	SnapshotsCollected *prometheus.CounterVec
	CollectionErrors   *prometheus.CounterVec

	// Signal metrics
	SignalsGenerated *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram

	// Health metrics
	LastSuccessfulCollection prometheus.Gauge
	LastTradeTimestamp       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_trader"
	}

	return &Metrics{
		// Trade metrics
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_total",
			Help:      "Total number of trade executions by action and status",
		}, []string{"action", "status"}),
		TradesBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_blocked_total",
			Help:      "Total number of trades blocked by the risk gate",
		}, []string{"limit"}),
		TradeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trade_duration_seconds",
			Help:      "End-to-end trade execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		// Retry metrics
		RetryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total number of retried attempts by operation",
		}, []string{"operation"}),
		RetryExhausted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "exhausted_total",
			Help:      "Total number of operations that exhausted all attempts",
		}, []string{"operation"}),

		// Confirmation metrics
		ConfirmationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "outcomes_total",
			Help:      "Total number of confirmation outcomes by final state",
		}, []string{"state"}),
		ConfirmationPolls: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "polls",
			Help:      "Number of status polls per confirmation",
			Buckets:   []float64{1, 2, 3, 5, 10, 15, 20, 30},
		}),

		// Risk metrics
		CircuitBreakerActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "circuit_breaker_active",
			Help:      "Whether the circuit breaker currently blocks live trades",
		}),

		// Market data metrics
		SnapshotsCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "snapshots_collected_total",
			Help:      "Total number of market snapshots collected by source",
		}, []string{"source"}),
		CollectionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "collection_errors_total",
			Help:      "Total number of market data collection errors by source",
		}, []string{"source"}),

		// Signal metrics
		SignalsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "generated_total",
			Help:      "Total number of trading signals generated by kind",
		}, []string{"signal"}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "analysis_duration_seconds",
			Help:      "LLM analysis duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),

		// Health metrics
		LastSuccessfulCollection: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_collection_timestamp",
			Help:      "Unix timestamp of last successful market data collection",
		}),
		LastTradeTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_trade_timestamp",
			Help:      "Unix timestamp of last trade execution",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTrade records a finished trade execution.
func (m *Metrics) RecordTrade(action, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.TradesExecuted.WithLabelValues(action, status).Inc()
	m.TradeDuration.Observe(durationSeconds)
}

// RecordBlocked records a trade blocked by the risk gate.
func (m *Metrics) RecordBlocked(limit string) {
	if m == nil {
		return
	}
	m.TradesBlocked.WithLabelValues(limit).Inc()
}

// RecordRetry records one retried attempt; exhausted marks the final
// failure of the whole operation.
func (m *Metrics) RecordRetry(operation string, exhausted bool) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
	if exhausted {
		m.RetryExhausted.WithLabelValues(operation).Inc()
	}
}

// RecordConfirmation records a confirmation outcome and its poll count.
func (m *Metrics) RecordConfirmation(state string, polls int) {
	if m == nil {
		return
	}
	m.ConfirmationOutcomes.WithLabelValues(state).Inc()
	m.ConfirmationPolls.Observe(float64(polls))
}

// SetBreakerActive reflects the circuit breaker state.
func (m *Metrics) SetBreakerActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.CircuitBreakerActive.Set(1)
	} else {
		m.CircuitBreakerActive.Set(0)
	}
}

// RecordSnapshot records a collected market snapshot.
func (m *Metrics) RecordSnapshot(source string) {
	if m == nil {
		return
	}
	m.SnapshotsCollected.WithLabelValues(source).Inc()
}

// RecordCollectionError records a failed source fetch.
func (m *Metrics) RecordCollectionError(source string) {
	if m == nil {
		return
	}
	m.CollectionErrors.WithLabelValues(source).Inc()
}

// RecordSignal records a generated trading signal.
func (m *Metrics) RecordSignal(signal string, analysisSeconds float64) {
	if m == nil {
		return
	}
	m.SignalsGenerated.WithLabelValues(signal).Inc()
	m.AnalysisDuration.Observe(analysisSeconds)
}
