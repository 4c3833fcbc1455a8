// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// All Record/Observe methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Decode metrics
	EventsDecoded *prometheus.CounterVec
	DecodeErrors  *prometheus.CounterVec

	// Log parsing metrics
	TransactionsParsed *prometheus.CounterVec
	ParseErrors        prometheus.Counter

	// Dispatch metrics
	NotificationsReceived prometheus.Counter
	NotificationsSkipped  *prometheus.CounterVec
	EventsDispatched      *prometheus.CounterVec
	ActiveListeners       prometheus.Gauge
	EventsPublished       *prometheus.CounterVec
	HighestSlotSeen       prometheus.Gauge

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Backfill metrics
	TransactionsBackfilled prometheus.Counter
	LastProcessedSlot      prometheus.Gauge

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge

	highestSlot atomic.Uint64
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_idl_kit"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Decode metrics
		EventsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "events_total",
			Help:      "Total number of program events decoded by name",
		}, []string{"event"}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "errors_total",
			Help:      "Total number of decode errors by kind",
		}, []string{"kind"}),

		// Log parsing metrics
		TransactionsParsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logparser",
			Name:      "transactions_total",
			Help:      "Total number of transaction logs parsed by result",
		}, []string{"result"}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logparser",
			Name:      "errors_total",
			Help:      "Total number of unbalanced or malformed transaction logs",
		}),

		// Dispatch metrics
		NotificationsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "notifications_received_total",
			Help:      "Total number of logs notifications received",
		}),
		NotificationsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "notifications_skipped_total",
			Help:      "Total number of logs notifications skipped by reason",
		}, []string{"reason"}),
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dispatched_total",
			Help:      "Total number of events delivered to listeners by name",
		}, []string{"event"}),
		ActiveListeners: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "active_listeners",
			Help:      "Current number of registered event listeners",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events handed to sinks by sink and status",
		}, []string{"sink", "status"}),
		HighestSlotSeen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen in notifications",
		}),

		// Latency metrics
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Backfill metrics
		TransactionsBackfilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_backfilled_total",
			Help:      "Total number of historical transactions processed",
		}),
		LastProcessedSlot: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_processed_slot",
			Help:      "Slot of the last processed historical transaction",
		}),

		// Health metrics
		LastSuccessfulIngestion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of gatherer.
// A nil gatherer serves prometheus.DefaultGatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveRPC records the latency and outcome of one RPC call.
func (m *Metrics) ObserveRPC(method string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		m.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// ObserveDB records the duration and outcome of one database operation.
func (m *Metrics) ObserveDB(database, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordEventDecoded increments the decoded events counter.
func (m *Metrics) RecordEventDecoded(name string) {
	if m == nil {
		return
	}
	m.EventsDecoded.WithLabelValues(name).Inc()
}

// RecordDecodeError increments the decode errors counter.
func (m *Metrics) RecordDecodeError(kind string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(kind).Inc()
}

// RecordTransactionParsed counts a parsed transaction log by result.
func (m *Metrics) RecordTransactionParsed(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failed"
	}
	m.TransactionsParsed.WithLabelValues(result).Inc()
}

// RecordParseError increments the log parse errors counter.
func (m *Metrics) RecordParseError() {
	if m == nil {
		return
	}
	m.ParseErrors.Inc()
}

// RecordNotification counts a received notification and tracks the highest slot.
func (m *Metrics) RecordNotification(slot uint64) {
	if m == nil {
		return
	}
	m.NotificationsReceived.Inc()
	for {
		seen := m.highestSlot.Load()
		if slot <= seen {
			return
		}
		if m.highestSlot.CompareAndSwap(seen, slot) {
			m.HighestSlotSeen.Set(float64(slot))
			return
		}
	}
}

// RecordNotificationSkipped counts a skipped notification.
func (m *Metrics) RecordNotificationSkipped(reason string) {
	if m == nil {
		return
	}
	m.NotificationsSkipped.WithLabelValues(reason).Inc()
}

// RecordDispatched counts an event delivered to a listener.
func (m *Metrics) RecordDispatched(name string) {
	if m == nil {
		return
	}
	m.EventsDispatched.WithLabelValues(name).Inc()
}

// SetActiveListeners sets the registered listener gauge.
func (m *Metrics) SetActiveListeners(n int) {
	if m == nil {
		return
	}
	m.ActiveListeners.Set(float64(n))
}

// RecordPublished counts an event handed to a sink.
func (m *Metrics) RecordPublished(sink string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(sink, status).Inc()
}

// RecordBackfilled counts a processed historical transaction.
func (m *Metrics) RecordBackfilled(slot uint64) {
	if m == nil {
		return
	}
	m.TransactionsBackfilled.Inc()
	m.LastProcessedSlot.Set(float64(slot))
	m.LastSuccessfulIngestion.SetToCurrentTime()
}
