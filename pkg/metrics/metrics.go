package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing, so stores and workers can run without instrumentation.
type Metrics struct {
	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxQueueSize         prometheus.Gauge
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	Transactions        *prometheus.CounterVec
	TransactionLatency  prometheus.Histogram
	DatabaseOperations  *prometheus.CounterVec
	DatabaseConnections prometheus.Gauge

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisLatency    *prometheus.HistogramVec

	// HTTP metrics
	RequestTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorTotal      *prometheus.CounterVec

	// Scheduling metrics
	RecurringOccurrences *prometheus.CounterVec
}

// New builds the collectors without registering them; call Register once
// per registry.
func New(namespace string) *Metrics {
	return &Metrics{
		OutboxEventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing a batch of outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "queue_size",
			Help:      "Number of pending events claimed in the last batch",
		}),
		OutboxRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "transactions_total",
			Help:      "Total number of store transactions by outcome",
		}, []string{"outcome"}),
		TransactionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "transaction_duration_seconds",
			Help:      "Duration of store transactions",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "open_connections",
			Help:      "Current number of open database connections",
		}),

		RedisOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
		RedisLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),

		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		ErrorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of HTTP errors",
		}, []string{"method", "path", "type"}),

		RecurringOccurrences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "recurring_occurrences_total",
			Help:      "Recurring appointment occurrences by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.OutboxEventsProcessed, m.OutboxEventsFailed, m.OutboxProcessingLatency,
		m.OutboxQueueSize, m.OutboxRetries,
		m.Transactions, m.TransactionLatency, m.DatabaseOperations, m.DatabaseConnections,
		m.RedisOperations, m.RedisLatency,
		m.RequestTotal, m.RequestDuration, m.ErrorTotal,
		m.RecurringOccurrences,
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveTx records one store transaction.
func (m *Metrics) ObserveTx(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(outcome).Inc()
	m.TransactionLatency.Observe(d.Seconds())
}

// ObserveDB records one database or store operation.
func (m *Metrics) ObserveDB(operation string, err error) {
	if m == nil {
		return
	}
	m.DatabaseOperations.WithLabelValues(operation, status(err)).Inc()
}

// ObserveRedis records one Redis round trip.
func (m *Metrics) ObserveRedis(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RedisOperations.WithLabelValues(operation, status(err)).Inc()
	m.RedisLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, path string, code int, d time.Duration) {
	if m == nil {
		return
	}
	s := statusLabel(code)
	m.RequestTotal.WithLabelValues(method, path, s).Inc()
	m.RequestDuration.WithLabelValues(method, path, s).Observe(d.Seconds())
	if code >= 400 {
		kind := "client"
		if code >= 500 {
			kind = "server"
		}
		m.ErrorTotal.WithLabelValues(method, path, kind).Inc()
	}
}

// ObserveRecurring counts created and failed occurrences of one series.
func (m *Metrics) ObserveRecurring(created, failed int) {
	if m == nil {
		return
	}
	m.RecurringOccurrences.WithLabelValues("created").Add(float64(created))
	m.RecurringOccurrences.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) OutboxProcessed() {
	if m == nil {
		return
	}
	m.OutboxEventsProcessed.Inc()
}

func (m *Metrics) OutboxFailed(eventType string) {
	if m == nil {
		return
	}
	m.OutboxEventsFailed.Inc()
	m.OutboxRetries.WithLabelValues(eventType).Inc()
}

func (m *Metrics) OutboxBatch(size int, d time.Duration) {
	if m == nil {
		return
	}
	m.OutboxQueueSize.Set(float64(size))
	m.OutboxProcessingLatency.Observe(d.Seconds())
}

func (m *Metrics) SetOpenConnections(n int) {
	if m == nil {
		return
	}
	m.DatabaseConnections.Set(float64(n))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
