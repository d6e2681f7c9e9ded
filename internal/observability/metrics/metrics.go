package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "thermoband_"

	// IngestResultAccepted labels a persisted reading.
	IngestResultAccepted = "accepted"
	// IngestResultThrottled labels a rate-limited reading.
	IngestResultThrottled = "throttled"
	// IngestResultError labels any other ingest failure.
	IngestResultError = "error"

	// ResetResultCompleted labels a finished reset task.
	ResetResultCompleted = "completed"
	// ResetResultNoop labels a reset against an unassigned binding.
	ResetResultNoop = "noop"
	// ResetResultFailed labels a reset task that gave up.
	ResetResultFailed = "failed"
	// ResetResultDropped labels a task rejected by a full queue.
	ResetResultDropped = "dropped"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	resetTasks      *prometheus.CounterVec
	resetQueueDepth prometheus.Gauge

	lifecycleOps *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		resetTasks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reset_tasks_total",
				Help: "Total reset workflow tasks by result",
			},
			[]string{"result"},
		)
		resetQueueDepth = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "reset_queue_depth",
				Help: "Reset tasks waiting in the worker queue",
			},
		)

		lifecycleOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "lifecycle_operations_total",
				Help: "Total binding lifecycle operations by operation and result",
			},
			[]string{"operation", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			resetTasks,
			resetQueueDepth,
			lifecycleOps,
		)

		registerDBMetrics(db, logger)
	})
}

// ObserveIngest records one ingest request.
func ObserveIngest(result string, elapsed time.Duration) {
	if ingestRequests == nil {
		return
	}
	ingestRequests.WithLabelValues(result).Inc()
	ingestLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// IncIngestError records an ingest error by reason.
func IncIngestError(reason string) {
	if ingestErrors == nil {
		return
	}
	ingestErrors.WithLabelValues(reason).Inc()
}

// IncResetTask records a reset workflow outcome.
func IncResetTask(result string) {
	if resetTasks == nil {
		return
	}
	resetTasks.WithLabelValues(result).Inc()
}

// SetResetQueueDepth reports the current worker queue depth.
func SetResetQueueDepth(depth int) {
	if resetQueueDepth == nil {
		return
	}
	resetQueueDepth.Set(float64(depth))
}

// IncLifecycleOp records a binding lifecycle operation.
func IncLifecycleOp(operation, result string) {
	if lifecycleOps == nil {
		return
	}
	lifecycleOps.WithLabelValues(operation, result).Inc()
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "unassigned_devices",
			Help: "Registered devices with no patient bound",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM device_bindings WHERE patient_id IS NULL")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "pending_resets",
			Help: "Bindings flagged for reset that no device has acknowledged yet",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM device_bindings WHERE reset_requested = true")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
