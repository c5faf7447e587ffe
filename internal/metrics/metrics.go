// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolWorkers tracks the number of spawned workers per pool
	PoolWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracekit_pool_workers",
			Help: "Number of workers spawned by the pool",
		},
		[]string{"pool"},
	)

	// PoolBusyWorkers tracks workers currently running a task
	PoolBusyWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracekit_pool_busy_workers",
			Help: "Number of workers currently running a task",
		},
		[]string{"pool"},
	)

	// PoolQueueDepth tracks tasks waiting for a free worker
	PoolQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracekit_pool_queue_depth",
			Help: "Number of tasks waiting in the pool queue",
		},
		[]string{"pool"},
	)

	// PoolTasksTotal counts finished tasks by outcome (ok, error, panic, terminated)
	PoolTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracekit_pool_tasks_total",
			Help: "Total number of pool tasks by outcome",
		},
		[]string{"pool", "outcome"},
	)

	// TaskDurationSeconds measures how long one parse task runs on a worker
	TaskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracekit_task_duration_seconds",
			Help:    "Duration of parse tasks in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 20), // 100µs to ~52s
		},
		[]string{"pool"},
	)

	// RecordsTotal counts decoded records by family
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracekit_records_total",
			Help: "Total number of decoded records",
		},
		[]string{"kind"},
	)

	// ScanRejectsTotal counts marker matches rejected by the scanner
	ScanRejectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracekit_scan_rejects_total",
			Help: "Total number of rejected record candidates by reason",
		},
		[]string{"reason"},
	)

	// TruncatedRecordsTotal counts trailing records accepted with a clipped payload
	TruncatedRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracekit_truncated_records_total",
			Help: "Total number of truncated trailing records",
		},
	)

	// LogFallbacksTotal counts log lines that needed a fallback parse
	LogFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracekit_log_fallbacks_total",
			Help: "Total number of log lines parsed by a fallback stage",
		},
		[]string{"stage"},
	)

	// FilesTotal counts parsed files by status (ok, empty, error, cached)
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracekit_files_total",
			Help: "Total number of parsed files by status",
		},
		[]string{"status"},
	)

	// CacheRequestsTotal counts result cache lookups (hit, miss)
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracekit_cache_requests_total",
			Help: "Total number of result cache lookups",
		},
		[]string{"result"},
	)

	// SinkBatchSize tracks how many entries each output write carries
	SinkBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracekit_sink_batch_size",
			Help:    "Number of entries written per output batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16), // 1, 2, 4, ..., 32768
		},
		[]string{"sink"},
	)

	// SinkErrorsTotal counts output errors by sink and error type
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracekit_sink_errors_total",
			Help: "Total number of output errors",
		},
		[]string{"sink", "error_type"},
	)
)

// Task outcome label values.
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomePanic      = "panic"
	OutcomeTerminated = "terminated"
)
