// Package metrics exposes the process's Prometheus instrumentation: cache
// hit/miss counters, budget utilization, and scan duration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewarden_cache_hits_total",
			Help: "Total number of cache reads that found an existing entry",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewarden_cache_misses_total",
			Help: "Total number of cache reads that required an LLM call",
		},
		[]string{"cache_type"},
	)

	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewarden_llm_requests_total",
			Help: "Total number of LLM calls, by outcome",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codewarden_llm_request_duration_seconds",
			Help:    "LLM call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		},
		[]string{"model"},
	)

	BudgetSpendUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codewarden_budget_spend_usd",
			Help: "Current month-to-date spend in USD",
		},
	)

	BudgetUtilization = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codewarden_budget_utilization_ratio",
			Help: "Spend divided by the monthly ceiling, as a ratio",
		},
	)

	BudgetExceededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codewarden_budget_exceeded_total",
			Help: "Total number of calls refused because the budget ceiling was reached",
		},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codewarden_scan_duration_seconds",
			Help:    "Duration of a single repository scan",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to 512s (~8.5min)
		},
		[]string{"repo"},
	)

	ScanFilesChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewarden_scan_files_changed_total",
			Help: "Total number of changed files seen across scans",
		},
		[]string{"repo"},
	)

	ScanErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewarden_scan_errors_total",
			Help: "Total number of per-file analysis failures during scans",
		},
		[]string{"repo"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codewarden_queue_depth",
			Help: "Number of queue items currently in a given stage",
		},
		[]string{"stage"},
	)
)
