package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryrelay_runs_total",
			Help: "Total number of relay runs by outcome.",
		},
		[]string{"outcome"},
	)
	statusChecksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryrelay_status_checks_total",
			Help: "Total number of execution status checks.",
		},
	)
	runDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queryrelay_run_duration_seconds",
			Help:    "Wall time from submit to publish or failure.",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600, 900},
		},
		[]string{"outcome"},
	)
	publishedRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryrelay_published_rows_total",
			Help: "Total number of result rows written to object storage.",
		},
	)
	publishedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryrelay_published_bytes_total",
			Help: "Total number of serialized result bytes written to object storage.",
		},
	)
	truncatedResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryrelay_truncated_results_total",
			Help: "Total number of published result sets that held more than one page.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		runsTotal,
		statusChecksTotal,
		runDurationSeconds,
		publishedRowsTotal,
		publishedBytesTotal,
		truncatedResultsTotal,
	)
}

func ObserveRun(outcome string, elapsed time.Duration) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func ObserveStatusCheck() {
	statusChecksTotal.Inc()
}

func ObservePublish(rows int, bytes int, truncated bool) {
	if rows > 0 {
		publishedRowsTotal.Add(float64(rows))
	}
	if bytes > 0 {
		publishedBytesTotal.Add(float64(bytes))
	}
	if truncated {
		truncatedResultsTotal.Inc()
	}
}
