package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "runner"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "evaluations_total",
		Help:      "Count of finished evaluations by verdict",
	}, []string{
		"status",
	})

	testCaseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "testcase_duration_seconds",
		Help:      "Wall time of a single test case run, including interpreter startup",
		Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "active_jobs",
		Help:      "Submissions currently being evaluated",
	})

	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "rejected_submissions_total",
		Help:      "Count of submissions rejected before evaluation",
	}, []string{
		"reason",
	})
)

// RecordEvaluation counts one finished evaluation.
func RecordEvaluation(status string) {
	evaluationsTotal.WithLabelValues(status).Inc()
}

func RecordTestCaseDuration(d time.Duration) {
	testCaseDuration.Observe(d.Seconds())
}

func SetActiveJobs(n int64) {
	activeJobs.Set(float64(n))
}

// RecordRejection counts a submission dropped at intake. reason should be a
// short stable identifier, not an error string.
func RecordRejection(reason string) {
	rejectedTotal.WithLabelValues(reason).Inc()
}
