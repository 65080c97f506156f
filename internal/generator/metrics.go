package generator

import "github.com/prometheus/client_golang/prometheus"

// Run status label values.
const (
	runCompleted = "completed"
	runCanceled  = "canceled"
	runRejected  = "rejected"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tessgen_jobs_total",
			Help: "Total number of render jobs that reached a terminal state.",
		},
		[]string{"outcome"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tessgen_job_duration_seconds",
			Help:    "Wall time of one render job including staging, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	jobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tessgen_jobs_in_flight",
			Help: "Number of render jobs currently executing.",
		},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tessgen_runs_total",
			Help: "Total number of runs by final status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(jobsInFlight)
	prometheus.MustRegister(runsTotal)

	jobsTotal.WithLabelValues(string(OutcomeSuccess))
	jobsTotal.WithLabelValues(string(OutcomeFailure))
	for _, s := range []string{runCompleted, runCanceled, runRejected} {
		runsTotal.WithLabelValues(s)
	}
}

func observeResult(res JobResult) {
	jobsTotal.WithLabelValues(string(res.Outcome)).Inc()
	jobDuration.Observe(res.Duration.Seconds())
}
