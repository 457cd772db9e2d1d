package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CronSucceeded = "success"
	CronFailed    = "failure"
)

// CronJobMetrics tracks cron job outcomes. The last-success gauge is what
// staleness alerts key on: a job that keeps failing still bumps the run
// counter but not the gauge.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	skipped     prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cron", Name: "job_runs_total",
			Help: "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "cron", Name: "job_duration_seconds",
			Help:    "Wall time of a single cron job run.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cron", Name: "job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run of a cron job.",
		}, []string{"job"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cron", Name: "cycles_skipped_total",
			Help: "Cron cycles skipped because another worker held the lock.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.skipped)
	return m
}

// ObserveRun records one job run finishing at now after elapsed.
func (m *CronJobMetrics) ObserveRun(job string, now time.Time, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, CronFailed).Inc()
		return
	}
	m.runs.WithLabelValues(job, CronSucceeded).Inc()
	m.lastSuccess.WithLabelValues(job).Set(float64(now.Unix()))
}

func (m *CronJobMetrics) CycleSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}
