package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	expired   *prometheus.CounterVec
	writeOffs prometheus.Counter
	overdue   prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddExpiredBatches counts batches flipped to expired by a sweep and the
// units written off with them.
func (m *Metrics) AddExpiredBatches(reason string, batches int, units int64) {
	if m == nil || batches <= 0 {
		return
	}
	if reason == "" {
		reason = "scheduled"
	}
	m.expired.WithLabelValues(reason).Add(float64(batches))
	if units > 0 {
		m.writeOffs.Add(float64(units))
	}
}

// SetOverdueInvoices records the size of the latest reminder batch.
func (m *Metrics) SetOverdueInvoices(count int) {
	if m == nil {
		return
	}
	m.overdue.Set(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmadist_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	expired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadist_batches_expired_total",
		Help: "Batches marked expired by the expiry sweep.",
	}, []string{"reason"})
	writeOffs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pharmadist_expiry_writeoff_units_total",
		Help: "Units written off when batches expired.",
	})
	overdue := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pharmadist_overdue_invoices",
		Help: "Overdue invoices found by the last payment reminder run.",
	})
	registerer.MustRegister(runs, failures, duration, expired, writeOffs, overdue)
	return &Metrics{runs: runs, failures: failures, duration: duration, expired: expired, writeOffs: writeOffs, overdue: overdue}
}
