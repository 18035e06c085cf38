package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for job executions. A nil
// *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolbook",
				Name:      "job_runs_total",
				Help:      "Total background job runs",
			},
			[]string{"job"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolbook",
				Name:      "job_errors_total",
				Help:      "Total background job errors",
			},
			[]string{"job"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "schoolbook",
				Name:      "job_duration_seconds",
				Help:      "Background job duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "schoolbook",
				Name:      "job_in_flight",
				Help:      "Background jobs currently running",
			},
			[]string{"job"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.errors, m.duration, m.inFlight)
	}
	return m
}

// start marks a job as running and returns the function that records its end.
func (m *Metrics) start(job string) func(err error) {
	if m == nil {
		return func(error) {}
	}
	began := time.Now()
	m.inFlight.WithLabelValues(job).Inc()
	return func(err error) {
		m.inFlight.WithLabelValues(job).Dec()
		m.runs.WithLabelValues(job).Inc()
		if err != nil {
			m.errors.WithLabelValues(job).Inc()
		}
		m.duration.WithLabelValues(job).Observe(time.Since(began).Seconds())
	}
}
