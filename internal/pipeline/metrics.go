package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for pipeline jobs.
type Metrics struct {
	jobRuns     *prometheus.CounterVec
	jobFailures *prometheus.CounterVec
	uploads     *prometheus.CounterVec
	titles      prometheus.Counter
	paired      prometheus.Counter
	descriptions prometheus.Counter
}

// NewMetrics registers the pipeline collectors on reg. A nil registry
// yields a no-op Metrics so tests can skip registration.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flippi",
			Name:      "job_runs_total",
			Help:      "Total pipeline job runs",
		}, []string{"job"}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flippi",
			Name:      "job_failures_total",
			Help:      "Total pipeline job failures",
		}, []string{"job"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flippi",
			Name:      "uploads_total",
			Help:      "Videos uploaded, by kind",
		}, []string{"kind"}),
		titles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flippi",
			Name:      "titles_generated_total",
			Help:      "Clip titles generated from combo data",
		}),
		paired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flippi",
			Name:      "clips_paired_total",
			Help:      "Clip records paired to replay files",
		}),
		descriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flippi",
			Name:      "descriptions_filled_total",
			Help:      "Descriptions generated for titled clips",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.jobRuns,
			m.jobFailures,
			m.uploads,
			m.titles,
			m.paired,
			m.descriptions,
		)
	}
	return m
}

func (m *Metrics) JobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *Metrics) JobFailure(job string) {
	if m == nil {
		return
	}
	m.jobFailures.WithLabelValues(job).Inc()
}

func (m *Metrics) Uploaded(kind string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddTitles(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.titles.Add(float64(n))
}

func (m *Metrics) AddPaired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.paired.Add(float64(n))
}

func (m *Metrics) AddDescriptions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.descriptions.Add(float64(n))
}
