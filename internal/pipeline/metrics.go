package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomePersisted = "persisted"
	outcomeDropped   = "dropped"
	outcomeFailed    = "failed"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	recordsTotal      *prometheus.CounterVec
	attemptsTotal     *prometheus.CounterVec
	fetchErrorsTotal  *prometheus.CounterVec
	commitErrorsTotal *prometheus.CounterVec
	persistSeconds    *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_records_total",
			Help: "Records handled, by stream and outcome.",
		}, []string{"stream", "outcome"}),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_persist_attempts_total",
			Help: "Insert attempts, by table and result.",
		}, []string{"table", "result"}),
		fetchErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_fetch_errors_total",
			Help: "Broker fetch errors, by stream.",
		}, []string{"stream"}),
		commitErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_commit_errors_total",
			Help: "Offset commit errors, by stream.",
		}, []string{"stream"}),
		persistSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_persist_seconds",
			Help:    "Time spent persisting one record including retries.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"table"}),
	}

	reg.MustRegister(
		m.recordsTotal,
		m.attemptsTotal,
		m.fetchErrorsTotal,
		m.commitErrorsTotal,
		m.persistSeconds,
	)
	return m
}

func (m *Metrics) record(stream Stream, outcome string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(string(stream), outcome).Inc()
}

func (m *Metrics) attempt(table string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.attemptsTotal.WithLabelValues(table, result).Inc()
}

func (m *Metrics) fetchError(stream Stream) {
	if m == nil {
		return
	}
	m.fetchErrorsTotal.WithLabelValues(string(stream)).Inc()
}

func (m *Metrics) commitError(stream Stream) {
	if m == nil {
		return
	}
	m.commitErrorsTotal.WithLabelValues(string(stream)).Inc()
}

func (m *Metrics) persisted(table string, started time.Time) {
	if m == nil {
		return
	}
	m.persistSeconds.WithLabelValues(table).Observe(time.Since(started).Seconds())
}
