package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	rowsWritten *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastValue   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
	lastSuccess prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates a recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry creates a recorder on the given registry.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		rowsWritten: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fred_rows_written_total",
				Help: "Total number of table rows written per sink",
			},
			[]string{"sink", "table"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fred_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fred_last_value",
				Help: "Latest non-missing value of a table column",
			},
			[]string{"table", "column"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fred_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		lastSuccess: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "fred_last_success_timestamp_seconds",
				Help: "Unix time of the last successful pipeline run",
			},
		),
		gatherer: g,
	}
}

// RecordRowsWritten records rows persisted to a sink.
func (r *Recorder) RecordRowsWritten(sink, table string, rows int) {
	r.rowsWritten.WithLabelValues(sink, table).Add(float64(rows))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastValue records the latest value of a column.
func (r *Recorder) RecordLastValue(table, column string, v float64) {
	r.lastValue.WithLabelValues(table, column).Set(v)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// MarkSuccess stamps the last successful run time.
func (r *Recorder) MarkSuccess() {
	r.lastSuccess.SetToCurrentTime()
}
