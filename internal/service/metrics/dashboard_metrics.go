package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	DashboardLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fred",
			Subsystem: "dashboard",
			Name:      "latency_seconds",
			Help:      "Latency of dashboard endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	DashboardErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fred",
			Subsystem: "dashboard",
			Name:      "errors_total",
			Help:      "Errors by dashboard endpoint",
		},
		[]string{"endpoint"},
	)

	TableLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fred",
			Subsystem: "dashboard",
			Name:      "table_loads_total",
			Help:      "Table reads from disk; memo hits are not counted",
		},
		[]string{"path"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(DashboardLatency, DashboardErrors, TableLoads)
	})
}
