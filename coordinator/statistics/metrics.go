package statistics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricSet struct {
	registry *prometheus.Registry

	splitsTotal       *prometheus.CounterVec
	splitDuration     *prometheus.HistogramVec
	splitsActive      prometheus.Gauge
	phaseDuration     *prometheus.HistogramVec
	qdbDuration       *prometheus.HistogramVec
	coreAdminRequests *prometheus.CounterVec
}

var metrics = newMetricSet()

func newMetricSet() *metricSet {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &metricSet{
		registry: registry,
		splitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grid",
				Name:      "splits_total",
				Help:      "Total number of shard splits by terminal status",
			},
			[]string{"status"},
		),
		splitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "grid",
				Name:      "split_duration_seconds",
				Help:      "Shard split duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		splitsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "grid",
				Name:      "splits_active",
				Help:      "Current number of running shard splits",
			},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "grid",
				Name:      "split_phase_duration_seconds",
				Help:      "Duration of a single shard split phase in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 180},
			},
			[]string{"phase"},
		),
		qdbDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "grid",
				Name:      "qdb_operation_duration_seconds",
				Help:      "Metadata store operation duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
		coreAdminRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grid",
				Name:      "core_admin_requests_total",
				Help:      "Total number of core admin requests sent to nodes",
			},
			[]string{"action", "status"},
		),
	}

	registry.MustRegister(m.splitsTotal)
	registry.MustRegister(m.splitDuration)
	registry.MustRegister(m.splitsActive)
	registry.MustRegister(m.phaseDuration)
	registry.MustRegister(m.qdbDuration)
	registry.MustRegister(m.coreAdminRequests)
	return m
}

// Handler serves the coordinator metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and embedding.
func Gatherer() prometheus.Gatherer {
	return metrics.registry
}
