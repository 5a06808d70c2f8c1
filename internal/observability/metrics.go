package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a geocoding run.
type Metrics struct {
	RunActive      prometheus.Gauge
	PairsTotal     prometheus.Gauge
	PairsCompleted prometheus.Gauge

	// Lookup metrics.
	Lookups        *prometheus.CounterVec // labels: outcome={ok,empty,over_limit,exception,error}
	LookupDuration prometheus.Histogram
	Backoffs       prometheus.Counter
	Cache          *prometheus.CounterVec // labels: result={hit,miss}

	// Persistence metrics.
	Checkpoints   *prometheus.CounterVec // labels: result={success,error}
	PublishErrors prometheus.Counter
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RunActive,
		m.PairsTotal,
		m.PairsCompleted,
		m.Lookups,
		m.LookupDuration,
		m.Backoffs,
		m.Cache,
		m.Checkpoints,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "block_geocode",
			Name:      "run_active",
			Help:      "1 while a batch run is in progress, 0 otherwise.",
		}),
		PairsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "block_geocode",
			Name:      "pairs_total",
			Help:      "Number of coordinate pairs in the current run.",
		}),
		PairsCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "block_geocode",
			Name:      "pairs_completed",
			Help:      "Number of coordinate pairs with a recorded outcome.",
		}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "block_geocode",
			Name:      "lookups_total",
			Help:      "Provider lookups by classified outcome, including rate-limited attempts.",
		}, []string{"outcome"}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "block_geocode",
			Name:      "lookup_duration_seconds",
			Help:      "FCC API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Backoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "block_geocode",
			Name:      "backoffs_total",
			Help:      "Number of rate-limit backoff waits.",
		}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "block_geocode",
			Name:      "cache_total",
			Help:      "Lookup cache results.",
		}, []string{"result"}),
		Checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "block_geocode",
			Name:      "checkpoints_total",
			Help:      "Checkpoint writes by result.",
		}, []string{"result"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "block_geocode",
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish outcomes downstream.",
		}),
	}
}
