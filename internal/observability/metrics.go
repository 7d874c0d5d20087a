package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "river_hud"

// Metrics holds the Prometheus counters and histograms for the aggregation engine.
type Metrics struct {
	// Source fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: source, outcome={success,timeout,http_error,parse_error,empty_result}
	FetchDuration *prometheus.HistogramVec // labels: source

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: source, result={fresh,refreshed,stale,unavailable}

	// Snapshot metrics.
	SnapshotsBuilt   prometheus.Counter
	SnapshotDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Upstream source fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Upstream source fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by source and result.",
		}, []string{"source", "result"}),
		SnapshotsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_built_total",
			Help:      "Total condition snapshots assembled.",
		}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_build_duration_seconds",
			Help:      "Duration of a complete snapshot build.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 15},
		}),
	}

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.CacheLookups,
		m.SnapshotsBuilt,
		m.SnapshotDuration,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FetchRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "source_fetch_total"}, []string{"source", "outcome"}),
		FetchDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "source_fetch_duration_seconds"}, []string{"source"}),
		CacheLookups:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cache_lookups_total"}, []string{"source", "result"}),
		SnapshotsBuilt:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "snapshots_built_total"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "snapshot_build_duration_seconds"}),
	}
}
