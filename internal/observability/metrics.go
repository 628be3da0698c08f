package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// shoreline analysis pipeline.
type Metrics struct {
	YearsProcessed  prometheus.Counter
	YearErrors      *prometheus.CounterVec // labels: stage
	PipelineRunning prometheus.Gauge

	StageDuration *prometheus.HistogramVec // labels: stage

	// Overpass asset provider metrics.
	OverpassRequests *prometheus.CounterVec // labels: outcome={success,error}
	OverpassCache    *prometheus.CounterVec // labels: result={hit,miss}
	OverpassDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		YearsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lakerise",
			Name:      "years_processed_total",
			Help:      "Total scene years processed to a shoreline.",
		}),
		YearErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lakerise",
			Name:      "year_errors_total",
			Help:      "Per-year processing failures by pipeline stage.",
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lakerise",
			Name:      "pipeline_running",
			Help:      "1 while an analysis run is active, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lakerise",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		OverpassRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lakerise",
			Name:      "overpass_requests_total",
			Help:      "Overpass API requests by outcome.",
		}, []string{"outcome"}),
		OverpassCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lakerise",
			Name:      "overpass_cache_total",
			Help:      "Overpass cache lookups by result.",
		}, []string{"result"}),
		OverpassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lakerise",
			Name:      "overpass_duration_seconds",
			Help:      "Overpass API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	prometheus.MustRegister(
		m.YearsProcessed,
		m.YearErrors,
		m.PipelineRunning,
		m.StageDuration,
		m.OverpassRequests,
		m.OverpassCache,
		m.OverpassDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		YearsProcessed:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "lakerise", Name: "years_processed_total"}),
		YearErrors:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lakerise", Name: "year_errors_total"}, []string{"stage"}),
		PipelineRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "lakerise", Name: "pipeline_running"}),
		StageDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "lakerise", Name: "stage_duration_seconds"}, []string{"stage"}),
		OverpassRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lakerise", Name: "overpass_requests_total"}, []string{"outcome"}),
		OverpassCache:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lakerise", Name: "overpass_cache_total"}, []string{"result"}),
		OverpassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "lakerise", Name: "overpass_duration_seconds"}),
	}
}
