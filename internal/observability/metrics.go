package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the segment
// weather pipeline.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec   // labels: result={hit,miss}
	ProviderRequests *prometheus.CounterVec   // labels: model, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec // labels: model
	FallbackCalls    prometheus.Counter
	FetchErrors      prometheus.Counter
	ChangesDetected  *prometheus.CounterVec // labels: severity
	ProbeRuns        prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CacheLookups,
		m.ProviderRequests,
		m.ProviderDuration,
		m.FallbackCalls,
		m.FetchErrors,
		m.ChangesDetected,
		m.ProbeRuns,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when constructed from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "segment_weather",
			Name:      "cache_lookups_total",
			Help:      "Segment cache lookups by result.",
		}, []string{"result"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "segment_weather",
			Name:      "provider_requests_total",
			Help:      "Forecast model requests by model and outcome.",
		}, []string{"model", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "segment_weather",
			Name:      "provider_request_duration_seconds",
			Help:      "Forecast model request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"model"}),
		FallbackCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segment_weather",
			Name:      "fallback_calls_total",
			Help:      "Supplementary fallback model calls issued.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segment_weather",
			Name:      "fetch_errors_total",
			Help:      "Segment fetches that exhausted retries.",
		}),
		ChangesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "segment_weather",
			Name:      "changes_detected_total",
			Help:      "Weather changes detected by severity.",
		}, []string{"severity"}),
		ProbeRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segment_weather",
			Name:      "probe_runs_total",
			Help:      "Model availability probe runs.",
		}),
	}
}
