package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jellyfish_risk"

// Metrics holds the Prometheus collectors for the risk service.
type Metrics struct {
	// Source metrics.
	SourceRequests       *prometheus.CounterVec   // labels: source, outcome={success,error,timeout,invalid}
	SourceDuration       *prometheus.HistogramVec // labels: source
	SourceRecordsSkipped *prometheus.CounterVec   // labels: source
	PartialAggregations  prometheus.Counter

	// Report metrics.
	ReportCache          *prometheus.CounterVec // labels: result={hit,miss}
	ReportCacheEvictions prometheus.Counter
	Reports              *prometheus.CounterVec // labels: risk_level
	ReportsPublished     *prometheus.CounterVec // labels: outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,not_found}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all service metrics and registers them with reg.
// One-shot tools pass a private registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many instances as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Sighting source requests by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Sighting source request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 8, 10},
		}, []string{"source"}),
		SourceRecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_records_skipped_total",
			Help:      "Provider records dropped because they could not be normalized.",
		}, []string{"source"}),
		PartialAggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_partial_total",
			Help:      "Aggregations that hit the outer deadline before every source finished.",
		}),
		ReportCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_total",
			Help:      "Report cache lookups by result.",
		}, []string{"result"}),
		ReportCacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_evictions_total",
			Help:      "Reports evicted from a full cache.",
		}),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Freshly computed reports by risk level.",
		}, []string{"risk_level"}),
		ReportsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Report events written to Kafka by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Place-name geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocode memo cache lookups by result.",
		}, []string{"result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when place-name geocoding is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SourceRequests,
		m.SourceDuration,
		m.SourceRecordsSkipped,
		m.PartialAggregations,
		m.ReportCache,
		m.ReportCacheEvictions,
		m.Reports,
		m.ReportsPublished,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeEnabled,
	}
}
