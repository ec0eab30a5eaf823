package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWith_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.SourceRequests.WithLabelValues("OBIS", "success").Inc()
	m.SourceDuration.WithLabelValues("OBIS").Observe(0.2)
	m.SourceRecordsSkipped.WithLabelValues("GBIF").Add(2)
	m.PartialAggregations.Inc()
	m.ReportCache.WithLabelValues("hit").Inc()
	m.ReportCacheEvictions.Inc()
	m.Reports.WithLabelValues("HIGH").Inc()
	m.ReportsPublished.WithLabelValues("success").Inc()
	m.GeocodeRequests.WithLabelValues("not_found").Inc()
	m.GeocodeCache.WithLabelValues("miss").Inc()
	m.GeocodeEnabled.Set(1)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"jellyfish_risk_source_requests_total",
		"jellyfish_risk_source_request_duration_seconds",
		"jellyfish_risk_source_records_skipped_total",
		"jellyfish_risk_aggregations_partial_total",
		"jellyfish_risk_report_cache_total",
		"jellyfish_risk_report_cache_evictions_total",
		"jellyfish_risk_reports_total",
		"jellyfish_risk_reports_published_total",
		"jellyfish_risk_geocode_requests_total",
		"jellyfish_risk_geocode_cache_total",
		"jellyfish_risk_geocode_enabled",
	}, names)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.SourceRecordsSkipped.WithLabelValues("GBIF")), 0)
}

func TestNewMetricsWith_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetricsWith(reg)

	assert.Panics(t, func() { NewMetricsWith(reg) })
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.PartialAggregations.Inc()

	assert.InDelta(t, 1.0, testutil.ToFloat64(a.PartialAggregations), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.PartialAggregations), 0)
}
