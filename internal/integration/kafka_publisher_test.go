//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/jellyfish-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/jellyfish-risk-service/internal/cache"
	"github.com/couchcryptid/jellyfish-risk-service/internal/config"
	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
	"github.com/couchcryptid/jellyfish-risk-service/internal/pipeline"
)

const testReportsTopic = "test-risk-reports"

// staticSource serves a fixed set of sightings for any coordinate.
type staticSource struct {
	name      string
	sightings []domain.Sighting
}

func (s staticSource) Name() string           { return s.name }
func (s staticSource) Timeout() time.Duration { return time.Second }
func (s staticSource) Fetch(context.Context, domain.Coordinate, float64) []domain.Sighting {
	return s.sightings
}

// publishedReport holds a deserialized message read from the reports topic.
type publishedReport struct {
	Report  domain.RiskReport
	Key     string
	Headers map[string]string
}

func readReport(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedReport {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from reports topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var report domain.RiskReport
	require.NoError(t, json.Unmarshal(msg.Value, &report), "unmarshal report")

	return publishedReport{Report: report, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testReportsTopic,
		StartOffset: kafkago.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestPublisher verifies a report written by the publisher can be read back
// with its key and headers intact.
func TestPublisher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testReportsTopic)

	publisher := kafka.NewPublisher(&config.Config{
		KafkaBrokers:      []string{broker},
		KafkaReportsTopic: testReportsTopic,
	}, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	computed := time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)
	report := domain.RiskReport{
		ID:         "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
		Location:   "Valencia",
		Latitude:   39.4699,
		Longitude:  -0.3763,
		RiskLevel:  domain.Moderate,
		Sightings:  []domain.Sighting{},
		Prediction: "Some jellyfish possible",
		Advisory:   "Stay alert.",
		Source:     "OBIS",
		ComputedAt: computed,
	}
	require.NoError(t, publisher.Publish(ctx, report))

	got := readReport(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "39.4699,-0.3763", got.Key)
	assert.Equal(t, "MODERATE", got.Headers["risk_level"])
	assert.Equal(t, "2024-07-15T10:00:00Z", got.Headers["computed_at"])
	assert.Equal(t, report.ID, got.Headers["report_id"])
	assert.Equal(t, report.Location, got.Report.Location)
	assert.Equal(t, domain.Moderate, got.Report.RiskLevel)
	assert.True(t, computed.Equal(got.Report.ComputedAt))
}

// TestServicePublishesFreshReports runs an assessment end to end and checks
// that only the computed report, not the cached repeat, reaches Kafka.
func TestServicePublishesFreshReports(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testReportsTopic)

	publisher := kafka.NewPublisher(&config.Config{
		KafkaBrokers:      []string{broker},
		KafkaReportsTopic: testReportsTopic,
	}, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	now := time.Now().UTC()
	source := staticSource{name: "OBIS", sightings: []domain.Sighting{{
		Species:    "Pelagia noctiluca",
		CommonName: "Mauve Stinger",
		Severity:   domain.Painful,
		ObservedAt: now.Add(-24 * time.Hour),
		AgeDays:    1,
		DistanceKm: 4,
		Source:     "OBIS",
		Verified:   true,
	}}}

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	coordinator := pipeline.NewCoordinator([]pipeline.Source{source}, 50, 5*time.Second, logger, metrics)
	svc := pipeline.NewService(coordinator, cache.New(nil, time.Minute, 10), publisher,
		pipeline.Options{PublishTimeout: 10 * time.Second}, logger, metrics)

	place := domain.Place{Name: "Valencia", Coordinate: domain.Coordinate{Lat: 39.4699, Lon: -0.3763}, Resolved: true}
	first := svc.Assess(ctx, place)
	second := svc.Assess(ctx, place)
	require.Equal(t, first.ID, second.ID, "second assessment should be served from cache")

	consumer := newConsumer(t, broker)
	got := readReport(ctx, t, consumer)
	assert.Equal(t, first.ID, got.Headers["report_id"])
	assert.Equal(t, domain.Low, got.Report.RiskLevel)
	require.Len(t, got.Report.Sightings, 1)
	assert.Equal(t, "Mauve Stinger", got.Report.Sightings[0].CommonName)

	noMoreCtx, noMoreCancel := context.WithTimeout(ctx, 3*time.Second)
	defer noMoreCancel()
	_, err := consumer.ReadMessage(noMoreCtx)
	require.Error(t, err, "cached repeat must not be published")
}
