package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

const defaultPublishTimeout = 2 * time.Second

// Aggregator collects raw sightings around a coordinate.
type Aggregator interface {
	Aggregate(ctx context.Context, coord domain.Coordinate) []domain.Sighting
	SourceNames() []string
	RadiusKm() float64
}

// ReportCache stores composed reports by coordinate.
type ReportCache interface {
	Get(coord domain.Coordinate) (domain.RiskReport, bool)
	Put(coord domain.Coordinate, report domain.RiskReport) bool
}

// ReportPublisher emits freshly computed reports to downstream consumers.
type ReportPublisher interface {
	Publish(ctx context.Context, report domain.RiskReport) error
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	Clock          clockwork.Clock
	PublishTimeout time.Duration
}

// Service turns a place into a risk report: cache lookup, fan-out,
// curation, classification, then cache store and optional publish.
type Service struct {
	aggregator     Aggregator
	cache          ReportCache
	publisher      ReportPublisher
	clock          clockwork.Clock
	publishTimeout time.Duration
	attribution    string
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewService wires a Service. publisher may be nil.
func NewService(agg Aggregator, cache ReportCache, publisher ReportPublisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	return &Service{
		aggregator:     agg,
		cache:          cache,
		publisher:      publisher,
		clock:          opts.Clock,
		publishTimeout: opts.PublishTimeout,
		attribution:    strings.Join(agg.SourceNames(), " + "),
		logger:         logger,
		metrics:        metrics,
	}
}

// CheckReadiness returns nil when at least one sighting source is registered.
func (s *Service) CheckReadiness(_ context.Context) error {
	if len(s.aggregator.SourceNames()) == 0 {
		return errors.New("no sighting sources configured")
	}
	return nil
}

// Assess returns the risk report for place. Unresolved places and invalid
// coordinates produce the empty report without any upstream calls.
func (s *Service) Assess(ctx context.Context, place domain.Place) domain.RiskReport {
	if !place.Resolved || !place.Coordinate.Valid() {
		s.logger.Warn("cannot assess invalid location",
			"name", place.Name,
			"resolved", place.Resolved,
			"lat", place.Coordinate.Lat,
			"lon", place.Coordinate.Lon,
		)
		return domain.EmptyReport(place, s.clock.Now())
	}

	coord := place.Coordinate
	if cached, ok := s.cache.Get(coord); ok {
		s.countCache("hit")
		s.logger.Debug("using cached report", "name", place.Name, "key", coord.Key())
		return cached
	}
	s.countCache("miss")

	report := s.compute(ctx, place)

	if evicted := s.cache.Put(coord, report); evicted && s.metrics != nil {
		s.metrics.ReportCacheEvictions.Inc()
	}
	s.publish(ctx, report)

	return report
}

func (s *Service) compute(ctx context.Context, place domain.Place) domain.RiskReport {
	start := s.clock.Now()

	raw := s.aggregator.Aggregate(ctx, place.Coordinate)
	curated := domain.Curate(raw, s.aggregator.RadiusKm())
	assessment := domain.Classify(curated)

	report := domain.RiskReport{
		ID:         uuid.NewString(),
		Location:   place.Name,
		Latitude:   place.Coordinate.Lat,
		Longitude:  place.Coordinate.Lon,
		RiskLevel:  assessment.Level,
		Sightings:  curated,
		Prediction: assessment.Prediction,
		Advisory:   assessment.Advisory,
		Source:     s.attribution,
		ComputedAt: s.clock.Now(),
	}

	if s.metrics != nil {
		s.metrics.Reports.WithLabelValues(report.RiskLevel.String()).Inc()
	}
	s.logger.Info("risk assessment complete",
		"name", place.Name,
		"lat", place.Coordinate.Lat,
		"lon", place.Coordinate.Lon,
		"raw_sightings", len(raw),
		"sightings", len(curated),
		"risk_level", report.RiskLevel.String(),
		"duration", s.clock.Since(start),
	)
	return report
}

// publish is best effort: failures are logged and never reach the caller.
func (s *Service) publish(ctx context.Context, report domain.RiskReport) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	outcome := "success"
	if err := s.publisher.Publish(ctx, report); err != nil {
		outcome = "error"
		s.logger.Warn("publish report failed", "report_id", report.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.ReportsPublished.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countCache(result string) {
	if s.metrics != nil {
		s.metrics.ReportCache.WithLabelValues(result).Inc()
	}
}
