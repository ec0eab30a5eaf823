// Package app assembles the risk service from configuration.
package app

import (
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/jellyfish-risk-service/internal/adapter/gbif"
	"github.com/couchcryptid/jellyfish-risk-service/internal/adapter/inaturalist"
	kafkaadapter "github.com/couchcryptid/jellyfish-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/jellyfish-risk-service/internal/adapter/nominatim"
	"github.com/couchcryptid/jellyfish-risk-service/internal/adapter/obis"
	"github.com/couchcryptid/jellyfish-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/jellyfish-risk-service/internal/cache"
	"github.com/couchcryptid/jellyfish-risk-service/internal/config"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
	"github.com/couchcryptid/jellyfish-risk-service/internal/pipeline"
)

// App holds the wired components. Geocoder is nil when place lookup is
// disabled.
type App struct {
	Service  *pipeline.Service
	Geocoder nominatim.Geocoder

	publisher *kafkaadapter.Publisher
}

// Options adjusts wiring for callers that are not the long-running server.
type Options struct {
	Clock clockwork.Clock
	// DisablePublishing skips the Kafka publisher even when configured.
	DisablePublishing bool
}

// New builds the sources, fan-out coordinator, report cache, service,
// optional Kafka publisher and optional geocoder.
func New(cfg *config.Config, opts Options, logger *slog.Logger, metrics *observability.Metrics) *App {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	sourceCfg := func(url string) upstream.Config {
		return upstream.Config{
			BaseURL:   url,
			RateLimit: cfg.SourceRateLimit,
			UserAgent: cfg.UserAgent,
		}
	}
	inatCfg := sourceCfg(cfg.INaturalistURL)
	inatCfg.Timeout = cfg.INaturalistTimeout
	gbifCfg := sourceCfg(cfg.GBIFURL)
	gbifCfg.Timeout = cfg.GBIFTimeout
	obisCfg := sourceCfg(cfg.OBISURL)
	obisCfg.Timeout = cfg.OBISTimeout

	sources := []pipeline.Source{
		inaturalist.NewClient(inatCfg, clock, metrics, logger),
		gbif.NewClient(gbifCfg, cfg.GBIFCountry, clock, metrics, logger),
		obis.NewClient(obisCfg, clock, metrics, logger),
	}
	coordinator := pipeline.NewCoordinator(sources, cfg.SearchRadiusKm, cfg.AggregateTimeout, logger, metrics)
	reports := cache.New(clock, cfg.CacheTTL, cfg.CacheSize)

	a := &App{}

	// A nil *Publisher must not reach the service as a non-nil interface.
	var publisher pipeline.ReportPublisher
	if cfg.KafkaReportsEnabled && !opts.DisablePublishing {
		a.publisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = a.publisher
		logger.Info("report publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaReportsTopic)
	}

	a.Service = pipeline.NewService(coordinator, reports, publisher, pipeline.Options{Clock: clock}, logger, metrics)

	if cfg.NominatimEnabled {
		client := nominatim.NewClient(nominatim.Config{
			BaseURL:      cfg.NominatimURL,
			Timeout:      cfg.NominatimTimeout,
			UserAgent:    cfg.UserAgent,
			CountryCodes: cfg.NominatimCountryCodes,
		}, metrics, logger)
		a.Geocoder = nominatim.NewCachedGeocoder(client, cfg.GeocodeCacheTTL, metrics)
		logger.Info("nominatim geocoding enabled", "timeout", cfg.NominatimTimeout, "cache_ttl", cfg.GeocodeCacheTTL)
	} else {
		logger.Info("nominatim geocoding disabled")
	}
	if metrics != nil {
		if a.Geocoder != nil {
			metrics.GeocodeEnabled.Set(1)
		} else {
			metrics.GeocodeEnabled.Set(0)
		}
	}

	return a
}

// PublishingEnabled reports whether assessments are sent to Kafka.
func (a *App) PublishingEnabled() bool {
	return a.publisher != nil
}

// Close releases the Kafka writer, if any.
func (a *App) Close() error {
	if a.publisher == nil {
		return nil
	}
	if err := a.publisher.Close(); err != nil {
		return fmt.Errorf("close kafka publisher: %w", err)
	}
	return nil
}
