package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	SearchRadiusKm   float64
	AggregateTimeout time.Duration
	SourceRateLimit  float64
	UserAgent        string

	INaturalistURL     string
	INaturalistTimeout time.Duration
	GBIFURL            string
	GBIFTimeout        time.Duration
	GBIFCountry        string
	OBISURL            string
	OBISTimeout        time.Duration

	CacheTTL  time.Duration
	CacheSize int

	// Nominatim geocoding configuration.
	NominatimEnabled      bool
	NominatimURL          string
	NominatimTimeout      time.Duration
	NominatimCountryCodes string
	GeocodeCacheTTL       time.Duration

	// Optional report event stream.
	KafkaReportsEnabled bool
	KafkaBrokers        []string
	KafkaReportsTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SearchRadiusKm:   p.positiveFloat("SEARCH_RADIUS_KM", 50),
		AggregateTimeout: p.duration("AGGREGATE_TIMEOUT", 10*time.Second),
		SourceRateLimit:  p.positiveFloat("SOURCE_RATE_LIMIT", 2),
		UserAgent:        sharedcfg.EnvOrDefault("USER_AGENT", "jellyfish-risk-service/1.0"),

		INaturalistURL:     sharedcfg.EnvOrDefault("INATURALIST_URL", "https://api.inaturalist.org"),
		INaturalistTimeout: p.duration("INATURALIST_TIMEOUT", 5*time.Second),
		GBIFURL:            sharedcfg.EnvOrDefault("GBIF_URL", "https://api.gbif.org"),
		GBIFTimeout:        p.duration("GBIF_TIMEOUT", 8*time.Second),
		GBIFCountry:        strings.ToUpper(strings.TrimSpace(os.Getenv("GBIF_COUNTRY"))),
		OBISURL:            sharedcfg.EnvOrDefault("OBIS_URL", "https://api.obis.org"),
		OBISTimeout:        p.duration("OBIS_TIMEOUT", 8*time.Second),

		CacheTTL:  p.duration("CACHE_TTL", 5*time.Minute),
		CacheSize: p.positiveInt("CACHE_SIZE", 100),

		NominatimEnabled:      p.boolean("NOMINATIM_ENABLED", true),
		NominatimURL:          sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimTimeout:      p.duration("NOMINATIM_TIMEOUT", 5*time.Second),
		NominatimCountryCodes: strings.TrimSpace(os.Getenv("NOMINATIM_COUNTRY_CODES")),
		GeocodeCacheTTL:       p.duration("GEOCODE_CACHE_TTL", 24*time.Hour),

		KafkaReportsEnabled: p.boolean("KAFKA_REPORTS_ENABLED", false),
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReportsTopic:   sharedcfg.EnvOrDefault("KAFKA_REPORTS_TOPIC", "jellyfish-risk-reports"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	sources := []struct {
		name    string
		timeout time.Duration
	}{
		{"INATURALIST_TIMEOUT", c.INaturalistTimeout},
		{"GBIF_TIMEOUT", c.GBIFTimeout},
		{"OBIS_TIMEOUT", c.OBISTimeout},
	}
	for _, s := range sources {
		if s.timeout > c.AggregateTimeout {
			return fmt.Errorf("%s (%s) exceeds AGGREGATE_TIMEOUT (%s)", s.name, s.timeout, c.AggregateTimeout)
		}
	}
	if c.KafkaReportsEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_REPORTS_ENABLED is true")
		}
		if c.KafkaReportsTopic == "" {
			return errors.New("KAFKA_REPORTS_TOPIC is required when KAFKA_REPORTS_ENABLED is true")
		}
	}
	return nil
}

// parser records the first invalid variable so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key string) {
	if p.err == nil {
		p.err = errors.New("invalid " + key)
	}
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(key)
		return fallback
	}
	return d
}

func (p *parser) positiveInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		p.fail(key)
		return fallback
	}
	return n
}

func (p *parser) positiveFloat(key string, fallback float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		p.fail(key)
		return fallback
	}
	return f
}

func (p *parser) boolean(key string, fallback bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key)
		return fallback
	}
	return b
}
