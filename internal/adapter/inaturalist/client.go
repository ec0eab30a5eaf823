// Package inaturalist queries community jellyfish observations from the
// iNaturalist API.
package inaturalist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/jellyfish-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

const (
	Name           = "iNaturalist"
	Attribution    = "iNaturalist Community"
	DefaultBaseURL = "https://api.inaturalist.org"
	DefaultTimeout = 5 * time.Second

	perPage = 20
)

// Client fetches and normalizes iNaturalist observations.
type Client struct {
	getter  *upstream.Getter
	baseURL string
	timeout time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewClient creates an iNaturalist source.
func NewClient(cfg upstream.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		getter:  upstream.NewGetter(Name, cfg, metrics, logger),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		clock:   clock,
		logger:  logger.With("source", Name),
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) Timeout() time.Duration { return c.timeout }

// Fetch returns normalized sightings around coord. Failures are logged and
// yield an empty result.
func (c *Client) Fetch(ctx context.Context, coord domain.Coordinate, radiusKm float64) []domain.Sighting {
	now := c.clock.Now()
	params := url.Values{
		"taxon_name": {"Cnidaria"},
		"lat":        {formatFloat(coord.Lat)},
		"lng":        {formatFloat(coord.Lon)},
		"radius":     {formatFloat(radiusKm)},
		"d1":         {now.AddDate(0, 0, -domain.MaxAgeDays).UTC().Format(time.DateOnly)},
		"per_page":   {strconv.Itoa(perPage)},
		"order":      {"desc"},
		"order_by":   {"observed_on"},
	}

	body, err := c.getter.Get(ctx, c.baseURL+"/v1/observations?"+params.Encode())
	if err != nil {
		c.logger.Warn("observation request failed", "error", err)
		return nil
	}

	sightings, err := c.parse(body, coord, now)
	if err != nil {
		c.getter.RecordInvalid()
		c.logger.Warn("invalid observation response", "error", err)
		return nil
	}
	c.logger.Debug("observations fetched", "sightings", len(sightings))
	return sightings
}

// parse decodes the response envelope. Elements that are not objects or do
// not normalize are skipped one by one.
func (c *Client) parse(body []byte, coord domain.Coordinate, now time.Time) ([]domain.Sighting, error) {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, err
	}
	results, err := obj.GetValueArray("results")
	if err != nil {
		return nil, err
	}

	sightings := make([]domain.Sighting, 0, len(results))
	skipped := 0
	for i, v := range results {
		r, err := v.Object()
		if err != nil {
			skipped++
			c.logger.Debug("skipping observation", "index", i, "error", fmt.Errorf("%w: %w", domain.ErrMalformedRecord, err))
			continue
		}
		s, err := domain.Normalize(observation(r), coord, now)
		if err != nil {
			skipped++
			c.logger.Debug("skipping observation", "index", i, "error", err)
			continue
		}
		sightings = append(sightings, s)
	}
	c.getter.RecordSkipped(skipped)
	return sightings, nil
}

func observation(r *jason.Object) domain.Observation {
	obs := domain.Observation{Source: Name, ReportedBy: Attribution}

	obs.ScientificName, _ = r.GetString("taxon", "name")
	obs.VernacularName, _ = r.GetString("taxon", "preferred_common_name")

	if loc, err := r.GetString("location"); err == nil {
		if lat, lon, err := parseLocation(loc); err == nil {
			obs.Lat, obs.Lon, obs.HasCoordinates = lat, lon, true
		}
	}

	if day, err := r.GetString("observed_on"); err == nil {
		if t, err := time.Parse(time.DateOnly, day); err == nil {
			obs.ObservedAt = t.Add(12 * time.Hour)
		}
	}
	if obs.ObservedAt.IsZero() {
		if ts, err := r.GetString("time_observed_at"); err == nil {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				obs.ObservedAt = t.UTC()
			}
		}
	}
	return obs
}

var errBadLocation = errors.New("location must be \"lat,lon\"")

func parseLocation(loc string) (float64, float64, error) {
	latStr, lonStr, ok := strings.Cut(loc, ",")
	if !ok {
		return 0, 0, errBadLocation
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, errBadLocation
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, errBadLocation
	}
	return lat, lon, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
