// Package gbif queries jellyfish occurrences from the Global Biodiversity
// Information Facility.
package gbif

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/jellyfish-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

const (
	Name           = "GBIF"
	Attribution    = "GBIF Network"
	DefaultBaseURL = "https://api.gbif.org"
	DefaultTimeout = 8 * time.Second

	limit = 20
)

// Client fetches and normalizes GBIF occurrence records.
type Client struct {
	getter  *upstream.Getter
	baseURL string
	country string
	timeout time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewClient creates a GBIF source. A non-empty country (ISO 3166 alpha-2)
// restricts results to that country.
func NewClient(cfg upstream.Config, country string, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		getter:  upstream.NewGetter(Name, cfg, metrics, logger),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		country: strings.ToUpper(strings.TrimSpace(country)),
		timeout: cfg.Timeout,
		clock:   clock,
		logger:  logger.With("source", Name),
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) Timeout() time.Duration { return c.timeout }

// Fetch returns normalized occurrences inside the bounding box of the
// search circle. Failures are logged and yield an empty result.
func (c *Client) Fetch(ctx context.Context, coord domain.Coordinate, radiusKm float64) []domain.Sighting {
	now := c.clock.Now()
	from := now.AddDate(0, 0, -domain.MaxAgeDays).UTC().Format(time.DateOnly)
	to := now.UTC().Format(time.DateOnly)

	params := url.Values{
		"q":             {"Cnidaria"},
		"hasCoordinate": {"true"},
		"geometry":      {coord.BoundingBox(radiusKm).WKT()},
		"eventDate":     {from + "," + to},
		"limit":         {strconv.Itoa(limit)},
	}
	if c.country != "" {
		params.Set("country", c.country)
	}

	body, err := c.getter.Get(ctx, c.baseURL+"/v1/occurrence/search?"+params.Encode())
	if err != nil {
		c.logger.Warn("occurrence request failed", "error", err)
		return nil
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.getter.RecordInvalid()
		c.logger.Warn("invalid occurrence response", "error", err)
		return nil
	}

	sightings := make([]domain.Sighting, 0, len(resp.Results))
	skipped := 0
	for i, raw := range resp.Results {
		s, err := c.normalize(raw, coord, now)
		if err != nil {
			skipped++
			c.logger.Debug("skipping occurrence", "index", i, "error", err)
			continue
		}
		sightings = append(sightings, s)
	}
	c.getter.RecordSkipped(skipped)
	return sightings
}

func (c *Client) normalize(raw json.RawMessage, coord domain.Coordinate, now time.Time) (domain.Sighting, error) {
	var rec occurrence
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Sighting{}, fmt.Errorf("%w: %w", domain.ErrMalformedRecord, err)
	}

	obs := domain.Observation{
		ScientificName: rec.ScientificName,
		VernacularName: rec.VernacularName,
		Source:         Name,
		ReportedBy:     Attribution,
	}
	if rec.DecimalLatitude != nil && rec.DecimalLongitude != nil {
		obs.Lat, obs.Lon, obs.HasCoordinates = *rec.DecimalLatitude, *rec.DecimalLongitude, true
	}

	observedAt, err := domain.ParseObservedDate(rec.EventDate)
	if err != nil {
		return domain.Sighting{}, err
	}
	obs.ObservedAt = observedAt

	return domain.Normalize(obs, coord, now)
}

// GBIF occurrence search response types.

type searchResponse struct {
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
}

type occurrence struct {
	ScientificName   string   `json:"scientificName"`
	VernacularName   string   `json:"vernacularName"`
	DecimalLatitude  *float64 `json:"decimalLatitude"`
	DecimalLongitude *float64 `json:"decimalLongitude"`
	EventDate        string   `json:"eventDate"`
}
