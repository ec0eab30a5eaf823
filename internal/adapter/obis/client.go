// Package obis queries jellyfish occurrences from the Ocean Biodiversity
// Information System.
package obis

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
	Name           = "OBIS"
	Attribution    = "OBIS Network"
	DefaultBaseURL = "https://api.obis.org"
	DefaultTimeout = 8 * time.Second

	size = 20
)

// Client fetches and normalizes OBIS occurrence records.
type Client struct {
	getter  *upstream.Getter
	baseURL string
	timeout time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewClient creates an OBIS source.
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

// Fetch returns normalized occurrences inside the bounding box of the
// search circle. Failures are logged and yield an empty result.
func (c *Client) Fetch(ctx context.Context, coord domain.Coordinate, radiusKm float64) []domain.Sighting {
	now := c.clock.Now()
	params := url.Values{
		"geometry":       {coord.BoundingBox(radiusKm).WKT()},
		"scientificname": {"Cnidaria"},
		"startdate":      {now.AddDate(0, 0, -domain.MaxAgeDays).UTC().Format(time.DateOnly)},
		"enddate":        {now.UTC().Format(time.DateOnly)},
		"size":           {strconv.Itoa(size)},
	}

	body, err := c.getter.Get(ctx, c.baseURL+"/v3/occurrence?"+params.Encode())
	if err != nil {
		c.logger.Warn("occurrence request failed", "error", err)
		return nil
	}

	var resp occurrenceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.getter.RecordInvalid()
		c.logger.Warn("invalid occurrence response", "error", err)
		return nil
	}

	sightings := make([]domain.Sighting, 0, len(resp.Results))
	skipped := 0
	for i, raw := range resp.Results {
		s, err := normalize(raw, coord, now)
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

func normalize(raw json.RawMessage, coord domain.Coordinate, now time.Time) (domain.Sighting, error) {
	var rec occurrence
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Sighting{}, fmt.Errorf("%w: %w", domain.ErrMalformedRecord, err)
	}

	obs := domain.Observation{
		ScientificName: rec.Species,
		VernacularName: rec.VernacularName,
		Source:         Name,
		ReportedBy:     Attribution,
	}
	if obs.ScientificName == "" {
		obs.ScientificName = rec.ScientificName
	}
	if rec.DecimalLatitude != nil && rec.DecimalLongitude != nil {
		obs.Lat, obs.Lon, obs.HasCoordinates = *rec.DecimalLatitude, *rec.DecimalLongitude, true
	}

	switch {
	case rec.DateMid > 0:
		obs.ObservedAt = time.UnixMilli(rec.DateMid).UTC()
	default:
		observedAt, err := domain.ParseObservedDate(rec.EventDate)
		if err != nil {
			return domain.Sighting{}, err
		}
		obs.ObservedAt = observedAt
	}

	return domain.Normalize(obs, coord, now)
}

// OBIS v3 occurrence response types.

type occurrenceResponse struct {
	Total   int               `json:"total"`
	Results []json.RawMessage `json:"results"`
}

type occurrence struct {
	Species          string   `json:"species"`
	ScientificName   string   `json:"scientificName"`
	VernacularName   string   `json:"vernacularName"`
	DecimalLatitude  *float64 `json:"decimalLatitude"`
	DecimalLongitude *float64 `json:"decimalLongitude"`
	DateMid          int64    `json:"date_mid"`
	EventDate        string   `json:"eventDate"`
}
