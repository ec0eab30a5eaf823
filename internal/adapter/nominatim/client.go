// Package nominatim resolves place names to coordinates using the
// OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

const (
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	DefaultTimeout = 5 * time.Second
)

// ErrNotFound is returned when the search has no match.
var ErrNotFound = domain.ErrPlaceNotFound

// Config describes the Nominatim endpoint.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	UserAgent    string
	CountryCodes string // comma-separated ISO 3166 alpha-2 codes; empty searches everywhere
}

// Client looks up places by name.
type Client struct {
	baseURL      string
	userAgent    string
	countryCodes string
	httpClient   *http.Client
	limiter      *rate.Limiter
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a Nominatim client limited to one request per second,
// the public instance's usage policy.
func NewClient(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:    cfg.UserAgent,
		countryCodes: strings.ToLower(strings.ReplaceAll(cfg.CountryCodes, " ", "")),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		metrics: metrics,
		logger:  logger,
	}
}

// Geocode resolves name to a place. It returns ErrNotFound when nothing matches.
func (c *Client) Geocode(ctx context.Context, name string) (domain.Place, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Place{}, fmt.Errorf("geocode: %w", ErrNotFound)
	}

	params := url.Values{
		"q":      {name},
		"format": {"json"},
		"limit":  {"1"},
	}
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	place, err := c.doRequest(ctx, c.baseURL+"/search?"+params.Encode(), name)
	switch {
	case errors.Is(err, ErrNotFound):
		c.count("not_found")
	case err != nil:
		c.count("error")
	default:
		c.count("success")
	}
	return place, err
}

func (c *Client) doRequest(ctx context.Context, fullURL, name string) (domain.Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Place{}, fmt.Errorf("geocode rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Place{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Place{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Place{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.Place{}, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return domain.Place{}, fmt.Errorf("geocode %q: %w", name, ErrNotFound)
	}

	r := results[0]
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("parse lat %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("parse lon %q: %w", r.Lon, err)
	}

	c.logger.Debug("place geocoded", "name", name, "display_name", r.DisplayName, "lat", lat, "lon", lon)
	return domain.Place{
		Name:       name,
		Coordinate: domain.Coordinate{Lat: lat, Lon: lon},
		Resolved:   true,
	}, nil
}

func (c *Client) count(outcome string) {
	if c.metrics != nil {
		c.metrics.GeocodeRequests.WithLabelValues(outcome).Inc()
	}
}

// Nominatim search response types. Coordinates arrive as strings.

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
