package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

const (
	// DefaultAggregateTimeout bounds one complete fan-out.
	DefaultAggregateTimeout = 10 * time.Second

	workerLimit = 3
)

// Source fetches normalized sightings from one provider. Implementations
// must not return errors: any failure yields an empty result.
type Source interface {
	Name() string
	Timeout() time.Duration
	Fetch(ctx context.Context, coord domain.Coordinate, radiusKm float64) []domain.Sighting
}

// Coordinator queries every registered source concurrently under a shared
// deadline.
type Coordinator struct {
	sources  []Source
	radiusKm float64
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewCoordinator creates a Coordinator. Non-positive radius and timeout fall
// back to the defaults.
func NewCoordinator(sources []Source, radiusKm float64, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	if radiusKm <= 0 {
		radiusKm = domain.DefaultSearchRadiusKm
	}
	if timeout <= 0 {
		timeout = DefaultAggregateTimeout
	}
	return &Coordinator{
		sources:  sources,
		radiusKm: radiusKm,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// RadiusKm returns the search radius passed to every source.
func (c *Coordinator) RadiusKm() float64 { return c.radiusKm }

// SourceNames returns the registered source names in registration order.
func (c *Coordinator) SourceNames() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

type sourceResult struct {
	index     int
	sightings []domain.Sighting
}

// Aggregate fans out to all sources and concatenates their sightings in
// registration order. When the deadline passes first, only the sources that
// already finished contribute; the rest are abandoned, not awaited.
func (c *Coordinator) Aggregate(ctx context.Context, coord domain.Coordinate) []domain.Sighting {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make(chan sourceResult, len(c.sources))

	// g.Go blocks while all workers are busy, so launching runs apart from
	// the collecting loop below and the deadline is observed throughout.
	var g errgroup.Group
	g.SetLimit(workerLimit)
	go func() {
		for i, src := range c.sources {
			if ctx.Err() != nil {
				return
			}
			g.Go(func() error {
				results <- sourceResult{index: i, sightings: c.fetch(ctx, src, coord)}
				return nil
			})
		}
	}()

	collected := make([][]domain.Sighting, len(c.sources))
	pending := len(c.sources)
	for pending > 0 {
		select {
		case r := <-results:
			collected[r.index] = r.sightings
			pending--
		case <-ctx.Done():
			c.logger.Warn("aggregation deadline reached, using partial results",
				"lat", coord.Lat,
				"lon", coord.Lon,
				"pending_sources", pending,
				"reason", ctx.Err(),
			)
			if c.metrics != nil {
				c.metrics.PartialAggregations.Inc()
			}
			return flatten(collected)
		}
	}

	return flatten(collected)
}

// fetch runs one source under its own deadline, converting expiry and panics
// into an empty result.
func (c *Coordinator) fetch(ctx context.Context, src Source, coord domain.Coordinate) (sightings []domain.Sighting) {
	timeout := c.timeout
	if t := src.Timeout(); t > 0 && t < timeout {
		timeout = t
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := c.logger.With("source", src.Name())
	defer func() {
		if r := recover(); r != nil {
			logger.Error("source panicked", "panic", r)
			sightings = nil
		}
	}()

	start := time.Now()
	sightings = src.Fetch(ctx, coord, c.radiusKm)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Warn("source timed out", "timeout", timeout)
		return nil
	}

	logger.Debug("source finished", "sightings", len(sightings), "duration", time.Since(start))
	return sightings
}

func flatten(parts [][]domain.Sighting) []domain.Sighting {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]domain.Sighting, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
