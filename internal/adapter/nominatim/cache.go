package nominatim

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

// Geocoder resolves a place name.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (domain.Place, error)
}

// CachedGeocoder memoizes successful lookups of an inner Geocoder.
type CachedGeocoder struct {
	inner   Geocoder
	cache   *gocache.Cache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner Geocoder, ttl time.Duration, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   gocache.New(ttl, ttl*2),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, name string) (domain.Place, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if cached, found := c.cache.Get(key); found {
		c.count("hit")
		return cached.(domain.Place), nil
	}
	c.count("miss")

	place, err := c.inner.Geocode(ctx, name)
	if err != nil {
		return place, err
	}
	// Only successes are cached so a transient miss can be retried.
	if place.Resolved {
		c.cache.Set(key, place, gocache.DefaultExpiration)
	}
	return place, nil
}

func (c *CachedGeocoder) count(result string) {
	if c.metrics != nil {
		c.metrics.GeocodeCache.WithLabelValues(result).Inc()
	}
}
