package nominatim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/jellyfish-risk-service/internal/domain"
	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls int
	place domain.Place
	err   error
}

func (m *countingGeocoder) Geocode(_ context.Context, _ string) (domain.Place, error) {
	m.calls++
	return m.place, m.err
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{place: domain.Place{Name: "Nice", Coordinate: domain.Coordinate{Lat: 43.70, Lon: 7.27}, Resolved: true}}
	m := observability.NewMetricsForTesting()
	cached := NewCachedGeocoder(inner, time.Hour, m)

	p1, err := cached.Geocode(context.Background(), "Nice")
	require.NoError(t, err)
	p2, err := cached.Geocode(context.Background(), "  NICE ")
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("miss")), 0)
}

func TestCachedGeocoder_ErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{err: ErrNotFound}
	cached := NewCachedGeocoder(inner, time.Hour, nil)

	_, err := cached.Geocode(context.Background(), "Atlantis")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = cached.Geocode(context.Background(), "Atlantis")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_UnresolvedNotCached(t *testing.T) {
	inner := &countingGeocoder{place: domain.Place{Name: "Somewhere"}}
	cached := NewCachedGeocoder(inner, time.Hour, nil)

	_, _ = cached.Geocode(context.Background(), "Somewhere")
	_, _ = cached.Geocode(context.Background(), "Somewhere")

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_Expiry(t *testing.T) {
	inner := &countingGeocoder{place: domain.Place{Name: "Nice", Resolved: true}}
	cached := NewCachedGeocoder(inner, 50*time.Millisecond, nil)

	_, err := cached.Geocode(context.Background(), "Nice")
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)
	_, err = cached.Geocode(context.Background(), "Nice")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_PropagatesTransportErrors(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("connection refused")}
	cached := NewCachedGeocoder(inner, time.Hour, nil)

	_, err := cached.Geocode(context.Background(), "Nice")
	require.EqualError(t, err, "connection refused")
}
