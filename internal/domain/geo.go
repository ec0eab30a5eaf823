package domain

import (
	"fmt"
	"math"
)

const (
	earthRadiusKm = 6371.0

	// kmPerDegree is the length of one degree of latitude.
	kmPerDegree = 111.32
)

// Coordinate is a WGS-84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is finite and within WGS-84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Key returns the coordinate rounded to 4 decimal places (~11 m), so nearby
// queries share a cache entry.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.4f,%.4f", round4(c.Lat), round4(c.Lon))
}

func round4(v float64) float64 {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		return 0 // drop negative zero so "-0.0000" never appears in keys
	}
	return r
}

// DistanceKm returns the haversine great-circle distance to other.
func (c Coordinate) DistanceKm(other Coordinate) float64 {
	dLat := toRadians(other.Lat - c.Lat)
	dLon := toRadians(other.Lon - c.Lon)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(c.Lat))*math.Cos(toRadians(other.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// BoundingBox is an axis-aligned lat/lon box.
type BoundingBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// BoundingBox returns the box enclosing the circle of radiusKm around c.
// Longitude span widens with latitude; both axes are clamped to WGS-84 bounds.
func (c Coordinate) BoundingBox(radiusKm float64) BoundingBox {
	latOffset := radiusKm / kmPerDegree
	cosLat := math.Cos(toRadians(c.Lat))
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonOffset := radiusKm / (kmPerDegree * cosLat)

	return BoundingBox{
		MinLat: math.Max(c.Lat-latOffset, -90),
		MaxLat: math.Min(c.Lat+latOffset, 90),
		MinLon: math.Max(c.Lon-lonOffset, -180),
		MaxLon: math.Min(c.Lon+lonOffset, 180),
	}
}

// WKT renders the box as a counter-clockwise closed WKT polygon in lon/lat order,
// the form accepted by the GBIF and OBIS geometry filters.
func (b BoundingBox) WKT() string {
	return fmt.Sprintf("POLYGON((%.4f %.4f,%.4f %.4f,%.4f %.4f,%.4f %.4f,%.4f %.4f))",
		b.MinLon, b.MinLat,
		b.MaxLon, b.MinLat,
		b.MaxLon, b.MaxLat,
		b.MinLon, b.MaxLat,
		b.MinLon, b.MinLat,
	)
}
