package domain

import "slices"

const (
	// MaxAgeDays is the oldest sighting kept in an assessment.
	MaxAgeDays = 30
	// DefaultSearchRadiusKm is the radius used when none is configured.
	DefaultSearchRadiusKm = 50.0
	// MaxCuratedSightings caps the list handed to classification and callers.
	MaxCuratedSightings = 10
)

// Curate filters, ranks and truncates sightings. It keeps records aged 0 to
// MaxAgeDays inside radiusKm that carry both a species and a common name,
// orders them by severity (descending), age and distance (ascending), and
// returns at most MaxCuratedSightings. The input slice is not modified and
// the result is never nil.
func Curate(records []Sighting, radiusKm float64) []Sighting {
	if radiusKm <= 0 {
		radiusKm = DefaultSearchRadiusKm
	}

	kept := make([]Sighting, 0, len(records))
	for _, s := range records {
		if s.AgeDays < 0 || s.AgeDays > MaxAgeDays {
			continue
		}
		if s.DistanceKm > radiusKm {
			continue
		}
		if s.Species == "" || s.CommonName == "" {
			continue
		}
		kept = append(kept, s)
	}

	slices.SortStableFunc(kept, compareSightings)

	if len(kept) > MaxCuratedSightings {
		kept = kept[:MaxCuratedSightings]
	}
	return kept
}

func compareSightings(a, b Sighting) int {
	if a.Severity != b.Severity {
		return int(b.Severity) - int(a.Severity)
	}
	if a.AgeDays != b.AgeDays {
		return a.AgeDays - b.AgeDays
	}
	switch {
	case a.DistanceKm < b.DistanceKm:
		return -1
	case a.DistanceKm > b.DistanceKm:
		return 1
	}
	return 0
}
