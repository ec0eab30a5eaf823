package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedRecord marks a provider record that cannot become a Sighting.
var ErrMalformedRecord = errors.New("malformed record")

type severityRule struct {
	pattern  string
	severity Severity
}

// severityTable is matched top to bottom by case-insensitive substring.
var severityTable = []severityRule{
	{"Physalia physalis", Extreme}, // Portuguese Man o' War
	{"Chironex fleckeri", Extreme}, // Australian box jellyfish
	{"Carybdea", Dangerous},        // box jellyfish genus
	{"Pelagia noctiluca", Painful}, // Mauve Stinger
	{"Chrysaora", Painful},         // sea nettles
	{"Aurelia aurita", Mild},       // Moon Jellyfish
	{"Rhizostoma pulmo", Mild},     // Barrel Jellyfish
}

type commonNameRule struct {
	pattern string
	name    string
}

// commonNameTable is matched like severityTable; binomials precede the genus
// entries that would also match them.
var commonNameTable = []commonNameRule{
	{"Physalia physalis", "Portuguese Man o' War"},
	{"Chironex fleckeri", "Box Jellyfish"},
	{"Pelagia noctiluca", "Mauve Stinger"},
	{"Chrysaora quinquecirrha", "Sea Nettle"},
	{"Chrysaora", "Sea Nettle"},
	{"Aurelia aurita", "Moon Jellyfish"},
	{"Aurelia", "Moon Jellyfish"},
	{"Rhizostoma pulmo", "Barrel Jellyfish"},
	{"Rhizostoma", "Barrel Jellyfish"},
	{"Cnidaria", "Jellyfish"},
}

// DetermineSeverity maps a scientific name to a severity. Unknown or empty
// names are MILD.
func DetermineSeverity(species string) Severity {
	lower := strings.ToLower(species)
	if lower == "" {
		return Mild
	}
	for _, rule := range severityTable {
		if strings.Contains(lower, strings.ToLower(rule.pattern)) {
			return rule.severity
		}
	}
	return Mild
}

// CommonName derives a display name for species. It returns "" only when
// species is blank; callers treat that as unusable.
func CommonName(species, vernacular string) string {
	species = strings.TrimSpace(species)
	if species == "" {
		return ""
	}

	lower := strings.ToLower(species)
	for _, rule := range commonNameTable {
		if strings.Contains(lower, strings.ToLower(rule.pattern)) {
			return rule.name
		}
	}

	if v := strings.TrimSpace(vernacular); v != "" && v != "null" {
		return v
	}

	if genus, _, found := strings.Cut(species, " "); found {
		return Readable(genus) + " Jellyfish"
	}

	if strings.EqualFold(species, "cnidaria") {
		return "Jellyfish"
	}

	return Readable(species)
}

// Readable capitalizes the first letter and lower-cases the rest.
func Readable(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	r := []rune(name)
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseObservedDate parses the date formats the providers emit: RFC 3339,
// ISO local date-time (read as UTC), a bare date (placed at 12:00 UTC) or an
// ISO interval "from/to", of which only the start is used.
func ParseObservedDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if start, _, isRange := strings.Cut(value, "/"); isRange {
		value = start
	}
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrMalformedRecord)
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrMalformedRecord, value)
}

// AgeDays counts whole UTC calendar days from observedAt to now. It is
// negative when observedAt lies in the future.
func AgeDays(observedAt, now time.Time) int {
	return int(utcDate(now).Sub(utcDate(observedAt)) / (24 * time.Hour))
}

func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Normalize converts a provider observation into a canonical Sighting
// relative to the query coordinate.
func Normalize(obs Observation, query Coordinate, now time.Time) (Sighting, error) {
	if !obs.HasCoordinates {
		return Sighting{}, fmt.Errorf("%w: missing coordinates", ErrMalformedRecord)
	}
	at := Coordinate{Lat: obs.Lat, Lon: obs.Lon}
	if !at.Valid() {
		return Sighting{}, fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrMalformedRecord, obs.Lat, obs.Lon)
	}
	if obs.ObservedAt.IsZero() {
		return Sighting{}, fmt.Errorf("%w: missing observation date", ErrMalformedRecord)
	}

	species := strings.TrimSpace(obs.ScientificName)
	return Sighting{
		Species:    species,
		CommonName: CommonName(species, obs.VernacularName),
		Severity:   DetermineSeverity(species),
		ObservedAt: obs.ObservedAt,
		AgeDays:    AgeDays(obs.ObservedAt, now),
		Latitude:   obs.Lat,
		Longitude:  obs.Lon,
		DistanceKm: query.DistanceKm(at),
		Source:     obs.Source,
		ReportedBy: obs.ReportedBy,
		Verified:   true,
	}, nil
}
