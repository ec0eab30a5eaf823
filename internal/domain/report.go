package domain

import (
	"errors"
	"fmt"
	"time"
)

// RiskLevel is the aggregate hazard classification for a coordinate.
type RiskLevel int

const (
	VeryLow RiskLevel = iota
	Low
	Moderate
	High
	VeryHigh
)

type riskLevelInfo struct {
	name        string
	display     string
	emoji       string
	description string
}

var riskLevels = [...]riskLevelInfo{
	{"VERY_LOW", "Very Low", "🟢", "Safe swimming conditions"},
	{"LOW", "Low", "🟡", "Few jellyfish expected"},
	{"MODERATE", "Moderate", "🟠", "Some jellyfish possible"},
	{"HIGH", "High", "🔴", "High jellyfish activity expected"},
	{"VERY_HIGH", "Very High", "⚫", "Dangerous conditions - avoid swimming"},
}

func (l RiskLevel) valid() bool {
	return l >= VeryLow && l <= VeryHigh
}

func (l RiskLevel) String() string {
	if !l.valid() {
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
	return riskLevels[l].name
}

// DisplayName returns a human-readable level name, e.g. "Very High".
func (l RiskLevel) DisplayName() string {
	if !l.valid() {
		return ""
	}
	return riskLevels[l].display
}

// Emoji returns the traffic-light marker used by chat front ends.
func (l RiskLevel) Emoji() string {
	if !l.valid() {
		return ""
	}
	return riskLevels[l].emoji
}

// Description returns a one-line summary of what the level means.
func (l RiskLevel) Description() string {
	if !l.valid() {
		return ""
	}
	return riskLevels[l].description
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	if !l.valid() {
		return nil, fmt.Errorf("invalid risk level %d", int(l))
	}
	return []byte(riskLevels[l].name), nil
}

func (l *RiskLevel) UnmarshalText(text []byte) error {
	for i, info := range riskLevels {
		if info.name == string(text) {
			*l = RiskLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", text)
}

// ErrPlaceNotFound is returned by geocoders when a name matches no place.
var ErrPlaceNotFound = errors.New("place not found")

// Place is a named location handed over by the geocoding collaborator.
// Resolved is false when the name could not be located.
type Place struct {
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coordinate"`
	Resolved   bool       `json:"resolved"`
}

// RiskReport is the composed assessment returned to presentation layers.
type RiskReport struct {
	ID         string     `json:"id"`
	Location   string     `json:"location,omitempty"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	RiskLevel  RiskLevel  `json:"risk_level"`
	Sightings  []Sighting `json:"sightings"`
	Prediction string     `json:"prediction"`
	Advisory   string     `json:"advisory"`
	Source     string     `json:"source"`
	ComputedAt time.Time  `json:"computed_at"`
}

const (
	noDataPrediction = "No data available for this location"
	noDataAdvisory   = "Check local beach conditions before swimming"
	noDataSource     = "No data"
)

// EmptyReport is the degraded report for input that cannot be assessed.
func EmptyReport(place Place, now time.Time) RiskReport {
	return RiskReport{
		Location:   place.Name,
		Latitude:   place.Coordinate.Lat,
		Longitude:  place.Coordinate.Lon,
		RiskLevel:  VeryLow,
		Sightings:  []Sighting{},
		Prediction: noDataPrediction,
		Advisory:   noDataAdvisory,
		Source:     noDataSource,
		ComputedAt: now,
	}
}

// DangerousCount returns the number of DANGEROUS or EXTREME sightings.
func (r RiskReport) DangerousCount() int {
	return countWhere(r.Sightings, func(s Sighting) bool { return s.Severity.IsDangerous() })
}

// RecentCount returns the number of sightings from the last week.
func (r RiskReport) RecentCount() int {
	return countWhere(r.Sightings, func(s Sighting) bool { return s.AgeDays <= recentDays })
}
