package domain

import (
	"fmt"
	"time"
)

// Severity classifies a species' typical effect on a person. Values are
// ordered: a higher value is more dangerous.
type Severity int

const (
	Harmless Severity = iota
	Mild
	Painful
	Dangerous
	Extreme
)

var severityNames = [...]string{"HARMLESS", "MILD", "PAINFUL", "DANGEROUS", "EXTREME"}

var severityDisplay = [...]string{"Harmless", "Mild sting", "Painful sting", "Dangerous", "Life-threatening"}

func (s Severity) valid() bool {
	return s >= Harmless && s <= Extreme
}

func (s Severity) String() string {
	if !s.valid() {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// DisplayName returns the user-facing description, e.g. "Painful sting".
func (s Severity) DisplayName() string {
	if !s.valid() {
		return ""
	}
	return severityDisplay[s]
}

// IsDangerous reports whether the severity is DANGEROUS or EXTREME.
func (s Severity) IsDangerous() bool {
	return s >= Dangerous
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(severityNames[s]), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	for i, name := range severityNames {
		if name == string(text) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Observation is a provider record reduced to the fields normalization needs.
// Adapters fill it from their own response schema.
type Observation struct {
	ScientificName string
	VernacularName string
	Lat            float64
	Lon            float64
	HasCoordinates bool
	ObservedAt     time.Time // zero when the provider gave no usable date
	Source         string
	ReportedBy     string
}

// Sighting is a canonical, normalized observation of a hazardous organism.
type Sighting struct {
	Species    string    `json:"species"`
	CommonName string    `json:"common_name"`
	Severity   Severity  `json:"severity"`
	ObservedAt time.Time `json:"observed_at"`
	AgeDays    int       `json:"age_days"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DistanceKm float64   `json:"distance_km"`
	Source     string    `json:"source"`
	ReportedBy string    `json:"reported_by,omitempty"`
	Verified   bool      `json:"verified"`
}
