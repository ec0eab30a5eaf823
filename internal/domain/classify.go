package domain

import (
	"fmt"
	"strings"
)

const (
	recentDays     = 7
	veryRecentDays = 3
	closeKm        = 10.0
	closeDays      = 14

	maxNamedSpecies = 3
)

const dangerSuffix = " Dangerous species reported - seek immediate medical attention if stung."

var advisories = [...]string{
	VeryLow:  "Good swimming conditions - minimal jellyfish risk.",
	Low:      "Generally safe, but remain alert for jellyfish.",
	Moderate: "Check water carefully before entering. Swim with caution.",
	High:     "Exercise extreme caution. Consider avoiding swimming.",
	VeryHigh: "Swimming not recommended! Stay out of the water.",
}

// Assessment is the classifier output for one curated sighting list.
type Assessment struct {
	Level      RiskLevel
	Prediction string
	Advisory   string
}

// Classify assigns a risk level to a curated list and renders the
// prediction and advisory texts for it.
func Classify(curated []Sighting) Assessment {
	level := classifyLevel(curated)
	return Assessment{
		Level:      level,
		Prediction: prediction(curated, level),
		Advisory:   advisory(curated, level),
	}
}

func classifyLevel(curated []Sighting) RiskLevel {
	recentDangerous := countWhere(curated, func(s Sighting) bool {
		return s.AgeDays <= recentDays && s.Severity.IsDangerous()
	})
	veryRecent := countWhere(curated, func(s Sighting) bool {
		return s.AgeDays <= veryRecentDays
	})
	closeRecent := countWhere(curated, func(s Sighting) bool {
		return s.DistanceKm <= closeKm && s.AgeDays <= closeDays
	})

	switch {
	case recentDangerous > 0 && veryRecent > 2:
		return VeryHigh
	case recentDangerous > 0 || (veryRecent > 3 && closeRecent > 1):
		return High
	case closeRecent > 2 || veryRecent > 1:
		return Moderate
	case len(curated) > 0:
		return Low
	default:
		return VeryLow
	}
}

func prediction(curated []Sighting, level RiskLevel) string {
	if len(curated) == 0 {
		return "No recent jellyfish activity detected in this area"
	}

	recent := countWhere(curated, func(s Sighting) bool { return s.AgeDays <= recentDays })
	species := speciesSummary(curated)

	switch level {
	case VeryHigh:
		return fmt.Sprintf("High risk: %d recent dangerous jellyfish sightings (%s)", recent, species)
	case High:
		return fmt.Sprintf("Elevated risk: %d recent jellyfish sightings including %s", recent, species)
	case Moderate:
		return fmt.Sprintf("Moderate activity: %d jellyfish sightings reported recently (%s)", recent, species)
	case Low:
		return fmt.Sprintf("Low activity: Few jellyfish sightings (%s)", species)
	default:
		return "Minimal jellyfish activity - conditions appear safe"
	}
}

// speciesSummary joins the first few distinct common names in list order.
func speciesSummary(curated []Sighting) string {
	seen := make(map[string]struct{}, maxNamedSpecies)
	names := make([]string, 0, maxNamedSpecies)
	for _, s := range curated {
		if len(names) == maxNamedSpecies {
			break
		}
		if _, dup := seen[s.CommonName]; dup {
			continue
		}
		seen[s.CommonName] = struct{}{}
		names = append(names, s.CommonName)
	}
	if len(names) == 0 {
		return "marine life"
	}
	return strings.Join(names, ", ")
}

func advisory(curated []Sighting, level RiskLevel) string {
	text := advisories[VeryLow]
	if level.valid() {
		text = advisories[level]
	}
	if countWhere(curated, func(s Sighting) bool { return s.Severity.IsDangerous() }) > 0 {
		text += dangerSuffix
	}
	return text
}

func countWhere(sightings []Sighting, pred func(Sighting) bool) int {
	n := 0
	for _, s := range sightings {
		if pred(s) {
			n++
		}
	}
	return n
}
