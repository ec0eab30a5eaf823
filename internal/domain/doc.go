// Package domain models jellyfish (Cnidaria) sighting data and the risk
// assessment derived from it.
//
// # Data Sources
//
// Sightings come from three open biodiversity APIs, each queried around the
// requested coordinate:
//
//	iNaturalist  community observations, point + radius query
//	GBIF         Global Biodiversity Information Facility occurrences, WKT polygon
//	OBIS         Ocean Biodiversity Information System occurrences, WKT polygon
//
// Adapters extract a provider-neutral [Observation] from each record and pass it
// to [Normalize], which produces the canonical [Sighting].
//
// # Normalization
//
// Severity is looked up by case-insensitive substring match against an ordered
// species table; the first match wins and unknown species default to [Mild].
//
// Common names follow a priority chain:
//
//	known mapping          "Pelagia noctiluca" → "Mauve Stinger"
//	provider vernacular    preferred_common_name / vernacularName
//	genus heuristic        "Cassiopea andromeda" → "Cassiopea Jellyfish"
//	phylum fallback        "Cnidaria" → "Jellyfish"
//	readable name          "OBELIA" → "Obelia"
//
// Age is counted in whole UTC calendar days between the observation date and
// "now". Date-only observations (iNaturalist observed_on) are placed at 12:00 UTC.
// Future dates produce a negative age and are removed by [Curate].
//
// # Curation
//
// [Curate] keeps sightings at most 30 days old and inside the search radius
// (50 km by default), drops records without a species or common name, then ranks
// by severity (descending), age (ascending) and distance (ascending). Only the
// first 10 survive. Sightings reported by more than one provider are kept as
// separate signals.
//
// # Risk Classification
//
// [Classify] derives three counts from the curated list:
//
//	recentDangerous  age ≤ 7 days and severity DANGEROUS or EXTREME
//	veryRecent       age ≤ 3 days
//	closeRecent      distance ≤ 10 km and age ≤ 14 days
//
// and applies the first matching rule:
//
//	VERY_HIGH  recentDangerous > 0 && veryRecent > 2
//	HIGH       recentDangerous > 0 || (veryRecent > 3 && closeRecent > 1)
//	MODERATE   closeRecent > 2 || veryRecent > 1
//	LOW        any sightings
//	VERY_LOW   no sightings
package domain
