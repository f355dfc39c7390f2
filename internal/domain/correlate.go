package domain

import (
	"sort"
	"strings"
	"time"
)

// Correlation window around a report's event time: bulletins issued up to 72
// hours before or 6 hours after are candidates.
const (
	CorrelationWindowBefore = 72 * time.Hour
	CorrelationWindowAfter  = 6 * time.Hour

	maxCorrelationBulletins = 20
	conflictSeverityFloor   = 4
)

// Correlation outcome types, strongest to weakest.
const (
	CorrelationExactMatch   = "exact_match"
	CorrelationStrongMatch  = "strong_match"
	CorrelationWeakConflict = "weak_conflict"
	CorrelationNone         = "no_correlation"
	CorrelationEmpty        = "none"
)

// relatedHazardTypes expands a hazard type to the set of bulletin types that
// corroborate it. Coastal hazards co-occur: a tsunami bulletin supports a
// flood report, an earthquake bulletin supports a landslide report.
var relatedHazardTypes = map[string][]string{
	HazardFlood:      {HazardFlood, HazardTsunami, HazardTides},
	HazardTsunami:    {HazardTsunami, HazardFlood, HazardEarthquake},
	HazardTides:      {HazardTides, HazardFlood, HazardTsunami},
	HazardEarthquake: {HazardEarthquake, HazardTsunami, HazardLandslide},
	HazardLandslide:  {HazardLandslide, HazardEarthquake, HazardFlood},
}

// BulletinCorrelation is the outcome of matching a report (or group
// representative) against the bulletin window.
type BulletinCorrelation struct {
	Correlation       float64 `json:"correlation"`
	Boost             float64 `json:"boost"`
	Type              string  `json:"type"`
	MatchingBulletins int     `json:"matching_bulletins"`

	// MaxSeverity is the highest agency-reported severity among matching
	// bulletins; the fusion engine folds it into event severity.
	MaxSeverity int `json:"max_severity,omitempty"`
}

// CorrelationWindow returns the bulletin search range for a report time.
func CorrelationWindow(reportTime time.Time) (time.Time, time.Time) {
	return reportTime.Add(-CorrelationWindowBefore), reportTime.Add(CorrelationWindowAfter)
}

// CorrelateBulletins checks a hazard type and event time against candidate
// bulletins and returns a confidence adjustment. A zero report time (the
// malformed-timestamp case) degrades to the empty result instead of failing.
//
// Policy: any related-type bulletin in the window is a match; boost 0.4 when
// at least one match is the exact type, 0.3 otherwise. With no matches, a
// severity>=4 bulletin of an unrelated type counts as a weak conflict worth
// -0.1. No bulletins in the window at all yields the zero-valued "none".
func CorrelateBulletins(reportTime time.Time, hazardType string, bulletins []RawBulletin) BulletinCorrelation {
	empty := BulletinCorrelation{Type: CorrelationEmpty}
	if reportTime.IsZero() {
		return empty
	}

	windowStart, windowEnd := CorrelationWindow(reportTime)

	candidates := make([]RawBulletin, 0, len(bulletins))
	for _, b := range bulletins {
		if b.IssuedAt.IsZero() || b.IssuedAt.Before(windowStart) || b.IssuedAt.After(windowEnd) {
			continue
		}
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return empty
	}

	// Most recent first, capped: old bulletins at the far edge of the window
	// should not crowd out fresh ones.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].IssuedAt.After(candidates[j].IssuedAt)
	})
	if len(candidates) > maxCorrelationBulletins {
		candidates = candidates[:maxCorrelationBulletins]
	}

	reportType := strings.ToLower(hazardType)
	related := relatedHazardTypes[reportType]
	if related == nil {
		related = []string{reportType}
	}

	var matches []RawBulletin
	var conflicts int
	for _, b := range candidates {
		bulletinType := strings.ToLower(b.HazardType)
		if isRelatedType(bulletinType, reportType, related) {
			matches = append(matches, b)
		} else if b.Severity >= conflictSeverityFloor {
			conflicts++
		}
	}

	if len(matches) > 0 {
		result := BulletinCorrelation{
			Correlation:       min95(0.6 + float64(len(matches))*0.1),
			Boost:             0.3,
			Type:              CorrelationStrongMatch,
			MatchingBulletins: len(matches),
		}
		for _, m := range matches {
			if strings.ToLower(m.HazardType) == reportType {
				result.Boost = 0.4
				result.Type = CorrelationExactMatch
			}
			if m.Severity > result.MaxSeverity {
				result.MaxSeverity = m.Severity
			}
		}
		return result
	}

	if conflicts > 0 {
		return BulletinCorrelation{
			Correlation: 0.3,
			Boost:       -0.1,
			Type:        CorrelationWeakConflict,
		}
	}

	return BulletinCorrelation{
		Correlation: 0.5,
		Boost:       0,
		Type:        CorrelationNone,
	}
}

func isRelatedType(bulletinType, reportType string, related []string) bool {
	for _, t := range related {
		if bulletinType == t {
			return true
		}
	}
	// Fuzzy fallback for agency type strings like "coastal flood warning".
	if reportType != "" && bulletinType != "" {
		if strings.Contains(bulletinType, reportType) || strings.Contains(reportType, bulletinType) {
			return true
		}
	}
	return false
}

func min95(v float64) float64 {
	if v > 0.95 {
		return 0.95
	}
	return v
}
