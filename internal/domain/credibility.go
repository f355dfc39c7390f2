package domain

import (
	"math"
	"time"
)

// credibilityHorizon controls recency decay: a report this old scores 1/e of
// the full recency component.
const credibilityHorizon = 24 * time.Hour

// Component weights. Source authority dominates; recency, location
// plausibility, and media corroboration refine it.
const (
	sourceComponentWeight  = 0.60
	recencyComponentWeight = 0.25
	locationPlausibleBonus = 0.05
	mediaPresenceBonus     = 0.03
	mediaVerifiedBonus     = 0.07
)

// sourceBaseWeights orders sources by authority: official feeds above
// citizens, citizens above social media, everything else at the bottom.
var sourceBaseWeights = map[string]float64{
	SourceINCOIS:  0.90,
	SourceIMD:     0.90,
	SourceIoT:     0.75,
	SourceCitizen: 0.60,
	SourceSocial:  0.40,
}

const unknownSourceWeight = 0.30

// Credibility scores how much to trust a single report, independent of what
// hazard it describes. A zero timestamp is treated as "now" rather than
// failing — submissions with broken clocks still get scored.
func Credibility(source, text string, lat, lon float64, timestamp time.Time, hasMedia, mediaVerified bool) float64 {
	base, ok := sourceBaseWeights[source]
	if !ok {
		base = unknownSourceWeight
	}

	score := base*sourceComponentWeight + recencyFactor(timestamp)*recencyComponentWeight

	if plausibleLocation(lat, lon) {
		score += locationPlausibleBonus
	}
	if hasMedia {
		score += mediaPresenceBonus
		if mediaVerified {
			score += mediaVerifiedBonus
		}
	}
	if len(text) == 0 {
		score -= 0.05
	}

	return clamp01(score)
}

// recencyFactor decays smoothly from 1 as the report ages. Future timestamps
// (clock skew between submitter and server) count as fresh.
func recencyFactor(timestamp time.Time) float64 {
	if timestamp.IsZero() {
		return 1
	}
	age := clock.Now().Sub(timestamp)
	if age <= 0 {
		return 1
	}
	return math.Exp(-float64(age) / float64(credibilityHorizon))
}

// plausibleLocation rejects coordinates outside WGS-84 range and the (0,0)
// null island default that unset GPS fields collapse to.
func plausibleLocation(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
