package domain

import "strings"

// keyword pairs a lexicon term with its specificity weight. Multi-word terms
// match as phrases; single words match as substrings, so "flooding" also
// triggers "flood".
type keyword struct {
	term   string
	weight float64
}

// hazardLexicon maps each hazard type to its indicator terms. Weights reflect
// specificity: "tsunami" almost certainly means tsunami, while "storm" alone
// is a weaker signal. Vocabulary drawn from the coastal reporting feeds this
// service ingests (Chennai-area citizen and social submissions).
var hazardLexicon = map[string][]keyword{
	HazardFlood: {
		{"flooding", 0.60},
		{"flood", 0.55},
		{"water entering", 0.60},
		{"submerged", 0.50},
		{"inundated", 0.50},
		{"water rising", 0.50},
		{"waterlogged", 0.45},
		{"knee deep", 0.40},
		{"overflow", 0.40},
	},
	HazardTsunami: {
		{"tsunami", 0.80},
		{"sea receding", 0.60},
		{"sea-level anomaly", 0.55},
		{"massive wave", 0.50},
		{"giant wave", 0.50},
	},
	HazardTides: {
		{"high tide", 0.60},
		{"unusual tide", 0.55},
		{"tidal", 0.50},
		{"tide", 0.35},
	},
	HazardEarthquake: {
		{"earthquake", 0.80},
		{"tremor", 0.60},
		{"quake", 0.55},
		{"ground shaking", 0.50},
	},
	HazardLandslide: {
		{"landslide", 0.80},
		{"mudslide", 0.70},
		{"slope collapse", 0.55},
		{"rockfall", 0.50},
	},
	HazardStorm: {
		{"cyclone", 0.70},
		{"storm surge", 0.60},
		{"thunderstorm", 0.50},
		{"gale", 0.50},
		{"strong winds", 0.45},
		{"heavy rain", 0.40},
		{"storm", 0.40},
	},
}

// classifierTypes fixes the evaluation order so ties resolve the same way on
// every call.
var classifierTypes = []string{
	HazardFlood,
	HazardTsunami,
	HazardTides,
	HazardEarthquake,
	HazardLandslide,
	HazardStorm,
}

const verifiedMediaBoost = 0.10

// Classify maps free text to a hazard type label and a [0,1] confidence.
// Confidence is the noisy-or of the matched keyword weights, so it grows with
// both the number and the specificity of matches but never exceeds 1.
// Verified media adds a fixed boost. Empty text classifies as HazardNone with
// zero confidence; the report is still stored, but fusion gives it no weight.
func Classify(text, source string, hasMedia, mediaVerified bool) (string, float64) {
	_ = source // reserved: source-conditional lexicons

	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return HazardNone, 0
	}

	bestType := HazardNone
	bestConfidence := 0.0

	for _, hazardType := range classifierTypes {
		miss := 1.0
		for _, kw := range hazardLexicon[hazardType] {
			if strings.Contains(lowered, kw.term) {
				miss *= 1 - kw.weight
			}
		}
		confidence := 1 - miss
		if confidence > bestConfidence {
			bestType = hazardType
			bestConfidence = confidence
		}
	}

	if bestType == HazardNone {
		return HazardNone, 0
	}

	if hasMedia && mediaVerified {
		bestConfidence += verifiedMediaBoost
	}
	return bestType, clamp01(bestConfidence)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
