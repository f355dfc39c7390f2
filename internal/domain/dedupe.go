package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// CombinedThreshold is the similarity score at or above which a new report
// joins the best-matching prior report's group.
const CombinedThreshold = 0.60

// Similarity blend weights and decay constants. Geography dominates: two
// reports from the same stretch of coast are more likely to describe one
// occurrence than two reports that merely share vocabulary.
const (
	textSimilarityWeight = 0.35
	geoSimilarityWeight  = 0.45
	timeSimilarityWeight = 0.20

	geoDecayKm     = 2.0  // distance at which geo similarity falls to 1/e
	geoCutoffKm    = 10.0 // beyond this, reports never cluster on geography
	timeDecayHours = 6.0
)

// CombinedSimilarity scores how likely two reports describe the same physical
// occurrence, in [0,1]. It blends lexical overlap, haversine distance decay,
// and time-gap decay. Symmetric: CombinedSimilarity(a, b) equals
// CombinedSimilarity(b, a).
func CombinedSimilarity(a, b RawReport) float64 {
	score := textSimilarityWeight*textSimilarity(a.Text, b.Text) +
		geoSimilarityWeight*geoSimilarity(a.Lat, a.Lon, b.Lat, b.Lon) +
		timeSimilarityWeight*timeSimilarity(a.Timestamp, b.Timestamp)
	return clamp01(score)
}

// BestMatch returns the prior report most similar to r and its score, or nil
// when prior is empty. Only callers decide what the score means; the grouping
// policy lives in the pipeline.
func BestMatch(r RawReport, prior []RawReport) (*RawReport, float64) {
	var best *RawReport
	bestScore := 0.0
	for i := range prior {
		if prior[i].ID == r.ID {
			continue
		}
		score := CombinedSimilarity(r, prior[i])
		if score > bestScore {
			best = &prior[i]
			bestScore = score
		}
	}
	return best, bestScore
}

// textSimilarity is the Jaccard index over lowercase token sets.
func textSimilarity(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?#:;()'\"")
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

// geoSimilarity decays exponentially with distance and saturates to zero
// beyond the cutoff radius.
func geoSimilarity(lat1, lon1, lat2, lon2 float64) float64 {
	km := HaversineKm(lat1, lon1, lat2, lon2)
	if km > geoCutoffKm {
		return 0
	}
	return math.Exp(-km / geoDecayKm)
}

// timeSimilarity decays with the gap between event times. Reports missing a
// timestamp contribute nothing on this axis.
func timeSimilarity(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	gapHours := math.Abs(a.Sub(b).Hours())
	return math.Exp(-gapHours / timeDecayHours)
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two WGS-84 points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// GroupStatistics aggregates a group's member reports for the fusion engine.
// ReportIDs come back sorted by (timestamp, id) so repeated calls over the
// same membership produce identical output.
func GroupStatistics(reports []RawReport) GroupStats {
	stats := GroupStats{
		SourceDistribution: map[string]int{},
	}
	if len(reports) == 0 {
		return stats
	}

	ordered := make([]RawReport, len(reports))
	copy(ordered, reports)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})

	descriptions := map[string]struct{}{}
	for i := range ordered {
		r := &ordered[i]
		stats.SourceDistribution[r.Source]++
		stats.ReportIDs = append(stats.ReportIDs, r.ID)
		descriptions[strings.ToLower(strings.TrimSpace(r.Text))] = struct{}{}

		if !r.Timestamp.IsZero() {
			if stats.EarliestTime.IsZero() || r.Timestamp.Before(stats.EarliestTime) {
				stats.EarliestTime = r.Timestamp
			}
			if r.Timestamp.After(stats.LatestTime) {
				stats.LatestTime = r.Timestamp
			}
		}
	}
	stats.UniqueDescriptions = len(descriptions)
	return stats
}
