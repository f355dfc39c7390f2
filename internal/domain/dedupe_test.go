package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dedupeBase = time.Date(2025, time.November, 12, 8, 0, 0, 0, time.UTC)

func reportAt(id string, lat, lon float64, offset time.Duration, text string) RawReport {
	return RawReport{
		ID:        id,
		Source:    SourceCitizen,
		Text:      text,
		Lat:       lat,
		Lon:       lon,
		Timestamp: dedupeBase.Add(offset),
	}
}

func TestCombinedSimilarity_Symmetric(t *testing.T) {
	a := reportAt("a", 9.9265, 78.1190, 0, "Water entering homes near the beach, flooding observed")
	b := reportAt("b", 9.9270, 78.1195, 10*time.Minute, "Flooding on the coastal road, water rising")
	c := reportAt("c", 13.0827, 80.2707, 3*time.Hour, "Landslide near the hill road")

	pairs := [][2]RawReport{{a, b}, {a, c}, {b, c}}
	for _, p := range pairs {
		assert.Equal(t, CombinedSimilarity(p[0], p[1]), CombinedSimilarity(p[1], p[0]))
	}
}

func TestCombinedSimilarity_NearbyRecentReportsClearThreshold(t *testing.T) {
	// ~50m and 10 minutes apart, both mentioning flooding.
	a := reportAt("a", 9.9265, 78.1190, 0, "Water entering homes near the beach, flooding observed")
	b := reportAt("b", 9.92695, 78.1190, 10*time.Minute, "Flooding on the coastal road, water rising")

	score := CombinedSimilarity(a, b)
	assert.GreaterOrEqual(t, score, CombinedThreshold,
		"reports 50m/10min apart describing flooding should cluster (got %.3f)", score)
}

func TestCombinedSimilarity_DistantReportStaysBelowThreshold(t *testing.T) {
	a := reportAt("a", 9.9265, 78.1190, 0, "Water entering homes near the beach, flooding observed")
	far := reportAt("far", 9.9715, 78.1190, 5*time.Minute, "Flooding near the market, water everywhere")

	require.Greater(t, HaversineKm(a.Lat, a.Lon, far.Lat, far.Lon), 4.5)
	assert.Less(t, CombinedSimilarity(a, far), CombinedThreshold)
}

func TestCombinedSimilarity_GeoCutoff(t *testing.T) {
	a := reportAt("a", 9.9265, 78.1190, 0, "flooding")
	// Same text, same time, 100km away: only text and time can contribute.
	b := reportAt("b", 10.8265, 78.1190, 0, "flooding")

	score := CombinedSimilarity(a, b)
	assert.InDelta(t, textSimilarityWeight+timeSimilarityWeight, score, 0.0001)
}

func TestCombinedSimilarity_MissingTimestamp(t *testing.T) {
	a := reportAt("a", 9.9265, 78.1190, 0, "flooding near beach")
	b := reportAt("b", 9.9265, 78.1190, 0, "flooding near beach")
	b.Timestamp = time.Time{}

	// Identical text and location still score; the time axis contributes zero.
	score := CombinedSimilarity(a, b)
	assert.InDelta(t, textSimilarityWeight+geoSimilarityWeight, score, 0.0001)
}

func TestHaversineKm(t *testing.T) {
	// Chennai to Madurai, roughly 420km.
	km := HaversineKm(13.0827, 80.2707, 9.9252, 78.1198)
	assert.InDelta(t, 420, km, 25)

	assert.Zero(t, HaversineKm(9.9, 78.1, 9.9, 78.1))
}

func TestBestMatch(t *testing.T) {
	target := reportAt("new", 9.9265, 78.1190, 30*time.Minute, "flooding near the beach")
	near := reportAt("near", 9.9266, 78.1191, 25*time.Minute, "flooding observed at the beach")
	far := reportAt("far", 13.0827, 80.2707, 25*time.Minute, "flooding observed at the beach")

	best, score := BestMatch(target, []RawReport{far, near})
	require.NotNil(t, best)
	assert.Equal(t, "near", best.ID)
	assert.GreaterOrEqual(t, score, CombinedThreshold)

	best, score = BestMatch(target, nil)
	assert.Nil(t, best)
	assert.Zero(t, score)

	// A report never matches itself.
	best, _ = BestMatch(target, []RawReport{target})
	assert.Nil(t, best)
}

func TestGroupStatistics(t *testing.T) {
	reports := []RawReport{
		reportAt("r3", 9.93, 78.12, 20*time.Minute, "Flooding on the road"),
		reportAt("r1", 9.92, 78.11, 0, "Water entering homes"),
		reportAt("r2", 9.93, 78.12, 20*time.Minute, "flooding on the road"),
	}
	reports[0].Source = SourceSocial

	stats := GroupStatistics(reports)

	assert.Equal(t, dedupeBase, stats.EarliestTime)
	assert.Equal(t, dedupeBase.Add(20*time.Minute), stats.LatestTime)
	assert.Equal(t, map[string]int{SourceCitizen: 2, SourceSocial: 1}, stats.SourceDistribution)
	// r2 and r3 differ only in casing, so they count as one description.
	assert.Equal(t, 2, stats.UniqueDescriptions)
	// Ordered by (timestamp, id), not input order.
	assert.Equal(t, []string{"r1", "r2", "r3"}, stats.ReportIDs)
}

func TestGroupStatistics_Empty(t *testing.T) {
	stats := GroupStatistics(nil)
	assert.True(t, stats.EarliestTime.IsZero())
	assert.Empty(t, stats.ReportIDs)
	assert.Empty(t, stats.SourceDistribution)
}

func TestGroupStatistics_DeterministicAcrossInputOrder(t *testing.T) {
	reports := make([]RawReport, 0, 6)
	for i := range 6 {
		reports = append(reports, reportAt(fmt.Sprintf("r%d", i), 9.92, 78.11, time.Duration(i)*time.Minute, "flooding"))
	}

	forward := GroupStatistics(reports)

	reversed := make([]RawReport, len(reports))
	for i := range reports {
		reversed[len(reports)-1-i] = reports[i]
	}
	backward := GroupStatistics(reversed)

	assert.Equal(t, forward.ReportIDs, backward.ReportIDs)
	assert.Equal(t, forward.EarliestTime, backward.EarliestTime)
	assert.Equal(t, forward.LatestTime, backward.LatestTime)
}
