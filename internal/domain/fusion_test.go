package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fusionBase = time.Date(2025, time.November, 12, 8, 0, 0, 0, time.UTC)

func scoredReport(id, source, hazardType string, nlpConf, credibility float64, offset time.Duration) RawReport {
	return RawReport{
		ID:            id,
		Source:        source,
		Text:          "flooding near the beach " + id,
		Lat:           9.9265,
		Lon:           78.1190,
		Timestamp:     fusionBase.Add(offset),
		HazardType:    hazardType,
		NLPConfidence: nlpConf,
		Credibility:   credibility,
	}
}

func fuse(reports []RawReport, corr BulletinCorrelation) FusionResult {
	return FuseReports(reports, GroupStatistics(reports), corr)
}

func noCorrelation() BulletinCorrelation {
	return BulletinCorrelation{Correlation: 0.5, Type: CorrelationNone}
}

func TestFuseReports_SingleCitizenReportStaysPending(t *testing.T) {
	reports := []RawReport{scoredReport("r1", SourceCitizen, HazardFlood, 0.9, 0.8, 0)}

	result := fuse(reports, noCorrelation())
	assert.Equal(t, HazardFlood, result.HazardType)
	assert.InDelta(t, 0.126, result.Confidence, 0.0001)
	assert.Equal(t, StatusPending, result.Status)
	assert.Equal(t, 1, result.Severity)
	assert.Equal(t, 1, result.SourceCount)
}

func TestFuseReports_ExactBulletinMatchActivatesSingleReport(t *testing.T) {
	reports := []RawReport{scoredReport("r1", SourceCitizen, HazardFlood, 0.9, 0.8, 0)}

	withoutBulletin := fuse(reports, noCorrelation())
	corr := BulletinCorrelation{
		Correlation:       0.7,
		Boost:             0.4,
		Type:              CorrelationExactMatch,
		MatchingBulletins: 1,
		MaxSeverity:       5,
	}
	withBulletin := fuse(reports, corr)

	assert.Greater(t, withBulletin.Confidence, withoutBulletin.Confidence)
	assert.InDelta(t, 0.526, withBulletin.Confidence, 0.0001)
	assert.Equal(t, StatusActive, withBulletin.Status)
	assert.Equal(t, 5, withBulletin.Severity, "agency severity carries through")
	assert.InDelta(t, 0.4, withBulletin.Evidence.ConfidenceFactors["bulletin_boost"], 0.0001)
}

func TestFuseReports_CorroborationIsMonotonic(t *testing.T) {
	reports := make([]RawReport, 0, 8)
	prev := 0.0
	for i := range 8 {
		reports = append(reports, scoredReport(
			fmt.Sprintf("r%d", i), SourceCitizen, HazardFlood, 0.8, 0.8,
			time.Duration(i)*time.Minute,
		))
		result := fuse(reports, noCorrelation())
		assert.Greater(t, result.Confidence, prev, "report %d should raise confidence", i+1)
		prev = result.Confidence
	}

	// Diminishing returns: citizen reports alone never exceed their cap.
	assert.Less(t, prev, citizenConfidenceCap)
}

func TestFuseReports_SocialMediaAloneCannotConfirm(t *testing.T) {
	reports := make([]RawReport, 0, 50)
	for i := range 50 {
		reports = append(reports, scoredReport(
			fmt.Sprintf("t%d", i), SourceSocial, HazardFlood, 0.95, 0.9,
			time.Duration(i)*time.Second,
		))
	}

	result := fuse(reports, noCorrelation())
	assert.Less(t, result.Confidence, confirmedConfidence)
	assert.Equal(t, StatusPending, result.Status)
}

func TestFuseReports_MixedSourcesReachEmergency(t *testing.T) {
	reports := []RawReport{
		scoredReport("official", SourceINCOIS, HazardTsunami, 0.95, 0.95, 0),
		scoredReport("c1", SourceCitizen, HazardTsunami, 0.9, 0.8, time.Minute),
		scoredReport("c2", SourceCitizen, HazardTsunami, 0.9, 0.8, 2*time.Minute),
		scoredReport("c3", SourceCitizen, HazardTsunami, 0.85, 0.75, 3*time.Minute),
		scoredReport("c4", SourceCitizen, HazardTsunami, 0.85, 0.75, 4*time.Minute),
		scoredReport("sensor", SourceIoT, HazardTsunami, 0.9, 0.85, 5*time.Minute),
	}
	corr := BulletinCorrelation{
		Correlation:       0.7,
		Boost:             0.4,
		Type:              CorrelationExactMatch,
		MatchingBulletins: 1,
		MaxSeverity:       4,
	}

	result := fuse(reports, corr)
	assert.GreaterOrEqual(t, result.Confidence, emergencyConfidence)
	assert.GreaterOrEqual(t, result.Severity, emergencySeverity)
	assert.Equal(t, StatusEmergency, result.Status)
}

func TestFuseReports_Idempotent(t *testing.T) {
	reports := []RawReport{
		scoredReport("r1", SourceCitizen, HazardFlood, 0.9, 0.8, 0),
		scoredReport("r2", SourceSocial, HazardFlood, 0.7, 0.5, 10*time.Minute),
		scoredReport("r3", SourceIoT, HazardFlood, 0.85, 0.8, 20*time.Minute),
	}
	corr := BulletinCorrelation{Correlation: 0.7, Boost: 0.3, Type: CorrelationStrongMatch, MatchingBulletins: 1, MaxSeverity: 3}

	first := fuse(reports, corr)
	for range 5 {
		again := fuse(reports, corr)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("re-fusing identical membership diverged (-first +again):\n%s", diff)
		}
	}
}

func TestFuseReports_NoneReportsCarryNoWeight(t *testing.T) {
	hazard := scoredReport("r1", SourceCitizen, HazardFlood, 0.9, 0.8, 0)
	noise := scoredReport("r2", SourceCitizen, HazardNone, 0, 0.9, time.Minute)

	alone := fuse([]RawReport{hazard}, noCorrelation())
	withNoise := fuse([]RawReport{hazard, noise}, noCorrelation())

	assert.Equal(t, alone.HazardType, withNoise.HazardType)
	assert.InDelta(t, alone.Confidence, withNoise.Confidence, 0.0001)
	// Membership still records the noise report.
	assert.Equal(t, 2, withNoise.SourceCount)
}

func TestFuseReports_ConfidenceStaysInUnitInterval(t *testing.T) {
	reports := []RawReport{
		scoredReport("a", SourceINCOIS, HazardTsunami, 1, 1, 0),
		scoredReport("b", SourceINCOIS, HazardTsunami, 1, 1, time.Minute),
		scoredReport("c", SourceCitizen, HazardTsunami, 1, 1, 2*time.Minute),
		scoredReport("d", SourceIoT, HazardTsunami, 1, 1, 3*time.Minute),
		scoredReport("e", SourceSocial, HazardTsunami, 1, 1, 4*time.Minute),
	}
	corr := BulletinCorrelation{Correlation: 0.95, Boost: 0.4, Type: CorrelationExactMatch, MatchingBulletins: 5, MaxSeverity: 5}

	result := fuse(reports, corr)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.Equal(t, 5, result.Severity)

	// A weak conflict cannot push confidence below zero.
	weak := fuse(
		[]RawReport{scoredReport("w", SourceSocial, HazardFlood, 0.1, 0.1, 0)},
		BulletinCorrelation{Correlation: 0.3, Boost: -0.1, Type: CorrelationWeakConflict},
	)
	assert.GreaterOrEqual(t, weak.Confidence, 0.0)
	assert.GreaterOrEqual(t, weak.Severity, 1)
}

func TestFuseReports_BreadthSeverity(t *testing.T) {
	makeGroup := func(n int) []RawReport {
		reports := make([]RawReport, 0, n)
		for i := range n {
			reports = append(reports, scoredReport(
				fmt.Sprintf("r%d", i), SourceCitizen, HazardFlood, 0.8, 0.7,
				time.Duration(i)*time.Minute,
			))
		}
		return reports
	}

	assert.Equal(t, 1, fuse(makeGroup(2), noCorrelation()).Severity)
	assert.Equal(t, 2, fuse(makeGroup(3), noCorrelation()).Severity)
	assert.Equal(t, 3, fuse(makeGroup(5), noCorrelation()).Severity)
}

func TestFuseReports_Centroid(t *testing.T) {
	a := scoredReport("a", SourceCitizen, HazardFlood, 0.9, 0.8, 0)
	a.Lat, a.Lon = 10.0, 78.0
	b := scoredReport("b", SourceCitizen, HazardFlood, 0.9, 0.8, time.Minute)
	b.Lat, b.Lon = 10.2, 78.2

	result := fuse([]RawReport{a, b}, noCorrelation())
	assert.InDelta(t, 10.1, result.CentroidLat, 0.0001)
	assert.InDelta(t, 78.1, result.CentroidLon, 0.0001)

	// Zero-weight groups fall back to the plain mean.
	a.HazardType, b.HazardType = HazardNone, HazardNone
	result = fuse([]RawReport{a, b}, noCorrelation())
	assert.InDelta(t, 10.1, result.CentroidLat, 0.0001)
	assert.Equal(t, HazardNone, result.HazardType)
}

func TestFuseReports_EvidencePayload(t *testing.T) {
	reports := []RawReport{
		scoredReport("r2", SourceSocial, HazardFlood, 0.7, 0.5, 10*time.Minute),
		scoredReport("r1", SourceCitizen, HazardFlood, 0.9, 0.8, 0),
	}

	result := fuse(reports, noCorrelation())
	require.Equal(t, []string{"r1", "r2"}, result.Evidence.ReportIDs, "ids ordered by event time")
	assert.Equal(t, map[string]int{SourceCitizen: 1, SourceSocial: 1}, result.Evidence.SourceDistribution)
	assert.Contains(t, result.Evidence.ConfidenceFactors, "citizen_contribution")
	assert.Contains(t, result.Evidence.ConfidenceFactors, "social_contribution")
	assert.Contains(t, result.Evidence.ConfidenceFactors, "bulletin_correlation")
}

func TestDominantType(t *testing.T) {
	t.Run("weighted vote", func(t *testing.T) {
		reports := []RawReport{
			scoredReport("f1", SourceSocial, HazardFlood, 0.4, 0.4, 0),
			scoredReport("f2", SourceSocial, HazardFlood, 0.4, 0.4, time.Minute),
			scoredReport("t1", SourceINCOIS, HazardTsunami, 0.95, 0.9, 2*time.Minute),
		}
		// One strong tsunami signal outweighs two weak flood ones.
		assert.Equal(t, HazardTsunami, DominantType(reports))
	})

	t.Run("tie breaks toward most recent", func(t *testing.T) {
		reports := []RawReport{
			scoredReport("f1", SourceCitizen, HazardFlood, 0.8, 0.5, 0),
			scoredReport("s1", SourceCitizen, HazardStorm, 0.8, 0.5, time.Hour),
		}
		assert.Equal(t, HazardStorm, DominantType(reports))
	})

	t.Run("all noise", func(t *testing.T) {
		reports := []RawReport{scoredReport("n1", SourceCitizen, HazardNone, 0, 0.9, 0)}
		assert.Equal(t, HazardNone, DominantType(reports))
		assert.Equal(t, HazardNone, DominantType(nil))
	})
}

func TestSeverityLabel(t *testing.T) {
	assert.Equal(t, "low", SeverityLabel(0))
	assert.Equal(t, "low", SeverityLabel(1))
	assert.Equal(t, "low-medium", SeverityLabel(2))
	assert.Equal(t, "medium", SeverityLabel(3))
	assert.Equal(t, "high", SeverityLabel(4))
	assert.Equal(t, "critical", SeverityLabel(5))
	assert.Equal(t, "critical", SeverityLabel(9))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusActive, NormalizeStatus("confirmed"))
	assert.Equal(t, StatusPending, NormalizeStatus("review"))
	assert.Equal(t, StatusPending, NormalizeStatus("garbage"))
	for _, s := range []string{StatusPending, StatusActive, StatusEmergency, StatusResolved} {
		assert.Equal(t, s, NormalizeStatus(s))
	}
}
