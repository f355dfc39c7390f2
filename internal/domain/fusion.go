package domain

// Per-source confidence caps. Each source family contributes at most its cap,
// approached with diminishing returns as corroborating reports accumulate, so
// fifty tweets can never outweigh one official advisory plus a handful of
// citizens.
const (
	officialConfidenceCap = 0.50
	citizenConfidenceCap  = 0.35
	iotConfidenceCap      = 0.30
	socialConfidenceCap   = 0.20

	// perReportSaturation scales how much of a report's quality (nlp
	// confidence x credibility) is consumed per step toward the cap.
	perReportSaturation = 0.5
)

// Status thresholds.
const (
	confirmedConfidence = 0.50
	emergencyConfidence = 0.80
	emergencySeverity   = 4
)

// Report-breadth severity thresholds: how many corroborating reports, at what
// average credibility, justify raising severity without any bulletin.
const (
	breadthMinCredibility = 0.5
	breadthMediumReports  = 3
	breadthHighReports    = 5
)

// confidenceFamilies fixes iteration order for the evidence breakdown.
var confidenceFamilies = []string{SourceINCOIS, SourceCitizen, SourceIoT, SourceSocial}

var familyCaps = map[string]float64{
	SourceINCOIS:  officialConfidenceCap,
	SourceCitizen: citizenConfidenceCap,
	SourceIoT:     iotConfidenceCap,
	SourceSocial:  socialConfidenceCap,
}

// sourceFamily buckets source tags for confidence arithmetic. IMD folds into
// the official bucket alongside INCOIS; unrecognized sources score like
// social media.
func sourceFamily(source string) string {
	switch source {
	case SourceINCOIS, SourceIMD:
		return SourceINCOIS
	case SourceCitizen, SourceIoT, SourceSocial:
		return source
	default:
		return SourceSocial
	}
}

// reportQuality is a report's weight in fusion arithmetic. Reports the
// classifier labeled HazardNone carry zero weight everywhere.
func reportQuality(r *RawReport) float64 {
	if r.HazardType == HazardNone || r.HazardType == "" {
		return 0
	}
	return clamp01(r.NLPConfidence * r.Credibility)
}

// DominantType returns the group's hazard type by weighted vote: the type
// with the highest sum of nlp confidence x credibility. Ties break toward
// the type observed most recently.
func DominantType(reports []RawReport) string {
	scores := map[string]float64{}
	latest := map[string]int64{}
	for i := range reports {
		r := &reports[i]
		q := reportQuality(r)
		if q == 0 {
			continue
		}
		scores[r.HazardType] += q
		if ts := r.Timestamp.UnixNano(); ts > latest[r.HazardType] {
			latest[r.HazardType] = ts
		}
	}
	if len(scores) == 0 {
		return HazardNone
	}

	best := HazardNone
	for _, hazardType := range classifierTypes {
		score, ok := scores[hazardType]
		if !ok {
			continue
		}
		switch {
		case best == HazardNone,
			score > scores[best],
			score == scores[best] && latest[hazardType] > latest[best]:
			best = hazardType
		}
	}
	return best
}

// FuseReports combines a group's reports, statistics, and bulletin
// correlation into one fusion result. Pure and deterministic: fusing the same
// membership with the same correlation twice yields identical output, which
// is what makes event upserts idempotent.
func FuseReports(reports []RawReport, stats GroupStats, corr BulletinCorrelation) FusionResult {
	hazardType := DominantType(reports)
	centroidLat, centroidLon := centroid(reports)

	factors := map[string]float64{}
	base := 0.0
	for _, family := range confidenceFamilies {
		contribution := familyContribution(reports, family)
		if contribution > 0 {
			factors[family+"_contribution"] = contribution
		}
		base += contribution
	}
	factors["bulletin_boost"] = corr.Boost
	factors["bulletin_correlation"] = corr.Correlation

	confidence := clamp01(base + corr.Boost)
	severity := deriveSeverity(reports, confidence, corr)

	return FusionResult{
		HazardType:  hazardType,
		Confidence:  confidence,
		Severity:    severity,
		Status:      deriveStatus(confidence, severity),
		CentroidLat: centroidLat,
		CentroidLon: centroidLon,
		SourceCount: len(stats.ReportIDs),
		Evidence: Evidence{
			SourceDistribution: stats.SourceDistribution,
			ConfidenceFactors:  factors,
			ReportIDs:          stats.ReportIDs,
		},
	}
}

// familyContribution applies diminishing returns within one source family:
// each report shrinks the remaining headroom by 1 - saturation x quality, so
// every corroborating report helps, but each less than the one before.
func familyContribution(reports []RawReport, family string) float64 {
	headroom := 1.0
	for i := range reports {
		if sourceFamily(reports[i].Source) != family {
			continue
		}
		headroom *= 1 - perReportSaturation*reportQuality(&reports[i])
	}
	return familyCaps[family] * (1 - headroom)
}

// centroid is the quality-weighted mean location. When every report carries
// zero weight, it falls back to the arithmetic mean so the event still lands
// somewhere sensible.
func centroid(reports []RawReport) (float64, float64) {
	if len(reports) == 0 {
		return 0, 0
	}

	var latSum, lonSum, weightSum float64
	for i := range reports {
		w := reportQuality(&reports[i])
		latSum += reports[i].Lat * w
		lonSum += reports[i].Lon * w
		weightSum += w
	}
	if weightSum > 0 {
		return latSum / weightSum, lonSum / weightSum
	}

	for i := range reports {
		latSum += reports[i].Lat
		lonSum += reports[i].Lon
	}
	n := float64(len(reports))
	return latSum / n, lonSum / n
}

// deriveSeverity takes the stronger of the agency-reported severity (from
// matching bulletins) and a report-breadth severity, clamped to 1-5.
func deriveSeverity(reports []RawReport, confidence float64, corr BulletinCorrelation) int {
	severity := corr.MaxSeverity

	contributing := 0
	var credibilitySum float64
	for i := range reports {
		if reportQuality(&reports[i]) == 0 {
			continue
		}
		contributing++
		credibilitySum += reports[i].Credibility
	}

	breadth := 1
	if contributing > 0 {
		avgCredibility := credibilitySum / float64(contributing)
		if contributing >= breadthHighReports && avgCredibility >= breadthMinCredibility {
			breadth = 3
		} else if contributing >= breadthMediumReports && avgCredibility >= breadthMinCredibility {
			breadth = 2
		}
	}
	if confidence >= emergencyConfidence {
		breadth++
	}

	if breadth > severity {
		severity = breadth
	}
	if severity < 1 {
		severity = 1
	}
	if severity > 5 {
		severity = 5
	}
	return severity
}

func deriveStatus(confidence float64, severity int) string {
	switch {
	case confidence >= emergencyConfidence && severity >= emergencySeverity:
		return StatusEmergency
	case confidence >= confirmedConfidence:
		return StatusActive
	default:
		return StatusPending
	}
}
