package domain

import "time"

// Report source tags.
const (
	SourceCitizen = "citizen"
	SourceSocial  = "social"
	SourceINCOIS  = "incois"
	SourceIMD     = "imd"
	SourceIoT     = "iot"
)

// Hazard type labels emitted by the classifier.
const (
	HazardFlood      = "flood"
	HazardTsunami    = "tsunami"
	HazardTides      = "tides"
	HazardEarthquake = "earthquake"
	HazardLandslide  = "landslide"
	HazardStorm      = "storm"
	HazardNone       = "none"
)

// Canonical hazard event statuses. Legacy vocabularies ("confirmed",
// "review") are folded into this set by NormalizeStatus.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusEmergency = "emergency"
	StatusResolved  = "resolved"
)

// RawReport is one observation of a possible hazard. The identity fields are
// written by the intake boundary; the derived fields are written exactly once
// by the pipeline, after which Processed never goes back to false.
type RawReport struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Text          string    `json:"text"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	Timestamp     time.Time `json:"timestamp"` // event time, not ingest time
	MediaPath     string    `json:"media_path,omitempty"`
	HasMedia      bool      `json:"has_media"`
	MediaVerified bool      `json:"media_verified"`

	// Derived by the pipeline.
	HazardType    string  `json:"hazard_type,omitempty"`
	NLPConfidence float64 `json:"nlp_confidence"`
	Credibility   float64 `json:"credibility"`
	GroupID       int64   `json:"group_id,omitempty"` // 0 until clustered
	Processed     bool    `json:"processed"`
}

// DerivedFields is the single atomic write the pipeline performs against a
// report. Writing all derived values together means a cancelled worker never
// leaves a half-classified report behind.
type DerivedFields struct {
	HazardType    string
	NLPConfidence float64
	Credibility   float64
	GroupID       int64
}

// RawBulletin is an authoritative agency advisory. Immutable once created.
type RawBulletin struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	HazardType  string    `json:"hazard_type"`
	Severity    int       `json:"severity"` // agency-reported, 1-5
	Description string    `json:"description"`
	AreaName    string    `json:"area_name,omitempty"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidUntil  time.Time `json:"valid_until"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Evidence is the explainability payload attached to a hazard event: which
// sources contributed, the individual signal values behind the confidence
// score, and the exact group membership at the time of the last fusion.
type Evidence struct {
	SourceDistribution map[string]int     `json:"source_distribution"`
	ConfidenceFactors  map[string]float64 `json:"confidence_factors"`
	ReportIDs          []string           `json:"report_ids"`
}

// FusionResult is the output of fusing one group's reports. Severity stays on
// the numeric 1-5 scale here; the persistence boundary maps it to the textual
// enum via SeverityLabel.
type FusionResult struct {
	HazardType  string   `json:"hazard_type"`
	Confidence  float64  `json:"confidence"`
	Severity    int      `json:"severity"`
	Status      string   `json:"status"`
	CentroidLat float64  `json:"centroid_lat"`
	CentroidLon float64  `json:"centroid_lon"`
	SourceCount int      `json:"source_count"`
	Evidence    Evidence `json:"evidence"`
}

// HazardEvent is the fused, user-facing entity. At most one live event exists
// per group; re-fusing a group updates the same row.
type HazardEvent struct {
	ID          string    `json:"id"`
	GroupID     int64     `json:"group_id"`
	HazardType  string    `json:"hazard_type"`
	Severity    string    `json:"severity"` // low, low-medium, medium, high, critical
	Status      string    `json:"status"`
	CentroidLat float64   `json:"centroid_lat"`
	CentroidLon float64   `json:"centroid_lon"`
	Confidence  float64   `json:"confidence"`
	Evidence    Evidence  `json:"evidence"`
	SourceCount int       `json:"source_count"`
	AreaName    string    `json:"area_name,omitempty"`
	Validated   bool      `json:"validated"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupStats is a pure aggregation over a group's member reports, consumed by
// the fusion engine.
type GroupStats struct {
	EarliestTime       time.Time
	LatestTime         time.Time
	SourceDistribution map[string]int
	UniqueDescriptions int
	ReportIDs          []string
}

// SeverityLabel maps the numeric 1-5 severity scale onto the textual enum
// stored with hazard events. Out-of-range values clamp to the nearest label.
func SeverityLabel(severity int) string {
	switch {
	case severity <= 1:
		return "low"
	case severity == 2:
		return "low-medium"
	case severity == 3:
		return "medium"
	case severity == 4:
		return "high"
	default:
		return "critical"
	}
}

// NormalizeStatus folds the overlapping legacy status vocabularies into the
// canonical set. Unknown values degrade to pending.
func NormalizeStatus(status string) string {
	switch status {
	case StatusPending, StatusActive, StatusEmergency, StatusResolved:
		return status
	case "confirmed":
		return StatusActive
	case "review":
		return StatusPending
	default:
		return StatusPending
	}
}
