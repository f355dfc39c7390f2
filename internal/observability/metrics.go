package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the fusion service.
type Metrics struct {
	ReportsProcessed prometheus.Counter
	ReportsSkipped   prometheus.Counter
	GroupsCreated    prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Cycle metrics.
	BatchSize     prometheus.Histogram
	CycleDuration prometheus.Histogram

	// Fusion outcome metrics.
	EventsUpserted       *prometheus.CounterVec // labels: action={created,updated,skipped}
	BulletinCorrelations *prometheus.CounterVec // labels: type={exact_match,strong_match,weak_conflict,no_correlation,none}

	// Intake metrics.
	IntakeMessages *prometheus.CounterVec // labels: kind={report,bulletin}, outcome={accepted,rejected,error}

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReportsProcessed,
		m.ReportsSkipped,
		m.GroupsCreated,
		m.PipelineRunning,
		m.BatchSize,
		m.CycleDuration,
		m.EventsUpserted,
		m.BulletinCorrelations,
		m.IntakeMessages,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_fusion",
			Name:      "reports_processed_total",
			Help:      "Total raw reports classified, scored, and clustered.",
		}),
		ReportsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_fusion",
			Name:      "reports_skipped_total",
			Help:      "Total raw reports skipped after a processing failure.",
		}),
		GroupsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_fusion",
			Name:      "groups_created_total",
			Help:      "Total new deduplication groups allocated.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_fusion",
			Name:      "pipeline_running",
			Help:      "1 when the ingestion loop is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_fusion",
			Name:      "batch_size",
			Help:      "Number of unprocessed reports fetched per poll cycle.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_fusion",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete poll-process-fuse cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		EventsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_fusion",
			Name:      "events_upserted_total",
			Help:      "Hazard event upserts by action.",
		}, []string{"action"}),
		BulletinCorrelations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_fusion",
			Name:      "bulletin_correlations_total",
			Help:      "Bulletin correlation outcomes by type.",
		}, []string{"type"}),
		IntakeMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_fusion",
			Name:      "intake_messages_total",
			Help:      "Kafka intake messages by kind and outcome.",
		}, []string{"kind", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_fusion",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_fusion",
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_fusion",
			Name:      "geocode_enabled",
			Help:      "1 when centroid geocoding is enabled, 0 otherwise.",
		}),
	}
}
