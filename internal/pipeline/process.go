package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/oceanguard/hazard-fusion/internal/domain"
)

// ProcessReport classifies, scores, and clusters one raw report, then writes
// every derived field in a single store call. Returns the group the report
// landed in.
func (p *Pipeline) ProcessReport(ctx context.Context, r domain.RawReport) (int64, error) {
	hazardType, nlpConfidence := domain.Classify(r.Text, r.Source, r.HasMedia, r.MediaVerified)
	credibility := domain.Credibility(r.Source, r.Text, r.Lat, r.Lon, r.Timestamp, r.HasMedia, r.MediaVerified)

	groupID, err := p.assignGroup(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("assign group: %w", err)
	}

	derived := domain.DerivedFields{
		HazardType:    hazardType,
		NLPConfidence: nlpConfidence,
		Credibility:   credibility,
		GroupID:       groupID,
	}
	if err := p.reports.WriteDerived(ctx, r.ID, derived); err != nil {
		return 0, fmt.Errorf("write derived fields: %w", err)
	}
	return groupID, nil
}

// assignGroup finds the best-matching prior report and joins its group when
// the similarity clears the threshold, otherwise allocates a fresh group.
// Candidates are the full processed history: text and geo similarity alone
// can clear the threshold, so no time window safely excludes anything.
func (p *Pipeline) assignGroup(ctx context.Context, r domain.RawReport) (int64, error) {
	prior, err := p.reports.FetchProcessed(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch clustering candidates: %w", err)
	}

	best, score := domain.BestMatch(r, prior)
	if best != nil && score >= domain.CombinedThreshold {
		if best.GroupID != 0 {
			return best.GroupID, nil
		}
		// The matched report predates grouping. Anchor a new group on it so
		// both reports fuse together.
		groupID, err := p.newGroup(ctx)
		if err != nil {
			return 0, err
		}
		if err := p.reports.AssignGroup(ctx, best.ID, groupID); err != nil {
			return 0, fmt.Errorf("backfill group for report %s: %w", best.ID, err)
		}
		return groupID, nil
	}

	return p.newGroup(ctx)
}

func (p *Pipeline) newGroup(ctx context.Context) (int64, error) {
	groupID, err := p.reports.AllocateGroupID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate group id: %w", err)
	}
	p.metrics.GroupsCreated.Inc()
	return groupID, nil
}

// FuseGroup re-fuses one group's full membership into its hazard event. Safe
// to call concurrently; fusions of the same group serialize on a per-group
// mutex.
func (p *Pipeline) FuseGroup(ctx context.Context, groupID int64) error {
	mu := p.lockGroup(groupID)
	mu.Lock()
	defer mu.Unlock()

	reports, err := p.reports.ReportsByGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("load group %d: %w", groupID, err)
	}
	if len(reports) == 0 {
		return nil
	}

	stats := domain.GroupStatistics(reports)

	existing, err := p.events.EventsByReportIDs(ctx, stats.ReportIDs)
	if err != nil {
		return fmt.Errorf("look up events for group %d: %w", groupID, err)
	}
	if len(existing) > 1 {
		return fmt.Errorf("group %d claimed by %d events: %w", groupID, len(existing), ErrIntegrityFault)
	}

	hazardType := domain.DominantType(reports)
	windowStart, windowEnd := domain.CorrelationWindow(stats.EarliestTime)
	bulletins, err := p.bulletins.BulletinsBetween(ctx, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("load bulletins for group %d: %w", groupID, err)
	}

	corr := domain.CorrelateBulletins(stats.EarliestTime, hazardType, bulletins)
	p.metrics.BulletinCorrelations.WithLabelValues(corr.Type).Inc()

	result := domain.FuseReports(reports, stats, corr)
	event := eventFromFusion(groupID, result)
	p.resolveArea(ctx, &event)

	action, err := p.events.UpsertEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("upsert event for group %d: %w", groupID, err)
	}
	p.metrics.EventsUpserted.WithLabelValues(action).Inc()
	p.logger.Info("hazard event upserted",
		"group_id", groupID,
		"action", action,
		"hazard_type", result.HazardType,
		"confidence", result.Confidence,
		"severity", event.Severity,
		"status", result.Status,
		"reports", len(reports),
		"correlation", corr.Type,
	)
	return nil
}

// resolveArea attaches an area name to the event when a geocoder is wired.
// Geocoding failures never block fusion.
func (p *Pipeline) resolveArea(ctx context.Context, event *domain.HazardEvent) {
	if p.areas == nil {
		return
	}
	name, err := p.areas.AreaName(ctx, event.CentroidLat, event.CentroidLon)
	if err != nil {
		p.logger.Debug("area lookup failed", "error", err, "group_id", event.GroupID)
		return
	}
	event.AreaName = name
}

func eventFromFusion(groupID int64, r domain.FusionResult) domain.HazardEvent {
	now := domain.Now()
	return domain.HazardEvent{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		HazardType:  r.HazardType,
		Severity:    domain.SeverityLabel(r.Severity),
		Status:      r.Status,
		CentroidLat: r.CentroidLat,
		CentroidLon: r.CentroidLon,
		Confidence:  r.Confidence,
		Evidence:    r.Evidence,
		SourceCount: r.SourceCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
