package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oceanguard/hazard-fusion/internal/domain"
	"github.com/oceanguard/hazard-fusion/internal/observability"
)

// ErrIntegrityFault reports that more than one hazard event claims reports
// from a single group. The loop logs it and moves on; repairing event rows is
// an operator decision, not something the service guesses at.
var ErrIntegrityFault = errors.New("multiple hazard events share one report group")

// ReportStore is the pipeline's view of raw report persistence.
type ReportStore interface {
	FetchUnprocessed(ctx context.Context, limit int) ([]domain.RawReport, error)
	FetchProcessed(ctx context.Context) ([]domain.RawReport, error)
	WriteDerived(ctx context.Context, reportID string, derived domain.DerivedFields) error
	ReportsByGroup(ctx context.Context, groupID int64) ([]domain.RawReport, error)
	AllocateGroupID(ctx context.Context) (int64, error)
	AssignGroup(ctx context.Context, reportID string, groupID int64) error
}

// BulletinStore serves agency bulletins for correlation.
type BulletinStore interface {
	BulletinsBetween(ctx context.Context, from, to time.Time) ([]domain.RawBulletin, error)
}

// EventStore persists fused hazard events. UpsertEvent returns the action
// taken: "created", "updated", or "skipped" when the stored event is
// validated and therefore frozen.
type EventStore interface {
	EventsByReportIDs(ctx context.Context, reportIDs []string) ([]domain.HazardEvent, error)
	UpsertEvent(ctx context.Context, event domain.HazardEvent) (string, error)
}

// AreaNamer resolves a human-readable area name for a coordinate. Optional.
type AreaNamer interface {
	AreaName(ctx context.Context, lat, lon float64) (string, error)
}

// Options tunes the ingestion loop. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	Areas        AreaNamer
}

// Pipeline orchestrates the poll-process-fuse loop.
type Pipeline struct {
	reports   ReportStore
	bulletins BulletinStore
	events    EventStore
	areas     AreaNamer
	logger    *slog.Logger
	metrics   *observability.Metrics

	pollInterval time.Duration
	batchSize    int
	workers      int

	ready atomic.Bool

	// groupMu serializes fuse+upsert per group; the store's unique constraint
	// is the backstop, this keeps concurrent workers from racing on one group.
	// Sharded by group id so memory stays constant no matter how many groups
	// the process has seen.
	groupMu [groupLockShards]sync.Mutex
}

const groupLockShards = 64

// New creates a Pipeline over the given stores and observability.
func New(reports ReportStore, bulletins BulletinStore, events EventStore, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Pipeline{
		reports:      reports,
		bulletins:    bulletins,
		events:       events,
		areas:        opts.Areas,
		logger:       logger,
		metrics:      metrics,
		pollInterval: opts.PollInterval,
		batchSize:    opts.BatchSize,
		workers:      opts.Workers,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one
// cycle, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a cycle yet")
	}
	return nil
}

// Run executes the ingestion loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"batch_size", p.batchSize,
		"poll_interval", p.pollInterval,
		"workers", p.workers,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Transient store failures double the wait, capped at 20x the poll
	// interval; a successful fetch resets it.
	backoff := p.pollInterval
	maxBackoff := 20 * p.pollInterval

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.runCycle(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// runCycle performs one poll-process-fuse pass. Returns false if the pipeline
// should stop.
func (p *Pipeline) runCycle(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	batch, err := p.reports.FetchUnprocessed(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("fetch unprocessed reports failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}
	*backoff = p.pollInterval

	if len(batch) == 0 {
		p.ready.Store(true)
		return sleepWithContext(ctx, p.pollInterval)
	}

	p.metrics.BatchSize.Observe(float64(len(batch)))

	touched := p.processBatch(ctx, batch)
	if ctx.Err() != nil {
		return false
	}

	for _, groupID := range sortedGroupIDs(touched) {
		if err := p.FuseGroup(ctx, groupID); err != nil {
			if ctx.Err() != nil {
				return false
			}
			level := slog.LevelError
			if errors.Is(err, ErrIntegrityFault) {
				level = slog.LevelWarn
			}
			p.logger.Log(ctx, level, "group fusion failed", "error", err, "group_id", groupID)
		}
	}

	p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return ctx.Err() == nil
}

// processBatch fans the batch out across the worker pool and returns the set
// of group ids touched. Per-report failures are logged and skipped; the
// report stays unprocessed and is retried on a later cycle.
func (p *Pipeline) processBatch(ctx context.Context, batch []domain.RawReport) map[int64]struct{} {
	jobs := make(chan domain.RawReport)
	touched := map[int64]struct{}{}
	var touchedMu sync.Mutex

	var wg sync.WaitGroup
	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				groupID, err := p.ProcessReport(ctx, r)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					p.logger.Warn("report processing failed, skipping",
						"error", err, "report_id", r.ID, "source", r.Source)
					p.metrics.ReportsSkipped.Inc()
					continue
				}
				p.metrics.ReportsProcessed.Inc()
				touchedMu.Lock()
				touched[groupID] = struct{}{}
				touchedMu.Unlock()
			}
		}()
	}

	for _, r := range batch {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return touched
		case jobs <- r:
		}
	}
	close(jobs)
	wg.Wait()
	return touched
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances it. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// lockGroup returns the shard mutex for a group. Distinct groups may share a
// shard; that only serializes two fusions that could have run concurrently.
func (p *Pipeline) lockGroup(groupID int64) *sync.Mutex {
	return &p.groupMu[uint64(groupID)%groupLockShards]
}

func sortedGroupIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
