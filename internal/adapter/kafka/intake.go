package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/oceanguard/hazard-fusion/internal/config"
	"github.com/oceanguard/hazard-fusion/internal/domain"
	"github.com/oceanguard/hazard-fusion/internal/observability"
)

// ReportSink accepts raw reports arriving from the submission topic.
type ReportSink interface {
	InsertReport(ctx context.Context, r domain.RawReport) error
}

// BulletinSink accepts agency bulletins arriving from the bulletin topic.
type BulletinSink interface {
	InsertBulletin(ctx context.Context, b domain.RawBulletin) error
}

// Intake consumes report and bulletin submissions from Kafka and persists
// them. Malformed messages are counted, logged, and committed so a poison
// message never wedges a partition.
type Intake struct {
	reports   *kafkago.Reader
	bulletins *kafkago.Reader

	reportSink   ReportSink
	bulletinSink BulletinSink
	logger       *slog.Logger
	metrics      *observability.Metrics

	// Backoff bounds for retrying transient sink failures in place.
	retryBase time.Duration
	retryMax  time.Duration
}

// NewIntake creates consumers for the configured submission topics.
func NewIntake(cfg *config.Config, reportSink ReportSink, bulletinSink BulletinSink, logger *slog.Logger, metrics *observability.Metrics) *Intake {
	newReader := func(topic string) *kafkago.Reader {
		return kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:        cfg.KafkaBrokers,
			Topic:          topic,
			GroupID:        cfg.KafkaGroupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // explicit commits only
		})
	}
	return &Intake{
		reports:      newReader(cfg.KafkaReportsTopic),
		bulletins:    newReader(cfg.KafkaBulletinsTopic),
		reportSink:   reportSink,
		bulletinSink: bulletinSink,
		logger:       logger,
		metrics:      metrics,
		retryBase:    time.Second,
		retryMax:     30 * time.Second,
	}
}

// Run consumes both topics until the context is cancelled.
func (i *Intake) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return i.consume(ctx, i.reports, "report", i.handleReport) })
	g.Go(func() error { return i.consume(ctx, i.bulletins, "bulletin", i.handleBulletin) })
	return g.Wait()
}

// Close shuts both readers down. Safe to call after Run returns.
func (i *Intake) Close() error {
	return errors.Join(i.reports.Close(), i.bulletins.Close())
}

func (i *Intake) consume(ctx context.Context, reader *kafkago.Reader, kind string, handle func(context.Context, []byte) error) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch %s message: %w", kind, err)
		}

		if err := i.processMessage(ctx, kind, msg, handle); err != nil {
			return nil // context ended mid-retry, offset stays uncommitted
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			i.logger.Warn("commit offset failed", "kind", kind, "error", err,
				"partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

// processMessage runs the handler until it succeeds or the input is rejected.
// Fetching the next message would advance the reader past this one even
// without a commit, so a transient sink failure retries the same message in
// place with exponential backoff rather than moving on and committing over
// it. Returns an error only when the context ends.
func (i *Intake) processMessage(ctx context.Context, kind string, msg kafkago.Message, handle func(context.Context, []byte) error) error {
	backoff := i.retryBase
	for {
		err := handle(ctx, msg.Value)
		if err == nil {
			i.metrics.IntakeMessages.WithLabelValues(kind, "accepted").Inc()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var rejected *rejectError
		if errors.As(err, &rejected) {
			i.logger.Warn("intake message rejected",
				"kind", kind, "error", err,
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
			i.metrics.IntakeMessages.WithLabelValues(kind, "rejected").Inc()
			// committing a malformed message is correct: retrying cannot help
			return nil
		}

		i.logger.Error("intake insert failed, retrying",
			"kind", kind, "error", err, "backoff", backoff,
			"partition", msg.Partition, "offset", msg.Offset)
		i.metrics.IntakeMessages.WithLabelValues(kind, "error").Inc()

		if !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff *= 2
		if backoff > i.retryMax {
			backoff = i.retryMax
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (i *Intake) handleReport(ctx context.Context, value []byte) error {
	report, err := mapReportMessage(value)
	if err != nil {
		return err
	}
	if err := i.reportSink.InsertReport(ctx, report); err != nil {
		return fmt.Errorf("insert report %s: %w", report.ID, err)
	}
	return nil
}

func (i *Intake) handleBulletin(ctx context.Context, value []byte) error {
	bulletin, err := mapBulletinMessage(value)
	if err != nil {
		return err
	}
	if err := i.bulletinSink.InsertBulletin(ctx, bulletin); err != nil {
		return fmt.Errorf("insert bulletin %s: %w", bulletin.ID, err)
	}
	return nil
}

// rejectError marks input that can never succeed, as opposed to transient
// store failures.
type rejectError struct{ err error }

func (e *rejectError) Error() string { return e.err.Error() }
func (e *rejectError) Unwrap() error { return e.err }

func reject(format string, args ...any) error {
	return &rejectError{err: fmt.Errorf(format, args...)}
}

// reportSubmission is the wire format citizen apps and the social scraper
// publish to the reports topic.
type reportSubmission struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Text          string    `json:"text"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	Timestamp     time.Time `json:"timestamp"`
	MediaPath     string    `json:"media_path"`
	MediaVerified bool      `json:"media_verified"`
}

// mapReportMessage decodes a submission into a RawReport ready for the store.
// Missing ids get a uuid, missing timestamps default to now, and the
// processed flag is always forced off regardless of what the producer sent.
func mapReportMessage(value []byte) (domain.RawReport, error) {
	var sub reportSubmission
	if err := json.Unmarshal(value, &sub); err != nil {
		return domain.RawReport{}, reject("decode report submission: %w", err)
	}
	if sub.Source == "" {
		return domain.RawReport{}, reject("report submission missing source")
	}

	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := sub.Timestamp
	if ts.IsZero() {
		ts = domain.Now()
	}

	return domain.RawReport{
		ID:            id,
		Source:        strings.ToLower(sub.Source),
		Text:          sub.Text,
		Lat:           sub.Lat,
		Lon:           sub.Lon,
		Timestamp:     ts.UTC(),
		MediaPath:     sub.MediaPath,
		HasMedia:      sub.MediaPath != "",
		MediaVerified: sub.MediaVerified,
	}, nil
}

// bulletinSubmission is the wire format the agency feed bridges publish.
type bulletinSubmission struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	HazardType  string    `json:"hazard_type"`
	Severity    int       `json:"severity"`
	Description string    `json:"description"`
	AreaName    string    `json:"area_name"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidUntil  time.Time `json:"valid_until"`
	IssuedAt    time.Time `json:"issued_at"`
}

func mapBulletinMessage(value []byte) (domain.RawBulletin, error) {
	var sub bulletinSubmission
	if err := json.Unmarshal(value, &sub); err != nil {
		return domain.RawBulletin{}, reject("decode bulletin submission: %w", err)
	}
	if sub.Source == "" {
		return domain.RawBulletin{}, reject("bulletin submission missing source")
	}
	if sub.HazardType == "" {
		return domain.RawBulletin{}, reject("bulletin submission missing hazard_type")
	}

	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}
	issued := sub.IssuedAt
	if issued.IsZero() {
		issued = domain.Now()
	}
	severity := sub.Severity
	if severity < 1 {
		severity = 1
	}
	if severity > 5 {
		severity = 5
	}

	return domain.RawBulletin{
		ID:          id,
		Source:      strings.ToLower(sub.Source),
		HazardType:  strings.ToLower(sub.HazardType),
		Severity:    severity,
		Description: sub.Description,
		AreaName:    sub.AreaName,
		Lat:         sub.Lat,
		Lon:         sub.Lon,
		ValidFrom:   sub.ValidFrom,
		ValidUntil:  sub.ValidUntil,
		IssuedAt:    issued.UTC(),
	}, nil
}
