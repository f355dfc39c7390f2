// Package sqlite persists raw reports, agency bulletins, and fused hazard
// events in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oceanguard/hazard-fusion/internal/domain"
)

// Store is the SQLite-backed implementation of the pipeline's report,
// bulletin, and event stores. Safe for concurrent use; writes serialize on an
// internal mutex on top of SQLite's own locking.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the database at path and migrates the schema.
// Pass ":memory:" for an in-process database, used by tests and cmd/simulate.
func Open(path string) (*Store, error) {
	connStr := path
	if path == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_reports (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		lat REAL NOT NULL DEFAULT 0,
		lon REAL NOT NULL DEFAULT 0,
		event_time INTEGER NOT NULL DEFAULT 0,
		media_path TEXT NOT NULL DEFAULT '',
		media_verified INTEGER NOT NULL DEFAULT 0,
		hazard_type TEXT NOT NULL DEFAULT '',
		nlp_confidence REAL NOT NULL DEFAULT 0,
		credibility REAL NOT NULL DEFAULT 0,
		group_id INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		ingested_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_reports_processed ON raw_reports(processed, event_time);
	CREATE INDEX IF NOT EXISTS idx_reports_group ON raw_reports(group_id);

	CREATE TABLE IF NOT EXISTS raw_bulletins (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		hazard_type TEXT NOT NULL,
		severity INTEGER NOT NULL DEFAULT 1,
		description TEXT NOT NULL DEFAULT '',
		area_name TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL DEFAULT 0,
		lon REAL NOT NULL DEFAULT 0,
		valid_from INTEGER NOT NULL DEFAULT 0,
		valid_until INTEGER NOT NULL DEFAULT 0,
		issued_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_bulletins_issued ON raw_bulletins(issued_at);

	CREATE TABLE IF NOT EXISTS hazard_events (
		id TEXT PRIMARY KEY,
		group_id INTEGER NOT NULL UNIQUE,
		hazard_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		centroid_lat REAL NOT NULL DEFAULT 0,
		centroid_lon REAL NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		evidence_json TEXT NOT NULL DEFAULT '{}',
		source_count INTEGER NOT NULL DEFAULT 0,
		area_name TEXT NOT NULL DEFAULT '',
		validated INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_events_updated ON hazard_events(updated_at DESC);

	CREATE TABLE IF NOT EXISTS group_ids (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		allocated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// --- reports ---

// InsertReport stores a raw report. Re-submitting an existing id is a no-op,
// so intake retries stay idempotent.
func (s *Store) InsertReport(ctx context.Context, r domain.RawReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO raw_reports (
			id, source, text, lat, lon, event_time,
			media_path, media_verified, processed, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		r.ID, r.Source, r.Text, r.Lat, r.Lon, toNanos(r.Timestamp),
		r.MediaPath, boolToInt(r.MediaVerified), toNanos(domain.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

// FetchUnprocessed returns up to limit reports awaiting processing, oldest
// event time first.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]domain.RawReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM raw_reports
		WHERE processed = 0
		ORDER BY event_time, id
		LIMIT ?`, limit)
}

// FetchProcessed returns every processed report, oldest event time first. The
// pipeline compares each incoming report against this full set when
// clustering; reports with no usable event time (stored as 0) sort first and
// are still candidates.
func (s *Store) FetchProcessed(ctx context.Context) ([]domain.RawReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM raw_reports
		WHERE processed = 1
		ORDER BY event_time, id`)
}

// WriteDerived stores every pipeline-derived field and flips processed in one
// statement, so a report is either fully processed or untouched.
func (s *Store) WriteDerived(ctx context.Context, reportID string, d domain.DerivedFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE raw_reports
		SET hazard_type = ?, nlp_confidence = ?, credibility = ?, group_id = ?, processed = 1
		WHERE id = ?`,
		d.HazardType, d.NLPConfidence, d.Credibility, d.GroupID, reportID,
	)
	if err != nil {
		return fmt.Errorf("write derived fields for %s: %w", reportID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("report %s not found", reportID)
	}
	return nil
}

// ReportsByGroup returns a group's full membership.
func (s *Store) ReportsByGroup(ctx context.Context, groupID int64) ([]domain.RawReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM raw_reports
		WHERE group_id = ? AND processed = 1
		ORDER BY event_time, id`, groupID)
}

// AssignGroup backfills a group id on an already processed report.
func (s *Store) AssignGroup(ctx context.Context, reportID string, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE raw_reports SET group_id = ? WHERE id = ?`, groupID, reportID)
	if err != nil {
		return fmt.Errorf("assign group for %s: %w", reportID, err)
	}
	return nil
}

// AllocateGroupID returns a fresh, monotonically increasing group id. The
// AUTOINCREMENT rowid makes allocation atomic across connections.
func (s *Store) AllocateGroupID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO group_ids (allocated_at) VALUES (?)`, toNanos(domain.Now()))
	if err != nil {
		return 0, fmt.Errorf("allocate group id: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read allocated group id: %w", err)
	}
	return id, nil
}

// ListReports returns the newest reports first, for the HTTP feed.
func (s *Store) ListReports(ctx context.Context, limit int) ([]domain.RawReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM raw_reports
		ORDER BY event_time DESC, id
		LIMIT ?`, limit)
}

const reportColumns = `id, source, text, lat, lon, event_time, media_path,
	media_verified, hazard_type, nlp_confidence, credibility, group_id, processed`

func (s *Store) queryReports(ctx context.Context, query string, args ...any) ([]domain.RawReport, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.RawReport
	for rows.Next() {
		var r domain.RawReport
		var eventTime int64
		var mediaVerified, processed int
		if err := rows.Scan(
			&r.ID, &r.Source, &r.Text, &r.Lat, &r.Lon, &eventTime, &r.MediaPath,
			&mediaVerified, &r.HazardType, &r.NLPConfidence, &r.Credibility,
			&r.GroupID, &processed,
		); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Timestamp = fromNanos(eventTime)
		r.HasMedia = r.MediaPath != ""
		r.MediaVerified = mediaVerified != 0
		r.Processed = processed != 0
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// --- bulletins ---

// InsertBulletin stores an agency bulletin. Idempotent on id.
func (s *Store) InsertBulletin(ctx context.Context, b domain.RawBulletin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO raw_bulletins (
			id, source, hazard_type, severity, description, area_name,
			lat, lon, valid_from, valid_until, issued_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Source, b.HazardType, b.Severity, b.Description, b.AreaName,
		b.Lat, b.Lon, toNanos(b.ValidFrom), toNanos(b.ValidUntil), toNanos(b.IssuedAt),
	)
	if err != nil {
		return fmt.Errorf("insert bulletin %s: %w", b.ID, err)
	}
	return nil
}

// BulletinsBetween returns bulletins issued inside [from, to].
func (s *Store) BulletinsBetween(ctx context.Context, from, to time.Time) ([]domain.RawBulletin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, hazard_type, severity, description, area_name,
			lat, lon, valid_from, valid_until, issued_at
		FROM raw_bulletins
		WHERE issued_at >= ? AND issued_at <= ?
		ORDER BY issued_at DESC`, toNanos(from), toNanos(to))
	if err != nil {
		return nil, fmt.Errorf("query bulletins: %w", err)
	}
	defer rows.Close()

	var bulletins []domain.RawBulletin
	for rows.Next() {
		var b domain.RawBulletin
		var validFrom, validUntil, issuedAt int64
		if err := rows.Scan(
			&b.ID, &b.Source, &b.HazardType, &b.Severity, &b.Description,
			&b.AreaName, &b.Lat, &b.Lon, &validFrom, &validUntil, &issuedAt,
		); err != nil {
			return nil, fmt.Errorf("scan bulletin: %w", err)
		}
		b.ValidFrom = fromNanos(validFrom)
		b.ValidUntil = fromNanos(validUntil)
		b.IssuedAt = fromNanos(issuedAt)
		bulletins = append(bulletins, b)
	}
	return bulletins, rows.Err()
}

// --- events ---

// UpsertEvent writes a fused hazard event keyed by group id and reports the
// action taken: "created", "updated", or "skipped" when the stored event has
// been validated by an operator and is therefore frozen.
func (s *Store) UpsertEvent(ctx context.Context, event domain.HazardEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action := "created"
	var validated int
	err := s.db.QueryRowContext(ctx,
		`SELECT validated FROM hazard_events WHERE group_id = ?`, event.GroupID,
	).Scan(&validated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// first fusion for this group
	case err != nil:
		return "", fmt.Errorf("check event for group %d: %w", event.GroupID, err)
	case validated != 0:
		return "skipped", nil
	default:
		action = "updated"
	}

	evidence, err := json.Marshal(event.Evidence)
	if err != nil {
		return "", fmt.Errorf("marshal evidence: %w", err)
	}

	// The validated guard is repeated in SQL so a concurrent validation
	// between the check and the write still wins.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hazard_events (
			id, group_id, hazard_type, severity, status, centroid_lat,
			centroid_lon, confidence, evidence_json, source_count, area_name,
			validated, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			hazard_type = excluded.hazard_type,
			severity = excluded.severity,
			status = excluded.status,
			centroid_lat = excluded.centroid_lat,
			centroid_lon = excluded.centroid_lon,
			confidence = excluded.confidence,
			evidence_json = excluded.evidence_json,
			source_count = excluded.source_count,
			area_name = excluded.area_name,
			updated_at = excluded.updated_at
		WHERE hazard_events.validated = 0`,
		event.ID, event.GroupID, event.HazardType, event.Severity,
		domain.NormalizeStatus(event.Status), event.CentroidLat, event.CentroidLon,
		event.Confidence, string(evidence), event.SourceCount, event.AreaName,
		toNanos(event.CreatedAt), toNanos(event.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("upsert event for group %d: %w", event.GroupID, err)
	}
	return action, nil
}

// EventsByReportIDs returns every event whose evidence claims any of the
// given report ids. More than one result for a single group's membership is
// an integrity fault the pipeline refuses to repair.
func (s *Store) EventsByReportIDs(ctx context.Context, reportIDs []string) ([]domain.HazardEvent, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(reportIDs)), ",")
	args := make([]any, len(reportIDs))
	for i, id := range reportIDs {
		args[i] = id
	}

	return s.queryEvents(ctx, `
		SELECT DISTINCT `+eventColumns("e")+`
		FROM hazard_events e, json_each(e.evidence_json, '$.report_ids') j
		WHERE j.value IN (`+placeholders+`)`, args...)
}

// EventByGroup returns the event for a group, or sql.ErrNoRows wrapped.
func (s *Store) EventByGroup(ctx context.Context, groupID int64) (domain.HazardEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, err := s.queryEvents(ctx, `
		SELECT `+eventColumns("hazard_events")+` FROM hazard_events
		WHERE group_id = ?`, groupID)
	if err != nil {
		return domain.HazardEvent{}, err
	}
	if len(events) == 0 {
		return domain.HazardEvent{}, fmt.Errorf("event for group %d: %w", groupID, sql.ErrNoRows)
	}
	return events[0], nil
}

// ListEvents returns the most recently updated events first, for the HTTP feed.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]domain.HazardEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEvents(ctx, `
		SELECT `+eventColumns("hazard_events")+` FROM hazard_events
		ORDER BY updated_at DESC, id
		LIMIT ?`, limit)
}

// SetValidated flips the operator-validation flag on an event.
func (s *Store) SetValidated(ctx context.Context, eventID string, validated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE hazard_events SET validated = ? WHERE id = ?`, boolToInt(validated), eventID)
	if err != nil {
		return fmt.Errorf("set validated for %s: %w", eventID, err)
	}
	return nil
}

func eventColumns(alias string) string {
	cols := []string{
		"id", "group_id", "hazard_type", "severity", "status", "centroid_lat",
		"centroid_lon", "confidence", "evidence_json", "source_count",
		"area_name", "validated", "created_at", "updated_at",
	}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]domain.HazardEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.HazardEvent
	for rows.Next() {
		var e domain.HazardEvent
		var evidence string
		var validated int
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&e.ID, &e.GroupID, &e.HazardType, &e.Severity, &e.Status,
			&e.CentroidLat, &e.CentroidLon, &e.Confidence, &evidence,
			&e.SourceCount, &e.AreaName, &validated, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(evidence), &e.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal evidence for %s: %w", e.ID, err)
		}
		e.Validated = validated != 0
		e.CreatedAt = fromNanos(createdAt)
		e.UpdatedAt = fromNanos(updatedAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- helpers ---

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
