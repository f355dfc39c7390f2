// Command simulate walks a hazard group through the fusion pipeline step by
// step against an in-memory store, printing the fused event after each
// arrival. Useful for eyeballing how confidence, status, and severity respond
// to corroboration and agency bulletins.
//
// Usage:
//
//	go run ./cmd/simulate
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oceanguard/hazard-fusion/internal/adapter/sqlite"
	"github.com/oceanguard/hazard-fusion/internal/domain"
	"github.com/oceanguard/hazard-fusion/internal/observability"
	"github.com/oceanguard/hazard-fusion/internal/pipeline"
)

var baseTime = time.Date(2025, time.November, 12, 9, 0, 0, 0, time.UTC)

// step is one arrival in the scenario: either a report or a bulletin.
type step struct {
	label    string
	report   *domain.RawReport
	bulletin *domain.RawBulletin
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Fixed clock so recency scoring is identical on every run.
	domain.SetClock(clockwork.NewFakeClockAt(baseTime))
	defer domain.SetClock(nil)

	store, err := sqlite.Open(":memory:")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(store, store, store, logger, metrics, pipeline.Options{})

	ctx := context.Background()
	steps := scenario()

	fmt.Println("=== Fusion walkthrough: flooding in Besant Nagar ===")
	var groupID int64
	for i, s := range steps {
		fmt.Printf("\n[%d] %s\n", i+1, s.label)

		switch {
		case s.report != nil:
			if err := store.InsertReport(ctx, *s.report); err != nil {
				return fmt.Errorf("insert report: %w", err)
			}
			gid, err := p.ProcessReport(ctx, *s.report)
			if err != nil {
				return fmt.Errorf("process report: %w", err)
			}
			if groupID == 0 {
				groupID = gid
			}
			if gid != groupID {
				fmt.Printf("    note: report landed in separate group %d\n", gid)
			}
		case s.bulletin != nil:
			if err := store.InsertBulletin(ctx, *s.bulletin); err != nil {
				return fmt.Errorf("insert bulletin: %w", err)
			}
		}

		if err := p.FuseGroup(ctx, groupID); err != nil {
			return fmt.Errorf("fuse group %d: %w", groupID, err)
		}
		event, err := store.EventByGroup(ctx, groupID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		fmt.Printf("    confidence=%.3f status=%-9s severity=%-8s sources=%d reports=%d\n",
			event.Confidence, event.Status, event.Severity,
			event.SourceCount, len(event.Evidence.ReportIDs))
	}

	fmt.Println("\nDone.")
	return nil
}

// scenario builds the arrival sequence. All reports land within a few hundred
// meters and a half hour of each other, so they cluster into one group.
func scenario() []step {
	report := func(id, source, text string, lat, lon float64, minutesAgo int, verified bool) *domain.RawReport {
		return &domain.RawReport{
			ID:            id,
			Source:        source,
			Text:          text,
			Lat:           lat,
			Lon:           lon,
			Timestamp:     baseTime.Add(-time.Duration(minutesAgo) * time.Minute),
			HasMedia:      verified,
			MediaVerified: verified,
		}
	}

	issued := baseTime.Add(-2 * time.Hour)
	bulletin := &domain.RawBulletin{
		ID:          "bulletin-imd-1",
		Source:      "imd",
		HazardType:  "flood",
		Severity:    4,
		Description: "Heavy rainfall warning: flooding likely in low-lying areas of Chennai",
		AreaName:    "Chennai district",
		Lat:         13.0003,
		Lon:         80.2668,
		ValidFrom:   issued,
		ValidUntil:  issued.Add(24 * time.Hour),
		IssuedAt:    issued,
	}

	return []step{
		{
			label:  "first citizen report arrives",
			report: report("sim-1", "citizen", "Severe flooding in Besant Nagar, water entering homes", 13.0003, 80.2668, 30, false),
		},
		{
			label:  "second citizen confirms from the next street",
			report: report("sim-2", "citizen", "Flooding here too, roads submerged near the beach", 13.0008, 80.2672, 20, false),
		},
		{
			label:  "social post mentions the same flood",
			report: report("sim-3", "social", "Besant Nagar completely flooded, avoid the area #ChennaiRains", 13.0010, 80.2660, 15, false),
		},
		{
			label:  "citizen report with verified photo",
			report: report("sim-4", "citizen", "Flood water waist deep, water entering the ground floor", 13.0001, 80.2665, 10, true),
		},
		{
			label:    "IMD issues a flooding bulletin for the district",
			bulletin: bulletin,
		},
		{
			label:  "official INCOIS field report confirms",
			report: report("sim-5", "incois", "Field team confirms severe flooding, water entering residential blocks", 13.0005, 80.2670, 5, false),
		},
	}
}
