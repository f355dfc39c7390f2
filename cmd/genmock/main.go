// Command genmock generates synthetic hazard report submissions and agency
// bulletins for local development and load testing. Reports are clustered
// around Chennai-area hotspots so the fusion pipeline has realistic groups to
// form. Output goes to JSON fixture files, and optionally to the Kafka intake
// topics when -brokers is set.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//	go run ./cmd/genmock -out data/mock -brokers localhost:9092
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// baseTime anchors all generated timestamps so fixtures are reproducible.
var baseTime = time.Date(2025, time.November, 12, 6, 0, 0, 0, time.UTC)

// hotspot is a coastal location that reports cluster around.
type hotspot struct {
	name   string
	lat    float64
	lon    float64
	hazard string
}

var hotspots = []hotspot{
	{name: "Marina Beach", lat: 13.0500, lon: 80.2824, hazard: "high_waves"},
	{name: "Besant Nagar", lat: 13.0003, lon: 80.2668, hazard: "coastal_flooding"},
	{name: "Ennore", lat: 13.2146, lon: 80.3202, hazard: "storm_surge"},
	{name: "Velachery", lat: 12.9815, lon: 80.2180, hazard: "flooding"},
	{name: "Kovalam", lat: 12.7897, lon: 80.2511, hazard: "rip_current"},
	{name: "Pulicat", lat: 13.4162, lon: 80.3168, hazard: "coastal_erosion"},
}

// phrasings per hazard, in the register of citizen submissions and scraped
// social posts.
var phrasings = map[string][]string{
	"high_waves": {
		"Huge waves hitting the shore near %s, water coming past the sand line",
		"Waves much bigger than usual at %s, fishermen pulling boats in",
		"Very high waves at %s right now, spray reaching the road",
	},
	"coastal_flooding": {
		"Sea water entering streets near %s, roads waterlogged",
		"Flooding along the beach road at %s, water entering shops",
		"Severe flooding near %s, water entering homes on the first lane",
	},
	"storm_surge": {
		"Storm surge at %s, water level rising fast along the creek",
		"Cyclone swell pushing water inland at %s, jetty submerged",
		"Surge flooding at %s, harbour road under water",
	},
	"flooding": {
		"Severe flooding in %s, roads submerged, water entering houses",
		"Flood water rising in %s after heavy rain, cars stuck",
		"Waterlogging turning into flooding across %s, drains overflowing",
	},
	"rip_current": {
		"Strong rip current at %s, swimmers pulled out, lifeguards warning everyone",
		"Dangerous current at %s beach, two people rescued",
	},
	"coastal_erosion": {
		"Shoreline collapsing near %s, beach erosion took out the walkway",
		"Heavy erosion at %s, sand bank gone overnight",
	},
}

// bulletinTemplates describe the agency feed side of the same hazards.
var bulletinTemplates = map[string]string{
	"high_waves":       "High wave alert: waves of 3.5-4.5m expected along the Chennai coast",
	"coastal_flooding": "Coastal flooding warning for low-lying areas of Chennai district",
	"storm_surge":      "Storm surge warning: surge of 1-1.5m above astronomical tide expected",
	"flooding":         "Heavy rainfall warning: flooding likely in low-lying urban areas",
	"rip_current":      "Swell surge advisory: strong rip currents along the Coromandel coast",
	"coastal_erosion":  "Coastal erosion advisory for northern Chennai shoreline",
}

// reportFixture matches the intake wire format for the reports topic.
type reportFixture struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Text          string    `json:"text"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	Timestamp     time.Time `json:"timestamp"`
	MediaPath     string    `json:"media_path,omitempty"`
	MediaVerified bool      `json:"media_verified,omitempty"`
}

// bulletinFixture matches the intake wire format for the bulletins topic.
type bulletinFixture struct {
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

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	reportCount := flag.Int("reports", 200, "number of reports to generate")
	bulletinCount := flag.Int("bulletins", 12, "number of bulletins to generate")
	seed := flag.Int64("seed", 1, "random seed")
	outDir := flag.String("out", "", "output directory for JSON fixtures")
	brokers := flag.String("brokers", "", "comma-separated Kafka brokers; empty skips publishing")
	reportsTopic := flag.String("reports-topic", "hazard-report-submissions", "reports topic")
	bulletinsTopic := flag.String("bulletins-topic", "agency-bulletins", "bulletins topic")
	flag.Parse()

	if *outDir == "" && *brokers == "" {
		flag.Usage()
		return fmt.Errorf("nothing to do: set -out, -brokers, or both")
	}

	rng := rand.New(rand.NewSource(*seed)) //nolint:gosec // fixtures, not crypto

	reports := generateReports(rng, *reportCount)
	bulletins := generateBulletins(rng, *bulletinCount)
	log.Printf("generated %d reports, %d bulletins", len(reports), len(bulletins))

	if *outDir != "" {
		if err := writeJSON(filepath.Join(*outDir, "hazard_reports.json"), reports); err != nil {
			return fmt.Errorf("writing report fixture: %w", err)
		}
		if err := writeJSON(filepath.Join(*outDir, "agency_bulletins.json"), bulletins); err != nil {
			return fmt.Errorf("writing bulletin fixture: %w", err)
		}
		log.Printf("wrote fixtures to %s", *outDir)
	}

	if *brokers != "" {
		brokerList := strings.Split(*brokers, ",")
		if err := publish(brokerList, *reportsTopic, reportMessages(reports)); err != nil {
			return fmt.Errorf("publishing reports: %w", err)
		}
		if err := publish(brokerList, *bulletinsTopic, bulletinMessages(bulletins)); err != nil {
			return fmt.Errorf("publishing bulletins: %w", err)
		}
		log.Printf("published to %s", *brokers)
	}

	printStats(reports, bulletins)
	return nil
}

func generateReports(rng *rand.Rand, n int) []reportFixture {
	reports := make([]reportFixture, 0, n)
	for i := 0; i < n; i++ {
		spot := hotspots[rng.Intn(len(hotspots))]
		templates := phrasings[spot.hazard]
		text := fmt.Sprintf(templates[rng.Intn(len(templates))], spot.name)

		// Jitter within roughly 2km and a 6 hour window per hotspot.
		lat := spot.lat + (rng.Float64()-0.5)*0.036
		lon := spot.lon + (rng.Float64()-0.5)*0.036
		ts := baseTime.Add(-time.Duration(rng.Intn(6*3600)) * time.Second)

		source := "citizen"
		if rng.Float64() < 0.4 {
			source = "social"
			text += " #ChennaiRains"
		}

		r := reportFixture{
			ID:        uuid.NewString(),
			Source:    source,
			Text:      text,
			Lat:       lat,
			Lon:       lon,
			Timestamp: ts,
		}
		// Some citizen reports carry media, a few of those verified.
		if source == "citizen" && rng.Float64() < 0.3 {
			r.MediaPath = fmt.Sprintf("media/%s.jpg", r.ID)
			r.MediaVerified = rng.Float64() < 0.5
		}
		reports = append(reports, r)
	}
	return reports
}

func generateBulletins(rng *rand.Rand, n int) []bulletinFixture {
	agencies := []string{"incois", "imd"}
	bulletins := make([]bulletinFixture, 0, n)
	for i := 0; i < n; i++ {
		spot := hotspots[rng.Intn(len(hotspots))]
		issued := baseTime.Add(-time.Duration(rng.Intn(12*3600)) * time.Second)

		bulletins = append(bulletins, bulletinFixture{
			ID:          uuid.NewString(),
			Source:      agencies[rng.Intn(len(agencies))],
			HazardType:  spot.hazard,
			Severity:    2 + rng.Intn(3),
			Description: bulletinTemplates[spot.hazard],
			AreaName:    spot.name,
			Lat:         spot.lat,
			Lon:         spot.lon,
			ValidFrom:   issued,
			ValidUntil:  issued.Add(24 * time.Hour),
			IssuedAt:    issued,
		})
	}
	return bulletins
}

func reportMessages(reports []reportFixture) []kafkago.Message {
	msgs := make([]kafkago.Message, 0, len(reports))
	for _, r := range reports {
		value, err := json.Marshal(r)
		if err != nil {
			continue
		}
		msgs = append(msgs, kafkago.Message{Key: []byte(r.ID), Value: value})
	}
	return msgs
}

func bulletinMessages(bulletins []bulletinFixture) []kafkago.Message {
	msgs := make([]kafkago.Message, 0, len(bulletins))
	for _, b := range bulletins {
		value, err := json.Marshal(b)
		if err != nil {
			continue
		}
		msgs = append(msgs, kafkago.Message{Key: []byte(b.ID), Value: value})
	}
	return msgs
}

func publish(brokers []string, topic string, msgs []kafkago.Message) error {
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write to %s: %w", topic, err)
	}
	log.Printf("%s: %d messages", topic, len(msgs))
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(reports []reportFixture, bulletins []bulletinFixture) {
	sourceCounts := map[string]int{}
	withMedia := 0
	for i := range reports {
		sourceCounts[reports[i].Source]++
		if reports[i].MediaPath != "" {
			withMedia++
		}
	}
	hazardCounts := map[string]int{}
	for i := range bulletins {
		hazardCounts[bulletins[i].HazardType]++
	}

	fmt.Println("\n=== Fixture stats ===")
	fmt.Printf("Reports: %d (citizen=%d, social=%d, with media=%d)\n",
		len(reports), sourceCounts["citizen"], sourceCounts["social"], withMedia)
	fmt.Printf("Bulletins: %d by hazard:", len(bulletins))
	for _, spot := range hotspots {
		if c := hazardCounts[spot.hazard]; c > 0 {
			fmt.Printf(" %s=%d", spot.hazard, c)
		}
	}
	fmt.Println()
}
