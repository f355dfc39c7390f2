package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SQLitePath      string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Pipeline tuning.
	PollInterval    time.Duration
	BatchSize       int
	PipelineWorkers int

	// Kafka intake. Disabled deployments run on direct store writes only.
	KafkaEnabled        bool
	KafkaBrokers        []string
	KafkaReportsTopic   string
	KafkaBulletinsTopic string
	KafkaGroupID        string

	// Centroid geocoding.
	GeocodeToken     string
	GeocodeEnabled   bool
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "2s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	batchSize, err := parseBoundedInt("BATCH_SIZE", 50, 1, 1000)
	if err != nil {
		return nil, err
	}
	workers, err := parseBoundedInt("PIPELINE_WORKERS", 4, 1, 64)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseBoundedInt("GEOCODE_CACHE_SIZE", 1000, 1, 1_000_000)
	if err != nil {
		return nil, err
	}

	geocodeToken := os.Getenv("GEOCODE_TOKEN")
	geocodeEnabled := geocodeToken != ""
	if v := os.Getenv("GEOCODE_ENABLED"); v != "" {
		geocodeEnabled = v == "true"
	}

	cfg := &Config{
		SQLitePath:      envOrDefault("SQLITE_PATH", "hazard-fusion.db"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PollInterval:    pollInterval,
		BatchSize:       batchSize,
		PipelineWorkers: workers,

		KafkaEnabled:        os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:        splitBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReportsTopic:   envOrDefault("KAFKA_REPORTS_TOPIC", "hazard-report-submissions"),
		KafkaBulletinsTopic: envOrDefault("KAFKA_BULLETINS_TOPIC", "agency-bulletins"),
		KafkaGroupID:        envOrDefault("KAFKA_GROUP_ID", "hazard-fusion"),

		GeocodeToken:     geocodeToken,
		GeocodeEnabled:   geocodeEnabled,
		GeocodeTimeout:   geocodeTimeout,
		GeocodeCacheSize: cacheSize,
	}

	if cfg.SQLitePath == "" {
		return nil, errors.New("SQLITE_PATH is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaReportsTopic == "" || cfg.KafkaBulletinsTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but a topic is empty")
		}
	}
	if cfg.GeocodeEnabled && cfg.GeocodeToken == "" {
		return nil, errors.New("GEOCODE_ENABLED is true but GEOCODE_TOKEN is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseBoundedInt(key string, fallback, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, min, max)
	}
	return n, nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
