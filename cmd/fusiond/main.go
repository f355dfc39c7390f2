package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/oceanguard/hazard-fusion/internal/adapter/geocode"
	httpadapter "github.com/oceanguard/hazard-fusion/internal/adapter/http"
	kafkaadapter "github.com/oceanguard/hazard-fusion/internal/adapter/kafka"
	"github.com/oceanguard/hazard-fusion/internal/adapter/sqlite"
	"github.com/oceanguard/hazard-fusion/internal/config"
	"github.com/oceanguard/hazard-fusion/internal/observability"
	"github.com/oceanguard/hazard-fusion/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", cfg.SQLitePath)
		os.Exit(1)
	}

	// Centroid geocoding (feature-flagged via GEOCODE_ENABLED / GEOCODE_TOKEN).
	var areas pipeline.AreaNamer
	if cfg.GeocodeEnabled {
		client := geocode.NewClient(cfg.GeocodeToken, cfg.GeocodeTimeout, logger, metrics)
		areas = geocode.NewCached(client, cfg.GeocodeCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("centroid geocoding enabled", "cache_size", cfg.GeocodeCacheSize, "timeout", cfg.GeocodeTimeout)
	} else {
		logger.Info("centroid geocoding disabled")
	}

	p := pipeline.New(store, store, store, logger, metrics, pipeline.Options{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		Workers:      cfg.PipelineWorkers,
		Areas:        areas,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Kafka intake (optional; deployments without Kafka write to the store
	// directly).
	var intake *kafkaadapter.Intake
	if cfg.KafkaEnabled {
		intake = kafkaadapter.NewIntake(cfg, store, store, logger, metrics)
		logger.Info("kafka intake enabled",
			"brokers", cfg.KafkaBrokers,
			"reports_topic", cfg.KafkaReportsTopic,
			"bulletins_topic", cfg.KafkaBulletinsTopic,
		)
		go func() {
			if err := intake.Run(ctx); err != nil {
				logger.Error("kafka intake error", "error", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start fusion pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if intake != nil {
		if err := intake.Close(); err != nil {
			logger.Error("kafka intake close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
