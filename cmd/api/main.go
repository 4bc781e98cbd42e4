package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/haloview/mfa-incident-backend/internal/api/rest"
	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	"github.com/haloview/mfa-incident-backend/internal/domain/event"
	"github.com/haloview/mfa-incident-backend/internal/infrastructure/cache"
	"github.com/haloview/mfa-incident-backend/internal/infrastructure/config"
	"github.com/haloview/mfa-incident-backend/internal/infrastructure/events"
	"github.com/haloview/mfa-incident-backend/internal/infrastructure/repository"
	"github.com/haloview/mfa-incident-backend/internal/infrastructure/telemetry"
	"github.com/haloview/mfa-incident-backend/internal/service/ingest"
	"github.com/haloview/mfa-incident-backend/internal/service/resolution"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to set up zap logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telConfig := &telemetry.Config{
		ServiceName:    "auth-incident-exchange",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  cfg.Telemetry.ExportTimeout,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	}
	provider, err := telemetry.InitializeOpenTelemetry(ctx, telConfig)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "error", err)
		}
	}()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	notifier, err := events.Connect(&cfg.NATS, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to nats: %v", err)
	}
	defer notifier.Close()

	repo := repository.NewIncidentRepository(db)
	window := cache.NewEventWindow(redisClient, cfg.Incident.RetentionWindow(), zapLogger)
	metrics := telemetry.NewIncidentMetrics(prometheus.DefaultRegisterer)

	ingestSvc := ingest.NewService(
		event.NewNormalizer(event.RealClock{}),
		classification.NewEngine(cfg.Incident.BurstThreshold, cfg.Incident.BurstWindow),
		repo,
		window,
		metrics,
		notifier,
		ingest.Config{
			RetentionWindow: cfg.Incident.RetentionWindow(),
			BurstWindow:     cfg.Incident.BurstWindow,
		},
		logger,
	)

	resolutionSvc := resolution.NewService(
		repo,
		metrics,
		notifier,
		resolution.Config{
			CooldownPeriod: cfg.Resolution.CooldownPeriod,
			ScanLimit:      cfg.Resolution.ScanLimit,
		},
		nil,
		logger,
	)

	// Scheduled resolution runs alongside the manual trigger endpoint.
	go runResolutionLoop(ctx, resolutionSvc, cfg.Resolution.ScanInterval, logger)

	handlers := rest.NewHandlers(ingestSvc, resolutionSvc, repo, logger)
	server := rest.NewServer(&cfg.Server, handlers, logger)

	if err := server.Start(ctx, cfg.Server.ShutdownTimeout); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func runResolutionLoop(ctx context.Context, svc *resolution.Service, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := svc.Run(ctx)
			if err != nil {
				logger.Error("scheduled resolution run failed", "error", err)
				continue
			}
			logger.Info("scheduled resolution run completed",
				"resolved", summary.ResolvedCount,
				"skipped", summary.SkippedCount,
				"errors", summary.ErrorCount)
		}
	}
}
