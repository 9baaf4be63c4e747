package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetdesk/internal/config"
	"fleetdesk/internal/database"
	"fleetdesk/internal/events"
	"fleetdesk/internal/google"
	"fleetdesk/internal/logging"
	"fleetdesk/internal/repository"
	"fleetdesk/internal/service"
	"fleetdesk/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	sheetsService := initGoogleSheets(ctx, cfg, &logger)

	// Аудит-воркер дренирует очередь даже без внешнего стока
	var sink worker.AuditSink = worker.NewLogSink(&logger)
	if sheetsService != nil {
		sink = sheetsService
	} else {
		logger.Warn().Msg("google sheets not configured, draining audit queue to the log")
	}

	auditWorker := worker.NewAuditWorker(db, sink, redisClient, worker.DefaultAuditRetryPolicy(), &logger)
	auditWorker.SetPollInterval(time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second)
	auditWorker.SetBatchSize(cfg.Worker.BatchSize)
	go auditWorker.Start(ctx)

	if sheetsService != nil {
		scheduleExporter := worker.NewScheduleExporter(db, sheetsService, 10*time.Minute, 14, &logger)
		go scheduleExporter.Start(ctx)
	}

	eventBus := events.NewEventBus()
	events.SubscribeMetrics(eventBus)
	events.SubscribeAuditLog(eventBus, &logger)

	bookingService := service.NewBookingService(
		db, nil, service.NewLocalContractCreator(), eventBus,
		time.Duration(cfg.Booking.HoldHours)*time.Hour,
		cfg.Booking.MaxRentalDays,
		0,
		&logger,
	)
	reaper := worker.NewReaper(bookingService, time.Duration(cfg.Worker.ReaperIntervalSeconds)*time.Second, &logger)
	go reaper.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	logger.Info().Msg("worker started")
	<-ctx.Done()
	logger.Info().Msg("worker stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "worker-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, dead letters will be dropped")
		redisClient.Close()
		return nil
	}
	return redisClient
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(
		cfg.Google.CredentialsFile,
		cfg.Google.BookingsSpreadsheetID,
		cfg.Google.ScheduleSpreadsheetID,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed")
		return nil
	}

	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}
