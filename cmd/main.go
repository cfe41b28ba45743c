package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Avimitin/bili-live-notify-bot/internal/archive"
	"github.com/Avimitin/bili-live-notify-bot/internal/audit"
	"github.com/Avimitin/bili-live-notify-bot/internal/client"
	"github.com/Avimitin/bili-live-notify-bot/internal/config"
	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/internal/handler"
	"github.com/Avimitin/bili-live-notify-bot/internal/notify"
	"github.com/Avimitin/bili-live-notify-bot/internal/reconciler"
	"github.com/Avimitin/bili-live-notify-bot/internal/repository"
	"github.com/Avimitin/bili-live-notify-bot/internal/telemetry"
	"github.com/Avimitin/bili-live-notify-bot/pkg/database"
	pkglog "github.com/Avimitin/bili-live-notify-bot/pkg/log"
	"github.com/Avimitin/bili-live-notify-bot/pkg/pubsub"
	"github.com/Avimitin/bili-live-notify-bot/pkg/storage"
)

const serviceName = "live-status-sync"

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: serviceName,
	})
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = pkglog.WithLogger(ctx, logger)

	// 3. Init DB (GORM, auto-migrate RoomModel)
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
	}
	defer sqlDB.Close()

	if err := database.AutoMigrate(db, &domain.RoomModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	roomRepo := repository.NewGormRoomRepository(db)

	// 4. Register seed rooms
	for _, roomID := range cfg.Sync.SeedRooms {
		created, err := roomRepo.Register(ctx, roomID, "")
		if err != nil {
			logger.Fatal().Err(err).Int64(pkglog.FieldRoomID, roomID).Msg("failed to register seed room")
		}
		if created {
			audit.Log(ctx, audit.ActionRoomRegistered, roomID, "room registered from seed list")
		}
	}

	// 5. Init event publisher
	publisher, err := pubsub.NewPublisher(cfg.Notify)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Notify.Driver).Msg("failed to create publisher")
	}
	defer publisher.Close()
	logger.Info().Str("driver", cfg.Notify.Driver).Msg("publisher ready")

	// 6. Init metrics
	cfg.Telemetry.ServiceName = serviceName
	meterProvider, shutdownMetrics, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create meter provider")
	}
	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create sync metrics")
	}

	// 7. Init report archive
	var reportArchive *archive.ReportArchive
	var schedulerOpts []reconciler.SchedulerOption
	if cfg.Archive.Storage.Driver != "none" {
		store, err := storage.New(ctx, cfg.Archive.Storage)
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.Archive.Storage.Driver).Msg("failed to create archive storage")
		}
		reportArchive = archive.NewReportArchive(store, cfg.Archive.Prefix)
		schedulerOpts = append(schedulerOpts, reconciler.WithArchiver(reportArchive))
		logger.Info().Str("driver", cfg.Archive.Storage.Driver).Msg("report archive ready")
	}

	// 8. Build engine and scheduler
	engine, err := reconciler.NewEngine(roomRepo, client.NewPlatformClient(cfg.Platform), reconciler.Options{
		StalenessThreshold: cfg.Sync.StalenessThreshold,
		MaxBatchSize:       cfg.Sync.MaxBatchSize,
		Parallelism:        cfg.Sync.Parallelism,
	}, syncMetrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create sync engine")
	}

	scheduler := reconciler.NewScheduler(engine, notify.NewEventNotifier(publisher), reconciler.SchedulerConfig{
		Interval:   cfg.Sync.Interval,
		RunOnStart: cfg.Sync.RunOnStart,
	}, schedulerOpts...)
	scheduler.Start(ctx)
	logger.Info().
		Dur("interval", cfg.Sync.Interval).
		Dur("staleness_threshold", cfg.Sync.StalenessThreshold).
		Int("max_batch_size", cfg.Sync.MaxBatchSize).
		Int("parallelism", cfg.Sync.Parallelism).
		Msg("scheduler started")

	// 9. Setup Gin router + HTTP server
	var reports handler.ReportStore
	if reportArchive != nil {
		reports = reportArchive
	}
	httpHandler := handler.NewHandler(roomRepo, scheduler, reports, cfg.Sync.StalenessThreshold)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg(serviceName + " starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 10. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// Stop accepting manual passes first.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}

		// The in-flight pass finishes its current chunks.
		cancel()
		scheduler.Stop()
		<-scheduler.Done()

		if err := shutdownMetrics(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush metrics")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg(serviceName + " stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
