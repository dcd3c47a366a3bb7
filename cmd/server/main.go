package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkaadapter "water-monitoring/internal/adapter/kafka"
	"water-monitoring/internal/config"
	"water-monitoring/internal/controller"
	"water-monitoring/internal/observability"
	"water-monitoring/internal/repository"
	"water-monitoring/internal/service"
	"water-monitoring/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
)

const (
	seedDays           = 3
	sessionSweepPeriod = time.Minute
)

func main() {
	// A missing .env is fine; the environment may already be populated
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	db, err := repository.OpenPostgres(cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open measurement store", "error", err)
		os.Exit(1)
	}
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(db); err != nil {
			logger.Error("failed to migrate measurement store", "error", err)
			os.Exit(1)
		}
	}
	if cfg.Database.Seed {
		seeder := repository.NewSeedRepository(db, logger)
		if err := seeder.SeedDatabase(context.Background(), clock.Now(), seedDays); err != nil {
			logger.Error("failed to seed measurement store", "error", err)
			os.Exit(1)
		}
	}

	timeout := cfg.Collaborator.Timeout
	locationRepo := repository.NewLocationRepository(db)
	measurementRepo := repository.NewMeasurementRepository(db)
	aggregationRepo := repository.NewAggregationRepository(db)

	var alerts service.AlertPublisher
	var alertWriter *kafkaadapter.Writer
	if cfg.Kafka.Enabled {
		alertWriter = kafkaadapter.NewWriter(cfg.Kafka, logger)
		alerts = alertWriter
		logger.Info("level alerts enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.AlertTopic)
	} else {
		logger.Info("level alerts disabled")
	}

	locations := service.NewLocationService(locationRepo, timeout)
	entries := service.NewEntryService(service.EntryDeps{
		Locations:    locations,
		Measurements: measurementRepo,
		Alerts:       alerts,
		Clock:        clock,
		Metrics:      metrics,
		Logger:       logger,
		Timeout:      timeout,
	})
	reports := service.NewReportService(aggregationRepo, clock, metrics, logger, timeout)
	periods := service.NewPeriodReportService(repository.NewPeriodRepository(db), clock, metrics, logger, timeout)
	dashboard := service.NewDashboardService(locations, measurementRepo, periods, clock, timeout)

	var authenticator session.Authenticator
	switch cfg.Auth.Mode {
	case config.AuthModeRemote:
		authenticator = session.NewRemoteAuthenticator(cfg.Auth.IdentityURL, timeout)
	default:
		logger.Warn("using the static demonstration credential table")
		authenticator = session.NewStaticAuthenticator()
	}
	tokens := session.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL, clock)
	sessions := session.NewManager(authenticator, tokens, clock, metrics, logger, timeout)
	views := service.NewReportViews(reports, metrics, logger, sessions.Active)
	sessions.OnLogout(views.Drop)

	gin.SetMode(gin.ReleaseMode)
	router := controller.NewRouter(controller.RouterDeps{
		Sessions:     sessions,
		Session:      controller.NewSessionController(sessions, logger),
		Locations:    controller.NewLocationController(locations, logger),
		Measurements: controller.NewMeasurementController(entries, logger),
		Reports:      controller.NewReportController(reports, periods, views, logger),
		Dashboard:    controller.NewDashboardController(dashboard, logger),
		Health:       controller.NewHealthController(repository.NewPinger(db), logger),
		Metrics:      metrics,
		Logger:       logger,
	})

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization", controller.FormInstanceHeader},
		ExposedHeaders: []string{"Content-Disposition"},
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      c.Handler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessions.Run(ctx, sessionSweepPeriod)

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if alertWriter != nil {
		if err := alertWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
