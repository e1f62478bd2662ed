package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridecredit/backend/internal/audit"
	"github.com/ridecredit/backend/internal/config"
	"github.com/ridecredit/backend/internal/database"
	"github.com/ridecredit/backend/internal/events"
	"github.com/ridecredit/backend/internal/handlers"
	"github.com/ridecredit/backend/internal/jobs"
	"github.com/ridecredit/backend/internal/logging"
	"github.com/ridecredit/backend/internal/middleware"
	"github.com/ridecredit/backend/internal/services"
	"github.com/ridecredit/backend/internal/store"
	"github.com/ridecredit/backend/internal/store/memory"
	"github.com/ridecredit/backend/internal/store/postgres"
	"github.com/sirupsen/logrus"
)

// @title Ride Credits API
// @version 1.0
// @description Seat booking paid from a per-user credit ledger
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	v := config.New(".env")
	cfg, err := config.Load(v)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger := logging.New(cfg.Log)
	ctx := context.Background()

	if cfg.JWT.SecretKey == "" {
		logger.Warn("JWT_SECRET_KEY is not set, authenticated routes will reject every request")
	}

	var st store.Store
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		st = memory.New()
	default:
		db, err := database.InitDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db, logger); err != nil {
				logger.WithError(err).Fatal("Failed to migrate database")
			}
		}
		st = postgres.New(db)
	}

	// Redis is optional: without it there are no stats and no runtime
	// settings overrides.
	redisClient := database.InitRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer := events.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
	defer producer.Close()

	sinks := []services.Sink{audit.NewAuditLogger(logger), producer}
	if redisClient != nil {
		sinks = append(sinks, services.NewStatsService(redisClient))
	}
	notifier := services.NewNotifier(logger, cfg.Notify.Timeout, sinks...)

	settings := services.NewSettingsService(config.NewSettings(v), redisClient, logger)
	pricing := services.NewPricingService(settings)
	ledger := services.NewLedgerService(st, notifier, logger)
	seats := services.NewSeatService(st)
	trips := services.NewTripService(st, logger)
	bookings := services.NewBookingService(st, ledger, pricing, seats, notifier, cfg.Booking.Timeout, logger)

	reconciler := jobs.NewReconciler(st, ledger, cfg.Reconcile.Schedule, logger)
	if err := reconciler.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start reconciliation job")
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Trips:    handlers.NewTripHandler(trips, pricing, logger),
		Bookings: handlers.NewBookingHandler(bookings, logger),
		Accounts: handlers.NewAccountHandler(ledger, logger),
		Admin:    handlers.NewAdminHandler(ledger, settings, logger),
		Auth:     middleware.NewAuthenticator(cfg.JWT.SecretKey),
		Store:    st,
		DocsDir:  "./api",
		Timeout:  cfg.Server.WriteTimeout,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  4 * cfg.Server.ReadTimeout,
	}

	// Graceful shutdown
	go func() {
		logger.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	<-reconciler.Stop().Done()

	// Let in-flight notifications reach their sinks before the broker closes.
	notifier.Wait()
	logger.Info("Server stopped")
}
