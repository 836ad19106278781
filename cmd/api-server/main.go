package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/careconnect/scheduling-service/internal/api"
	"github.com/careconnect/scheduling-service/internal/config"
	"github.com/careconnect/scheduling-service/internal/db"
	"github.com/careconnect/scheduling-service/internal/logging"
	"github.com/careconnect/scheduling-service/internal/notify"
	redisclient "github.com/careconnect/scheduling-service/internal/redis"
	"github.com/careconnect/scheduling-service/internal/scheduling"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres and apply migrations before accepting traffic;
	// the schema carries the booking uniqueness constraint.
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migCtx, pgPool)
	cancelMig()
	if err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	logger.Info("connected to Postgres, schema up to date")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	var notifier notify.Publisher = notify.Noop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := notify.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			logger.Fatal("amqp connection error", zap.Error(err))
		}
		notifier = amqpPub
		logger.Info("connected to AMQP broker")
	}
	defer notifier.Close()

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	resolver := scheduling.NewAvailabilityResolver(repo, cfg.ClinicLocation)
	schedules := scheduling.NewScheduleService(repo, cfg.ClinicLocation, cfg.RecurrenceWeeks, logger)
	bookings := scheduling.NewBookingCoordinator(repo, locker, resolver, notifier, cfg.ClinicLocation, cfg.BookingTimeout, logger)
	lifecycle := scheduling.NewLifecycleService(repo, notifier, cfg.ClinicLocation, logger)

	router := api.NewRouter(api.RouterConfig{
		Schedules:    schedules,
		Availability: resolver,
		Bookings:     bookings,
		Lifecycle:    lifecycle,
		PgPool:       pgPool,
		Redis:        rdb,
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
