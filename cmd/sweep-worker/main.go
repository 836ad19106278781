package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/careconnect/scheduling-service/internal/config"
	"github.com/careconnect/scheduling-service/internal/db"
	"github.com/careconnect/scheduling-service/internal/logging"
	"github.com/careconnect/scheduling-service/internal/notify"
	"github.com/careconnect/scheduling-service/internal/scheduling"
)

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

	logger.Info("sweep-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.SweepInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

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
	lifecycle := scheduling.NewLifecycleService(repo, notifier, cfg.ClinicLocation, logger)

	// Run once at startup
	runOnce(rootCtx, lifecycle, logger)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping sweep worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, lifecycle, logger)
		}
	}
}

func runOnce(ctx context.Context, lifecycle *scheduling.LifecycleService, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	completed, err := lifecycle.SweepCompletable(runCtx)
	if err != nil {
		logger.Error("sweep run error", zap.Error(err))
		return
	}
	logger.Info("sweep run complete",
		zap.Int("completed", completed),
		zap.Duration("took", time.Since(start)),
	)
}
