package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/aegle-his/aegle/internal/app"
	"github.com/aegle-his/aegle/internal/platform/cache"
	"github.com/aegle-his/aegle/internal/platform/db"
	"github.com/aegle-his/aegle/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	alertRedis, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisAlertDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := alertRedis.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// The SMS gateway is deployment-specific; without one the alerts are
	// still logged and deduplicated.
	alertHandler := jobs.NewAlertHandler(alertRedis, nil, cfg.AlertRecipients, cfg.AlertDedupTTL, logger)
	scanner := jobs.NewExpiryScanner(pool, cfg.ExpiryScanHorizon, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeLowStockAlert, Handler: alertHandler.HandleLowStockAlert},
			{Type: jobs.TaskTypeExpiringLotScan, Handler: scanner.HandleExpiringLotScan},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ExpiryScanCron, Task: jobs.NewExpiringLotScanTask()},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
