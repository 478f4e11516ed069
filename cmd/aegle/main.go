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

	"github.com/hibiken/asynq"

	"github.com/aegle-his/aegle/internal/app"
	"github.com/aegle-his/aegle/internal/masterdata"
	"github.com/aegle-his/aegle/internal/medicals"
	"github.com/aegle-his/aegle/internal/observability"
	"github.com/aegle-his/aegle/internal/platform/db"
	"github.com/aegle-his/aegle/internal/shared"
	"github.com/aegle-his/aegle/internal/stock"
	"github.com/aegle-his/aegle/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	enqueuer := jobs.NewEnqueuer(asynqClient, logger)
	metrics := observability.NewMetrics()

	medicalsRepo := medicals.NewRepository(pool)
	medicalsService := medicals.NewService(medicalsRepo)
	medicalsHandler := medicals.NewHandler(logger, medicalsService)

	masterdataRepo := masterdata.NewRepository(pool)
	masterdataService := masterdata.NewService(masterdataRepo)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, medicalsRepo, auditLogger, cfg.StockConfig(), enqueuer)
	stockHandler := stock.NewHandler(logger, stockService, medicalsRepo, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		StockHandler:      stockHandler,
		MedicalsHandler:   medicalsHandler,
		MasterdataHandler: masterdataHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
		Pool:              pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
