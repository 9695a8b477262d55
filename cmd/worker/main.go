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

	"github.com/kmrl/opsboard/internal/app"
	"github.com/kmrl/opsboard/internal/observability"
	"github.com/kmrl/opsboard/jobs"
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

	backend, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	// The worker trains in the foreground, so the ML service gets no queue.
	services, err := app.NewServices(ctx, backend, nil, nil)
	if err != nil {
		logger.Error("build services", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	warmJob := jobs.NewWarmCacheJob(services.Fleet, logger, metrics.Jobs())
	trainJob := &jobs.TrainJob{Trainer: services.ML, Logger: logger, Metrics: metrics.Jobs()}
	scheduleJob := jobs.NewScheduleJob(services.ML, logger, metrics.Jobs())

	cron, err := jobs.DefaultCron()
	if err != nil {
		logger.Error("build cron tasks", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   backend.RedisOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskFleetWarmCache, Handler: warmJob.Handle},
			{Type: jobs.TaskMLTrain, Handler: trainJob.Handle},
			{Type: jobs.TaskGenerateSchedule, Handler: scheduleJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
