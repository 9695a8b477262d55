package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kmrl/opsboard/internal/app"
	"github.com/kmrl/opsboard/internal/auth"
	"github.com/kmrl/opsboard/internal/feed"
	fleethttp "github.com/kmrl/opsboard/internal/fleet/http"
	"github.com/kmrl/opsboard/internal/ingest"
	"github.com/kmrl/opsboard/internal/mlsched"
	"github.com/kmrl/opsboard/internal/observability"
	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/simulation"
	"github.com/kmrl/opsboard/internal/view"
	"github.com/kmrl/opsboard/jobs"
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

	backend, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	queue := jobs.NewClient(backend.RedisOpt())
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	var feeds *feed.Feeds
	refresh := func(ctx context.Context) error { return feeds.RefreshAll(ctx) }

	services, err := app.NewServices(ctx, backend, queue, refresh)
	if err != nil {
		logger.Error("build services", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	feeds, err = app.NewFeeds(cfg, services.Fleet, metrics.Poll(), logger)
	if err != nil {
		logger.Error("build feeds", slog.Any("error", err))
		os.Exit(1)
	}
	if err := feeds.Start(ctx); err != nil {
		logger.Error("start feeds", slog.Any("error", err))
		os.Exit(1)
	}
	defer feeds.Stop()

	if err := services.Cache.ListenForInvalidation(ctx, func(version int64) {
		logger.Info("fleet data changed, refreshing feeds", slog.Int64("version", version))
		if err := feeds.RefreshAll(ctx); err != nil {
			logger.Warn("refresh feeds", slog.Any("error", err))
		}
	}); err != nil {
		logger.Warn("listen for invalidation", slog.Any("error", err))
	}

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	sessionManager := shared.NewSessionManager(backend.Redis, "opsboard_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	var pdf fleethttp.PDFRenderer
	if cfg.GotenbergURL != "" {
		pdf = &fleethttp.GotenbergPDF{Endpoint: cfg.GotenbergURL, Client: &http.Client{Timeout: 30 * time.Second}}
	}

	inspector := asynq.NewInspector(backend.RedisOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Metrics:        metrics,
		AuthHandler:    auth.NewHandler(logger, services.Auth, templates, csrfManager),
		FleetHandler: fleethttp.NewHandler(fleethttp.Config{
			Service:   services.Fleet,
			Feeds:     feeds,
			Templates: templates,
			CSRF:      csrfManager,
			PDF:       pdf,
			Logger:    logger,
		}),
		IngestHandler:     ingest.NewHandler(services.Ingest, templates, csrfManager, cfg.UploadMaxBytes, logger),
		MLHandler:         mlsched.NewHandler(services.ML, templates, csrfManager, logger),
		SimulationHandler: simulation.NewHandler(simulation.NewService(logger), templates, csrfManager, logger),
		JobHandler:        jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("engine", services.ML.EngineName()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
