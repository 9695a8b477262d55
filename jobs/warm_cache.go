package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/kmrl/opsboard/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CacheWarmer loads every collection into the cache.
type CacheWarmer interface {
	Warm(ctx context.Context) (int, error)
}

// WarmCacheJob keeps the fleet cache populated so page loads never pay for a
// cold read.
type WarmCacheJob struct {
	Fleet   CacheWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewWarmCacheJob wires dependencies for the warm-up handler.
func NewWarmCacheJob(fleet CacheWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmCacheJob {
	return &WarmCacheJob{Fleet: fleet, Logger: logger, Metrics: metrics}
}

// Handle processes TaskFleetWarmCache tasks.
func (j *WarmCacheJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Fleet == nil {
		return errors.New("warm cache: handler not configured")
	}
	tracker := metricsOr(j.Metrics).Track(TaskFleetWarmCache)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := jobLogger(j.Logger, TaskFleetWarmCache)
	start := time.Now()
	n, err := j.Fleet.Warm(ctx)
	if err != nil {
		logger.Error("warm fleet cache", slog.Any("error", err))
		return err
	}
	logger.Info("fleet cache warmed", slog.Int("collections", n), slog.Duration("duration", time.Since(start)))
	return nil
}

func metricsOr(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
