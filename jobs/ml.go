package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/kmrl/opsboard/internal/jobs"
	"github.com/kmrl/opsboard/internal/mlsched"
	"github.com/kmrl/opsboard/internal/platform/httpx"
)

// Trainer trains the schedule engine in the foreground.
type Trainer interface {
	TrainNow(ctx context.Context) error
}

// TrainJob runs queued training requests.
type TrainJob struct {
	Trainer Trainer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskMLTrain tasks.
func (j *TrainJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Trainer == nil {
		return errors.New("ml train: handler not configured")
	}
	tracker := metricsOr(j.Metrics).Track(TaskMLTrain)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := jobLogger(j.Logger, TaskMLTrain)
	if err := j.Trainer.TrainNow(ctx); err != nil {
		logger.Error("train engine", slog.Any("error", err))
		return err
	}
	logger.Info("engine trained")
	return nil
}

// ScheduleGenerator builds and stores one day's schedule.
type ScheduleGenerator interface {
	Generate(ctx context.Context, date string) (mlsched.Schedule, error)
}

// ScheduleJob generates the induction schedule, by default for the next day.
type ScheduleJob struct {
	Generator ScheduleGenerator
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewScheduleJob wires dependencies for the schedule handler.
func NewScheduleJob(gen ScheduleGenerator, logger *slog.Logger, metrics *jobmetrics.Metrics) *ScheduleJob {
	return &ScheduleJob{Generator: gen, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes TaskGenerateSchedule tasks.
func (j *ScheduleJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Generator == nil {
		return errors.New("generate schedule: handler not configured")
	}
	var payload GenerateSchedulePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Date == "" {
		payload.Date = j.now().AddDate(0, 0, 1).Format(mlsched.DateLayout)
	}

	tracker := metricsOr(j.Metrics).Track(TaskGenerateSchedule)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := jobLogger(j.Logger, TaskGenerateSchedule).With(slog.String("date", payload.Date))
	sched, err := j.Generator.Generate(ctx, payload.Date)
	if err != nil {
		logger.Error("generate schedule", slog.Any("error", err))
		if errors.Is(err, httpx.ErrValidation) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}
	metricsOr(j.Metrics).SetAssignments(sched.Engine, len(sched.Schedule))
	logger.Info("schedule generated", slog.String("engine", sched.Engine), slog.Int("assignments", len(sched.Schedule)))
	return nil
}

func (j *ScheduleJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
