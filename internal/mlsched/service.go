package mlsched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Train outcome messages.
const (
	MessageTrained = "Model trained successfully"
	MessageQueued  = "Model training queued"
)

// TrainEnqueuer hands training to the background worker.
type TrainEnqueuer interface {
	EnqueueTrain(ctx context.Context) error
}

// TrainResult is the reply to a training request.
type TrainResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Config wires a Service.
type Config struct {
	Engine   Engine
	Store    ScheduleStore
	Queue    TrainEnqueuer
	Insights Insights
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service coordinates the scheduling engine with the schedule store.
type Service struct {
	engine   Engine
	store    ScheduleStore
	queue    TrainEnqueuer
	insights Insights
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service. Engine and Store are required.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		engine:   cfg.Engine,
		store:    cfg.Store,
		queue:    cfg.Queue,
		insights: cfg.Insights,
		logger:   logger.With(slog.String("component", "mlsched")),
		now:      now,
	}
}

// EngineName reports which engine answers schedule requests.
func (s *Service) EngineName() string { return s.engine.Name() }

// Train queues a training run when a queue is configured and otherwise
// trains in the request.
func (s *Service) Train(ctx context.Context) (TrainResult, error) {
	if s.queue != nil {
		if err := s.queue.EnqueueTrain(ctx); err != nil {
			return TrainResult{}, fmt.Errorf("mlsched: enqueue training: %w", err)
		}
		s.logger.Info("training queued", slog.String("engine", s.engine.Name()))
		return TrainResult{Status: "success", Message: MessageQueued}, nil
	}
	if err := s.TrainNow(ctx); err != nil {
		return TrainResult{}, err
	}
	return TrainResult{Status: "success", Message: MessageTrained}, nil
}

// TrainNow runs training synchronously.
func (s *Service) TrainNow(ctx context.Context) error {
	start := s.now()
	if err := s.engine.Train(ctx); err != nil {
		return fmt.Errorf("mlsched: train: %w", err)
	}
	s.logger.Info("model trained", slog.String("engine", s.engine.Name()), slog.Duration("duration", s.now().Sub(start)))
	return nil
}

// Generate builds and stores the schedule for date, defaulting to today.
func (s *Service) Generate(ctx context.Context, date string) (Schedule, error) {
	day, err := ParseDate(date, s.now())
	if err != nil {
		return Schedule{}, err
	}
	assignments, err := s.engine.Generate(ctx, day)
	if err != nil {
		return Schedule{}, fmt.Errorf("mlsched: generate %s: %w", day, err)
	}
	sched := Schedule{Date: day, Schedule: assignments, Engine: s.engine.Name(), GeneratedAt: s.now().UTC()}
	if err := s.store.Save(ctx, sched); err != nil {
		return Schedule{}, err
	}
	s.logger.Info("schedule generated", slog.String("date", day), slog.Int("assignments", len(assignments)))
	return sched, nil
}

// Schedule returns the stored schedule of date, defaulting to today. Dates
// nothing was generated for yield an empty schedule with NoScheduleReasoning.
func (s *Service) Schedule(ctx context.Context, date string) (Schedule, error) {
	day, err := ParseDate(date, s.now())
	if err != nil {
		return Schedule{}, err
	}
	sched, err := s.store.Load(ctx, day)
	if errors.Is(err, ErrNoSchedule) {
		return Schedule{Date: day, Schedule: []Assignment{}, Reasoning: NoScheduleReasoning}, nil
	}
	if err != nil {
		return Schedule{}, err
	}
	return sched, nil
}

// Insights returns the analysis panels.
func (s *Service) Insights() Insights { return s.insights.Clone() }
