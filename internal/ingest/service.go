package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/platform/httpx"
)

// BatchWriter persists a batch atomically.
type BatchWriter interface {
	InsertBatch(ctx context.Context, b fleet.Batch) (fleet.Inserted, error)
}

// Invalidator drops cached collections after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Result describes one completed upload.
type Result struct {
	BatchID  string         `json:"batch_id"`
	Inserted fleet.Inserted `json:"inserted"`
	Skipped  int            `json:"skipped"`
}

// Config wires a Service.
type Config struct {
	Writer BatchWriter
	Cache  Invalidator
	// Refresh, when set, re-polls the dashboard feeds after a write.
	Refresh func(ctx context.Context) error
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service parses uploads and writes them through the fleet repository.
type Service struct {
	parser  *Parser
	writer  BatchWriter
	cache   Invalidator
	refresh func(ctx context.Context) error
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service. A nil writer makes every upload fail with
// httpx.ErrUnavailable.
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
		parser:  NewParser(),
		writer:  cfg.Writer,
		cache:   cfg.Cache,
		refresh: cfg.Refresh,
		logger:  logger.With(slog.String("component", "ingest")),
		now:     now,
	}
}

// Ingest parses r and upserts the derived rows in one transaction. Cache
// invalidation and feed refresh failures are logged, not returned: the rows
// are already committed.
func (s *Service) Ingest(ctx context.Context, r io.Reader) (Result, error) {
	if s.writer == nil {
		return Result{}, fmt.Errorf("ingest: no database configured: %w", httpx.ErrUnavailable)
	}
	rows, skipped, err := s.parser.Parse(r)
	if err != nil {
		return Result{}, err
	}
	batch := BuildBatch(rows, s.now())
	inserted, err := s.writer.InsertBatch(ctx, batch)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: write batch: %w", err)
	}
	res := Result{BatchID: uuid.NewString(), Inserted: inserted, Skipped: skipped}
	s.logger.Info("batch ingested",
		slog.String("batch_id", res.BatchID),
		slog.Int("trainsets", inserted.Trainsets),
		slog.Int("skipped", skipped))

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate cache", slog.Any("error", err))
		}
	}
	if s.refresh != nil {
		if err := s.refresh(ctx); err != nil {
			s.logger.Warn("refresh feeds", slog.Any("error", err))
		}
	}
	return res, nil
}
