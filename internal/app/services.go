package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kmrl/opsboard/internal/auth"
	"github.com/kmrl/opsboard/internal/feed"
	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/ingest"
	"github.com/kmrl/opsboard/internal/mlsched"
	"github.com/kmrl/opsboard/internal/platform/cache"
	"github.com/kmrl/opsboard/internal/platform/db"
	"github.com/kmrl/opsboard/internal/poller"
	"github.com/kmrl/opsboard/internal/upstream"
)

// Backend holds the connections shared by the server, the worker and the CLI.
type Backend struct {
	Config *Config
	Logger *slog.Logger
	// Pool is nil when Postgres is unreachable and fixtures stand in.
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// Connect opens Postgres and Redis. An unreachable database is tolerated when
// FixturesFallback is on; an unreachable Redis is only logged, go-redis
// reconnects on demand.
func Connect(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{Config: cfg, Logger: logger}

	pool, err := db.New(ctx, cfg.PGDSN)
	switch {
	case err == nil:
		b.Pool = pool
	case cfg.FixturesFallback:
		logger.Warn("postgres unavailable, serving fixtures", slog.Any("error", err))
	default:
		return nil, fmt.Errorf("app: connect postgres: %w", err)
	}

	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	b.Redis = client
	return b, nil
}

// RedisOpt returns the asynq connection options for the configured Redis.
func (b *Backend) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: b.Config.RedisAddr}
}

// Close releases the connections.
func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			b.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
}

// Services are the domain services built over a Backend.
type Services struct {
	Fleet      *fleet.Service
	Cache      *fleet.Cache
	Repository *fleet.Repository
	Auth       *auth.Service
	Ingest     *ingest.Service
	ML         *mlsched.Service
}

// NewServices composes the domain services. queue may be nil, in which case
// training runs in the foreground. refresh, when set, re-polls the dashboard
// feeds after an upload.
func NewServices(ctx context.Context, b *Backend, queue mlsched.TrainEnqueuer, refresh func(context.Context) error) (*Services, error) {
	cfg, logger := b.Config, b.Logger
	svc := &Services{Cache: fleet.NewCache(b.Redis, cfg.CacheTTL)}

	fixtures, err := fleet.NewFixtureStore()
	if err != nil {
		return nil, fmt.Errorf("app: load fixtures: %w", err)
	}
	var store fleet.Store = fixtures
	if b.Pool != nil {
		svc.Repository = fleet.NewRepository(b.Pool)
		store = svc.Repository
		if cfg.FixturesFallback {
			store = fleet.NewFallbackStore(svc.Repository, fixtures, logger)
		}
	}
	svc.Fleet = fleet.NewService(store, svc.Cache, logger)

	var authRepo auth.Repository = auth.NewMemoryRepository()
	if b.Pool != nil {
		authRepo = auth.NewRepository(b.Pool)
	}
	svc.Auth = auth.NewService(authRepo, logger)
	if cfg.BootstrapEmail != "" && cfg.BootstrapPassword != "" {
		if err := svc.Auth.EnsureUser(ctx, cfg.BootstrapEmail, cfg.BootstrapName, cfg.BootstrapPassword); err != nil {
			return nil, fmt.Errorf("app: bootstrap user: %w", err)
		}
	}

	ingestCfg := ingest.Config{Cache: svc.Fleet, Refresh: refresh, Logger: logger}
	if svc.Repository != nil {
		ingestCfg.Writer = svc.Repository
	}
	svc.Ingest = ingest.NewService(ingestCfg)

	insights, err := mlsched.LoadInsights()
	if err != nil {
		return nil, fmt.Errorf("app: load insights: %w", err)
	}
	var engine mlsched.Engine = mlsched.NewRulePlanner(svc.Fleet, logger)
	if cfg.MLServiceURL != "" {
		engine = mlsched.NewRemoteEngine(cfg.MLServiceURL, &http.Client{Timeout: 60 * time.Second})
	}
	svc.ML = mlsched.NewService(mlsched.Config{
		Engine:   engine,
		Store:    mlsched.NewRedisStore(b.Redis, mlsched.DefaultScheduleTTL),
		Queue:    queue,
		Insights: insights,
		Logger:   logger,
	})
	return svc, nil
}

// NewFeeds builds the dashboard pollers. With UPSTREAM_URL set they read a
// remote deployment; otherwise they read the local fleet service.
func NewFeeds(cfg *Config, fleetSvc *fleet.Service, metrics *poller.Metrics, logger *slog.Logger) (*feed.Feeds, error) {
	feedCfg := feed.Config{
		Store:              fleetSvc,
		Overview:           fleetSvc,
		OverviewInterval:   cfg.PollOverviewInterval,
		CollectionInterval: cfg.PollCollectionInterval,
		Logger:             logger,
		Metrics:            metrics,
	}
	if cfg.UpstreamURL != "" {
		client, err := upstream.New(cfg.UpstreamURL, nil)
		if err != nil {
			return nil, err
		}
		feedCfg.Store = client
		feedCfg.Overview = client
	}
	return feed.New(feedCfg), nil
}
