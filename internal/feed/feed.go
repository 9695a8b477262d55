// Package feed owns the process-wide pollers behind the dashboard pages.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/poller"
)

// Default polling periods.
const (
	DefaultOverviewInterval   = 10 * time.Second
	DefaultCollectionInterval = 5 * time.Minute
)

// Config wires the feeds.
type Config struct {
	Store              fleet.Store
	Overview           fleet.OverviewSource
	OverviewInterval   time.Duration
	CollectionInterval time.Duration
	Logger             *slog.Logger
	Metrics            *poller.Metrics
}

// Feeds holds one poller per dashboard collection.
type Feeds struct {
	Overview  *poller.Source[fleet.Overview]
	Fitness   *poller.Source[[]fleet.FitnessCertificate]
	JobCards  *poller.Source[[]fleet.JobCard]
	Branding  *poller.Source[[]fleet.BrandingCampaign]
	Mileage   *poller.Source[[]fleet.MileageRecord]
	Cleaning  *poller.Source[[]fleet.CleaningSlot]
	Stabling  *poller.Source[[]fleet.StablingBay]
	Trainsets *poller.Source[[]fleet.Trainset]

	logger *slog.Logger
}

type lifecycle interface {
	Name() string
	Start(ctx context.Context) error
	Refresh(ctx context.Context) error
	Stop()
}

// New builds idle pollers. Call Start to begin fetching.
func New(cfg Config) *Feeds {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OverviewInterval <= 0 {
		cfg.OverviewInterval = DefaultOverviewInterval
	}
	if cfg.CollectionInterval <= 0 {
		cfg.CollectionInterval = DefaultCollectionInterval
	}
	f := &Feeds{logger: logger.With(slog.String("component", "feed"))}
	f.Overview = poller.New(poller.Config[fleet.Overview]{
		Name: fleet.CollectionOverview, Interval: cfg.OverviewInterval,
		Fetch: cfg.Overview.Overview, Logger: logger, Metrics: cfg.Metrics,
	})
	f.Fitness = collection(cfg, fleet.CollectionFitness, cfg.Store.Fitness)
	f.JobCards = collection(cfg, fleet.CollectionJobCards, cfg.Store.JobCards)
	f.Branding = collection(cfg, fleet.CollectionBranding, cfg.Store.Branding)
	f.Mileage = collection(cfg, fleet.CollectionMileage, cfg.Store.Mileage)
	f.Cleaning = collection(cfg, fleet.CollectionCleaning, cfg.Store.Cleaning)
	f.Stabling = collection(cfg, fleet.CollectionStabling, cfg.Store.Stabling)
	f.Trainsets = collection(cfg, fleet.CollectionTrainsets, cfg.Store.Trainsets)
	return f
}

func collection[T any](cfg Config, name string, fetch poller.FetchFunc[T]) *poller.Source[T] {
	return poller.New(poller.Config[T]{
		Name: name, Interval: cfg.CollectionInterval,
		Fetch: fetch, Logger: cfg.Logger, Metrics: cfg.Metrics,
	})
}

func (f *Feeds) all() []lifecycle {
	return []lifecycle{f.Overview, f.Fitness, f.JobCards, f.Branding, f.Mileage, f.Cleaning, f.Stabling, f.Trainsets}
}

// Start begins polling every collection.
func (f *Feeds) Start(ctx context.Context) error {
	for _, s := range f.all() {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	f.logger.Info("feeds started")
	return nil
}

// RefreshAll re-fetches every collection in parallel and waits for the
// results. Fetch failures are recorded on the snapshots, so only lifecycle
// errors are returned.
func (f *Feeds) RefreshAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range f.all() {
		g.Go(func() error {
			err := s.Refresh(gctx)
			if errors.Is(err, poller.ErrNotStarted) || errors.Is(err, poller.ErrStopped) {
				return err
			}
			if err != nil {
				f.logger.Debug("refresh", slog.String("source", s.Name()), slog.Any("error", err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop halts every poller and waits for outstanding fetches.
func (f *Feeds) Stop() {
	for _, s := range f.all() {
		s.Stop()
	}
}
