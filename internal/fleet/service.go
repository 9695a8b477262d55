package fleet

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Service fronts a Store with the Redis cache. Concurrent misses for the same
// collection share one load, and a broken cache degrades to direct reads.
type Service struct {
	store  Store
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService wires store with cache. cache may be nil.
func NewService(store Store, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, logger: logger.With(slog.String("component", "fleet"))}
}

type loadError struct{ err error }

func (e loadError) Error() string { return e.err.Error() }
func (e loadError) Unwrap() error { return e.err }

func cached[T any](ctx context.Context, s *Service, name string, load func(context.Context) (T, error)) (T, error) {
	key, err := s.cache.BuildKey(ctx, name)
	if err != nil {
		s.logger.Warn("cache unavailable", slog.String("collection", name), slog.Any("error", err))
		return load(ctx)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var v T
		err := s.cache.FetchJSON(ctx, key, &v, func(ctx context.Context) (any, error) {
			value, err := load(ctx)
			if err != nil {
				return nil, loadError{err}
			}
			return value, nil
		})
		return v, err
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(T), nil
		}
		var le loadError
		if errors.As(res.Err, &le) {
			return zero, le.err
		}
		s.logger.Warn("cache read failed", slog.String("collection", name), slog.Any("error", res.Err))
		return load(ctx)
	}
}

func (s *Service) Fitness(ctx context.Context) ([]FitnessCertificate, error) {
	return cached(ctx, s, CollectionFitness, s.store.Fitness)
}

func (s *Service) JobCards(ctx context.Context) ([]JobCard, error) {
	return cached(ctx, s, CollectionJobCards, s.store.JobCards)
}

func (s *Service) Branding(ctx context.Context) ([]BrandingCampaign, error) {
	return cached(ctx, s, CollectionBranding, s.store.Branding)
}

func (s *Service) Mileage(ctx context.Context) ([]MileageRecord, error) {
	return cached(ctx, s, CollectionMileage, s.store.Mileage)
}

func (s *Service) Cleaning(ctx context.Context) ([]CleaningSlot, error) {
	return cached(ctx, s, CollectionCleaning, s.store.Cleaning)
}

func (s *Service) Stabling(ctx context.Context) ([]StablingBay, error) {
	return cached(ctx, s, CollectionStabling, s.store.Stabling)
}

func (s *Service) Trainsets(ctx context.Context) ([]Trainset, error) {
	return cached(ctx, s, CollectionTrainsets, s.store.Trainsets)
}

// Trainset returns one trainset with its relations, or ErrNotFound.
func (s *Service) Trainset(ctx context.Context, id string) (Trainset, error) {
	all, err := s.Trainsets(ctx)
	if err != nil {
		return Trainset{}, err
	}
	for _, t := range all {
		if t.TrainID == id {
			return t, nil
		}
	}
	return Trainset{}, ErrNotFound
}

// Overview loads the three source collections in parallel.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		trainsets []Trainset
		jobs      []JobCard
		campaigns []BrandingCampaign
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trainsets, err = s.Trainsets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		jobs, err = s.JobCards(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		campaigns, err = s.Branding(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return ComputeOverview(trainsets, jobs, campaigns), nil
}

// Invalidate drops every cached collection.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Warm loads every collection into the cache and reports how many were loaded.
func (s *Service) Warm(ctx context.Context) (int, error) {
	loaders := []func(context.Context) error{
		func(ctx context.Context) error { _, err := s.Fitness(ctx); return err },
		func(ctx context.Context) error { _, err := s.JobCards(ctx); return err },
		func(ctx context.Context) error { _, err := s.Branding(ctx); return err },
		func(ctx context.Context) error { _, err := s.Mileage(ctx); return err },
		func(ctx context.Context) error { _, err := s.Cleaning(ctx); return err },
		func(ctx context.Context) error { _, err := s.Stabling(ctx); return err },
		func(ctx context.Context) error { _, err := s.Trainsets(ctx); return err },
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, load := range loaders {
		g.Go(func() error { return load(gctx) })
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(loaders), nil
}
