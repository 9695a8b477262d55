package fleet

import (
	"context"
	"errors"
	"log/slog"
)

// FallbackStore serves the primary store and falls back to a fixture dataset
// for any collection the primary cannot serve or holds no rows for.
type FallbackStore struct {
	primary  Store
	fixtures *FixtureStore
	logger   *slog.Logger
}

// NewFallbackStore wraps primary.
func NewFallbackStore(primary Store, fixtures *FixtureStore, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{primary: primary, fixtures: fixtures, logger: logger.With(slog.String("component", "fleet.fallback"))}
}

func withFallback[T any](ctx context.Context, s *FallbackStore, name string, primary, fixture func(context.Context) ([]T, error)) ([]T, error) {
	rows, err := primary(ctx)
	if err == nil && len(rows) > 0 {
		return rows, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("serving fixtures", slog.String("collection", name), slog.Any("error", err))
	}
	return fixture(ctx)
}

func (s *FallbackStore) Fitness(ctx context.Context) ([]FitnessCertificate, error) {
	return withFallback(ctx, s, CollectionFitness, s.primary.Fitness, s.fixtures.Fitness)
}

func (s *FallbackStore) JobCards(ctx context.Context) ([]JobCard, error) {
	return withFallback(ctx, s, CollectionJobCards, s.primary.JobCards, s.fixtures.JobCards)
}

func (s *FallbackStore) Branding(ctx context.Context) ([]BrandingCampaign, error) {
	return withFallback(ctx, s, CollectionBranding, s.primary.Branding, s.fixtures.Branding)
}

func (s *FallbackStore) Mileage(ctx context.Context) ([]MileageRecord, error) {
	return withFallback(ctx, s, CollectionMileage, s.primary.Mileage, s.fixtures.Mileage)
}

func (s *FallbackStore) Cleaning(ctx context.Context) ([]CleaningSlot, error) {
	return withFallback(ctx, s, CollectionCleaning, s.primary.Cleaning, s.fixtures.Cleaning)
}

func (s *FallbackStore) Stabling(ctx context.Context) ([]StablingBay, error) {
	return withFallback(ctx, s, CollectionStabling, s.primary.Stabling, s.fixtures.Stabling)
}

func (s *FallbackStore) Trainsets(ctx context.Context) ([]Trainset, error) {
	return withFallback(ctx, s, CollectionTrainsets, s.primary.Trainsets, s.fixtures.Trainsets)
}

// Trainset looks id up in the primary store. The fixtures answer only when
// the primary failed or holds no trainsets at all.
func (s *FallbackStore) Trainset(ctx context.Context, id string) (Trainset, error) {
	t, err := s.primary.Trainset(ctx, id)
	if err == nil {
		return t, nil
	}
	if errors.Is(err, ErrNotFound) {
		all, listErr := s.primary.Trainsets(ctx)
		if listErr == nil && len(all) > 0 {
			return Trainset{}, err
		}
	}
	return s.fixtures.Trainset(ctx, id)
}
