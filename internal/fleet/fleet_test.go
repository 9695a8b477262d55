package fleet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrl/opsboard/internal/numeric"
	"github.com/kmrl/opsboard/internal/tableview"
)

func TestLoadFixtures(t *testing.T) {
	d, err := LoadFixtures()
	require.NoError(t, err)
	assert.Len(t, d.Fitness, 8)
	assert.Len(t, d.JobCards, 8)
	assert.Len(t, d.Branding, 8)
	assert.Len(t, d.Mileage, 8)
	assert.Len(t, d.Cleaning, 8)
	assert.Len(t, d.Stabling, 8)
	assert.Len(t, d.Trainsets, 8)

	assert.Equal(t, numeric.Money(15000), d.Branding[0].Revenue)
	assert.Equal(t, numeric.Distance(125430), d.Mileage[0].Mileage)
	assert.Equal(t, numeric.Percent(35), d.Mileage[0].Variance)
	assert.Equal(t, "CMP_TR-4521", d.Branding[0].CampaignID)
}

func TestFixtureStoreJoinsRelations(t *testing.T) {
	store, err := NewFixtureStore()
	require.NoError(t, err)
	ctx := context.Background()

	ts, err := store.Trainset(ctx, "TR-4521")
	require.NoError(t, err)
	require.Len(t, ts.JobCards, 1)
	assert.Equal(t, "JC-2024-001", ts.JobCards[0].JobID)
	require.NotNil(t, ts.CleaningSlot)
	assert.Equal(t, "Bay 3", ts.CleaningSlot.Bay)
	require.NotNil(t, ts.BrandingCampaign)
	assert.Equal(t, "Metro Express", ts.BrandingCampaign.Campaign)
	assert.Equal(t, 1, ts.PendingJobs())

	_, err = store.Trainset(ctx, "TR-0000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFixtureStoreReturnsCopies(t *testing.T) {
	store, err := NewFixtureStore()
	require.NoError(t, err)
	ctx := context.Background()

	rows, _ := store.Fitness(ctx)
	rows[0].Status = "Tampered"
	again, _ := store.Fitness(ctx)
	assert.Equal(t, FitnessValid, again[0].Status)
}

func TestComputeOverviewFromFixtures(t *testing.T) {
	store, err := NewFixtureStore()
	require.NoError(t, err)
	ctx := context.Background()
	trainsets, _ := store.Trainsets(ctx)
	jobs, _ := store.JobCards(ctx)
	campaigns, _ := store.Branding(ctx)

	o := ComputeOverview(trainsets, jobs, campaigns)
	assert.Equal(t, Overview{TrainsReady: 6, TotalTrains: 8, MaintenanceAlerts: 4, AdDeadlines: 3, SystemHealth: 75}, o)
}

func TestComputeOverviewEdgeCases(t *testing.T) {
	assert.Equal(t, 98.2, ComputeOverview(nil, nil, nil).SystemHealth)

	o := ComputeOverview(
		[]Trainset{{Status: TrainActive}, {Status: TrainActive}, {Status: TrainMaintenance}},
		[]JobCard{{Status: "open"}, {Status: "OPEN"}, {Status: "Closed"}},
		[]BrandingCampaign{{Status: CampaignActive, HoursLeft: 167}, {Status: CampaignActive, HoursLeft: 168}, {Status: CampaignExpired, HoursLeft: 1}},
	)
	assert.Equal(t, 66.7, o.SystemHealth)
	assert.Equal(t, 2, o.MaintenanceAlerts)
	assert.Equal(t, 1, o.AdDeadlines)
}

func TestNormalizeJobStatus(t *testing.T) {
	assert.Equal(t, JobOpen, NormalizeJobStatus("open"))
	assert.Equal(t, JobInProgress, NormalizeJobStatus("in_progress"))
	assert.Equal(t, JobInProgress, NormalizeJobStatus("IN PROGRESS"))
	assert.Equal(t, JobClosed, NormalizeJobStatus(" closed "))
	assert.Equal(t, "Deferred", NormalizeJobStatus("Deferred"))
}

func TestDerivedRows(t *testing.T) {
	ts := Trainset{TrainID: "TR-1", Fitness: FitnessDueSoon, Mileage: 98000, Bay: "A-1", ValidUntil: "2024-02-05 00:00:00"}

	f := DeriveFitness(ts)
	assert.Equal(t, FitnessCertificate{TrainID: "TR-1", Status: FitnessDueSoon, Expiry: "2024-02-05 00:00:00", Type: "Consolidated", Risk: LevelMedium}, f)
	assert.Equal(t, FitnessValid, DeriveFitness(Trainset{}).Status)

	m := DeriveMileage(ts)
	assert.Equal(t, "-2.0%", m.Variance.Format())
	assert.Equal(t, EfficiencyNormal, m.Efficiency)
	assert.Equal(t, EfficiencyLow, DeriveMileage(Trainset{Mileage: 80000}).Efficiency)
	assert.Equal(t, EfficiencyHigh, DeriveMileage(Trainset{Mileage: 100000}).Efficiency)

	assert.Equal(t, BayOccupied, DeriveStabling(ts).Status)
	assert.Equal(t, BayAvailable, DeriveStabling(Trainset{TrainID: "TR-2"}).Status)
}

func TestSchemasAreValid(t *testing.T) {
	require.NoError(t, FitnessSchema().Validate())
	require.NoError(t, JobCardSchema().Validate())
	require.NoError(t, BrandingSchema().Validate())
	require.NoError(t, MileageSchema().Validate())
	require.NoError(t, CleaningSchema().Validate())
	require.NoError(t, StablingSchema().Validate())
	require.NoError(t, TrainsetSchema().Validate())
}

func TestBrandingSummaryCards(t *testing.T) {
	d, err := LoadFixtures()
	require.NoError(t, err)
	page := tableview.Build(BrandingSchema(), d.Branding, nil)
	require.Len(t, page.Cards, 4)
	assert.Equal(t, "6", page.Cards[0].Value)
	assert.Equal(t, "2", page.Cards[1].Value)
	assert.Equal(t, "$114,000", page.Cards[2].Value)
	assert.Equal(t, "$96,500", page.Cards[3].Value)
}

func TestMileageOverallVariance(t *testing.T) {
	rows := []MileageRecord{{Mileage: 110, Target: 100}, {Mileage: 90, Target: 100}, {Mileage: 103, Target: 100}}
	assert.Equal(t, "+1.0%", OverallVariance(rows).Format())
	assert.Equal(t, numeric.Percent(0), OverallVariance(nil))
}

type countingStore struct {
	*FixtureStore
	trainsetCalls atomic.Int32
	fail          error
}

func (s *countingStore) Trainsets(ctx context.Context) ([]Trainset, error) {
	s.trainsetCalls.Add(1)
	if s.fail != nil {
		return nil, s.fail
	}
	return s.FixtureStore.Trainsets(ctx)
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	fixtures, err := NewFixtureStore()
	require.NoError(t, err)
	return &countingStore{FixtureStore: fixtures}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestServiceCachesUntilInvalidated(t *testing.T) {
	_, client := newRedis(t)
	store := newCountingStore(t)
	svc := NewService(store, NewCache(client, time.Minute), nil)
	ctx := context.Background()

	first, err := svc.Trainsets(ctx)
	require.NoError(t, err)
	second, err := svc.Trainsets(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), store.trainsetCalls.Load())
	assert.Equal(t, numeric.Distance(125430), second[0].Mileage)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Trainsets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.trainsetCalls.Load())
}

func TestServiceDoesNotCacheErrors(t *testing.T) {
	_, client := newRedis(t)
	store := newCountingStore(t)
	store.fail = errors.New("db down")
	svc := NewService(store, NewCache(client, time.Minute), nil)
	ctx := context.Background()

	_, err := svc.Trainsets(ctx)
	assert.ErrorIs(t, err, store.fail)

	store.fail = nil
	rows, err := svc.Trainsets(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 8)
}

func TestServiceDegradesWhenRedisIsDown(t *testing.T) {
	mr, client := newRedis(t)
	store := newCountingStore(t)
	svc := NewService(store, NewCache(client, time.Minute), nil)
	mr.Close()

	rows, err := svc.Trainsets(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 8)
}

func TestServiceWithoutCache(t *testing.T) {
	store := newCountingStore(t)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	o, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 75.0, o.SystemHealth)

	ts, err := svc.Trainset(ctx, "TR-4522")
	require.NoError(t, err)
	assert.Equal(t, TrainMaintenance, ts.Status)
	_, err = svc.Trainset(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := svc.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, svc.Invalidate(ctx))
}

func TestCacheListenForInvalidation(t *testing.T) {
	_, client := newRedis(t)
	cache := NewCache(client, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int64, 1)
	require.NoError(t, cache.ListenForInvalidation(ctx, func(v int64) { got <- v }))

	v, err := cache.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))

	select {
	case bumped := <-got:
		assert.Equal(t, v+1, bumped)
	case <-time.After(2 * time.Second):
		t.Fatal("invalidation not delivered")
	}

	key, err := cache.BuildKey(ctx, "fitness")
	require.NoError(t, err)
	assert.Equal(t, "fleet:fitness:2", key)
}
