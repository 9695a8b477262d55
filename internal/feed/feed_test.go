package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/poller"
)

type failingOverview struct{}

func (failingOverview) Overview(context.Context) (fleet.Overview, error) {
	return fleet.Overview{}, errors.New("connection refused")
}

func waitLoaded(t *testing.T, f *Feeds) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.Fitness.Snapshot().Loaded && f.Trainsets.Snapshot().Loaded && f.Stabling.Snapshot().Loaded
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFeedsPollFixtureStore(t *testing.T) {
	store, err := fleet.NewFixtureStore()
	require.NoError(t, err)
	svc := fleet.NewService(store, nil, nil)

	f := New(Config{Store: svc, Overview: svc, Metrics: poller.NewMetrics(prometheus.NewRegistry())})
	require.NoError(t, f.Start(context.Background()))
	defer f.Stop()
	waitLoaded(t, f)

	want, err := store.Fitness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, f.Fitness.Snapshot().Value)
	assert.Equal(t, DefaultCollectionInterval, f.Fitness.Interval())
	assert.Equal(t, DefaultOverviewInterval, f.Overview.Interval())

	before := f.Fitness.Snapshot().Seq
	require.NoError(t, f.RefreshAll(context.Background()))
	assert.Greater(t, f.Fitness.Snapshot().Seq, before)
}

func TestFeedsOverviewErrorKeepsOthers(t *testing.T) {
	store, err := fleet.NewFixtureStore()
	require.NoError(t, err)
	f := New(Config{Store: store, Overview: failingOverview{}, OverviewInterval: time.Hour, CollectionInterval: time.Hour})
	require.NoError(t, f.Start(context.Background()))
	defer f.Stop()
	waitLoaded(t, f)

	require.Eventually(t, func() bool { return f.Overview.Snapshot().Err != nil }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, f.Overview.Snapshot().Loaded)
	assert.NoError(t, f.RefreshAll(context.Background()), "fetch failures stay on the snapshot")
}

func TestRefreshAllBeforeStart(t *testing.T) {
	store, err := fleet.NewFixtureStore()
	require.NoError(t, err)
	f := New(Config{Store: store, Overview: failingOverview{}})
	assert.ErrorIs(t, f.RefreshAll(context.Background()), poller.ErrNotStarted)
	f.Stop()
}
