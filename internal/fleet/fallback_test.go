package fleet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{ *FixtureStore }

func (brokenStore) Fitness(context.Context) ([]FitnessCertificate, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Trainset(context.Context, string) (Trainset, error) {
	return Trainset{}, errors.New("connection refused")
}

func TestFallbackStoreServesFixturesWhenEmpty(t *testing.T) {
	fixtures, err := NewFixtureStore()
	require.NoError(t, err)
	empty := NewFixtureStoreFrom(Dataset{})
	s := NewFallbackStore(empty, fixtures, nil)

	rows, err := s.Fitness(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 8)

	ts, err := s.Trainset(context.Background(), "TR-4521")
	require.NoError(t, err)
	assert.Equal(t, "Metro Express 2020", ts.Name)
}

func TestFallbackStorePrefersPrimary(t *testing.T) {
	fixtures, err := NewFixtureStore()
	require.NoError(t, err)
	primary := NewFixtureStoreFrom(Dataset{
		Mileage:   []MileageRecord{{TrainID: "KMRL-9"}},
		Trainsets: []Trainset{{TrainID: "KMRL-9"}},
	})
	s := NewFallbackStore(primary, fixtures, nil)

	rows, err := s.Mileage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []MileageRecord{{TrainID: "KMRL-9"}}, rows)

	_, err = s.Trainset(context.Background(), "TR-4521")
	assert.ErrorIs(t, err, ErrNotFound, "a populated primary is authoritative")
}

func TestFallbackStoreOnPrimaryError(t *testing.T) {
	fixtures, err := NewFixtureStore()
	require.NoError(t, err)
	s := NewFallbackStore(brokenStore{fixtures}, fixtures, nil)

	rows, err := s.Fitness(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	_, err = s.Trainset(context.Background(), "TR-4522")
	assert.NoError(t, err)
}
