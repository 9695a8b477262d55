package fleet

import (
	"context"
	"embed"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed fixtures.toml
var fixtureFS embed.FS

// LoadFixtures decodes the embedded demo dataset. Unknown keys are rejected so
// a typo in the file cannot silently drop a column.
func LoadFixtures() (Dataset, error) {
	var d Dataset
	md, err := toml.DecodeFS(fixtureFS, "fixtures.toml", &d)
	if err != nil {
		return Dataset{}, fmt.Errorf("fleet: decode fixtures: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Dataset{}, fmt.Errorf("fleet: decode fixtures: unknown keys %s", strings.Join(keys, ", "))
	}
	return d, nil
}

// FixtureStore serves a fixed dataset. Callers receive copies and may not
// mutate the shared data.
type FixtureStore struct {
	data Dataset
}

// NewFixtureStore loads the embedded dataset.
func NewFixtureStore() (*FixtureStore, error) {
	d, err := LoadFixtures()
	if err != nil {
		return nil, err
	}
	return NewFixtureStoreFrom(d), nil
}

// NewFixtureStoreFrom serves d.
func NewFixtureStoreFrom(d Dataset) *FixtureStore {
	return &FixtureStore{data: d}
}

func (s *FixtureStore) Fitness(context.Context) ([]FitnessCertificate, error) {
	return slices.Clone(s.data.Fitness), nil
}

func (s *FixtureStore) JobCards(context.Context) ([]JobCard, error) {
	return slices.Clone(s.data.JobCards), nil
}

func (s *FixtureStore) Branding(context.Context) ([]BrandingCampaign, error) {
	return slices.Clone(s.data.Branding), nil
}

func (s *FixtureStore) Mileage(context.Context) ([]MileageRecord, error) {
	return slices.Clone(s.data.Mileage), nil
}

func (s *FixtureStore) Cleaning(context.Context) ([]CleaningSlot, error) {
	return slices.Clone(s.data.Cleaning), nil
}

func (s *FixtureStore) Stabling(context.Context) ([]StablingBay, error) {
	return slices.Clone(s.data.Stabling), nil
}

func (s *FixtureStore) Trainsets(context.Context) ([]Trainset, error) {
	return JoinRelations(s.data.Trainsets, s.data.JobCards, s.data.Cleaning, s.data.Branding), nil
}

func (s *FixtureStore) Trainset(ctx context.Context, id string) (Trainset, error) {
	all, _ := s.Trainsets(ctx)
	for _, t := range all {
		if t.TrainID == id {
			return t, nil
		}
	}
	return Trainset{}, ErrNotFound
}

// JoinRelations attaches job cards, the first cleaning slot and the first
// campaign of each trainset by train ID. The inputs are not modified.
func JoinRelations(trainsets []Trainset, jobs []JobCard, cleaning []CleaningSlot, campaigns []BrandingCampaign) []Trainset {
	jobsByTrain := make(map[string][]JobCard)
	for _, j := range jobs {
		jobsByTrain[j.Train] = append(jobsByTrain[j.Train], j)
	}
	cleaningByTrain := make(map[string]CleaningSlot)
	for _, c := range cleaning {
		if _, ok := cleaningByTrain[c.TrainID]; !ok {
			cleaningByTrain[c.TrainID] = c
		}
	}
	campaignByTrain := make(map[string]BrandingCampaign)
	for _, c := range campaigns {
		if _, ok := campaignByTrain[c.Train]; !ok {
			campaignByTrain[c.Train] = c
		}
	}

	out := make([]Trainset, 0, len(trainsets))
	for _, t := range trainsets {
		t.JobCards = slices.Clone(jobsByTrain[t.TrainID])
		if t.JobCards == nil {
			t.JobCards = []JobCard{}
		}
		t.CleaningSlot = nil
		if c, ok := cleaningByTrain[t.TrainID]; ok {
			t.CleaningSlot = &c
		}
		t.BrandingCampaign = nil
		if c, ok := campaignByTrain[t.TrainID]; ok {
			t.BrandingCampaign = &c
		}
		out = append(out, t)
	}
	return out
}
