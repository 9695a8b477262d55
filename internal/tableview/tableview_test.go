package tableview

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type train struct {
	ID      string
	Status  string
	Fitness string
	Depot   string
}

func trainSchema() Schema[train] {
	return Schema[train]{
		Name:  "trains",
		Title: "Trains",
		Search: []func(train) string{
			func(t train) string { return t.ID },
			func(t train) string { return t.Depot },
		},
		Dimensions: []Dimension[train]{
			{
				Name:   "status",
				Label:  "Status",
				Value:  func(t train) string { return t.Status },
				Values: []string{"Active", "Maintenance", "Expired"},
				Tones:  ToneMap{"Active": ToneSuccess, "Maintenance": ToneWarning, "Expired": ToneError},
			},
			{
				Name:  "fitness",
				Label: "Fitness",
				Value: func(t train) string { return t.Fitness },
			},
		},
		Columns: []Column[train]{
			{Label: "Train ID", Text: func(t train) string { return t.ID }},
			{Label: "Depot", Text: func(t train) string { return t.Depot }},
			{
				Label: "Status",
				Text:  func(t train) string { return t.Status },
				Tone:  func(t train) Tone { return ToneMap{"Active": ToneSuccess}.Tone(t.Status) },
			},
		},
		Summary: func(all []train, aggs map[string]Aggregate) []Card {
			return []Card{{Label: "Active", Value: "n", Tone: ToneSuccess}}
		},
		Key: func(t train) string { return t.ID },
	}
}

func sampleTrains() []train {
	return []train{
		{ID: "KMRL-001", Status: "Active", Fitness: "Valid", Depot: "Muttom"},
		{ID: "KMRL-002", Status: "Expired", Fitness: "Expired", Depot: "Aluva"},
		{ID: "KMRL-003", Status: "Active", Fitness: "Due Soon", Depot: "Muttom"},
		{ID: "KMRL-004", Status: "Maintenance", Fitness: "Valid", Depot: "Petta"},
	}
}

func ids(rs []train) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestComputeVisibleCategoryFilterPreservesOrder(t *testing.T) {
	s := trainSchema()
	records := sampleTrains()[:3]
	st := StateFor(s)
	require.NoError(t, st.SetCategoryFilter("status", "Active"))

	visible := ComputeVisible(s, records, st.Filters())
	assert.Equal(t, []string{"KMRL-001", "KMRL-003"}, ids(visible))

	agg, err := ComputeAggregates(s, records, "status")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Active": 2, "Expired": 1}, agg.Map())
	assert.Equal(t, 0, agg.Get("Maintenance"))
}

func TestComputeVisibleAllReturnsEverything(t *testing.T) {
	s := trainSchema()
	records := sampleTrains()
	st := StateFor(s)
	assert.Equal(t, ids(records), ids(ComputeVisible(s, records, st.Filters())))

	require.NoError(t, st.SetCategoryFilter("status", "Active"))
	require.NoError(t, st.SetCategoryFilter("status", ""))
	assert.Len(t, ComputeVisible(s, records, st.Filters()), len(records))
}

func TestComputeVisibleConjunction(t *testing.T) {
	s := trainSchema()
	records := sampleTrains()
	st := StateFor(s)
	st.SetSearchText("  muttom ")
	require.NoError(t, st.SetCategoryFilter("fitness", "Due Soon"))

	visible := ComputeVisible(s, records, st.Filters())
	assert.Equal(t, []string{"KMRL-003"}, ids(visible))

	for _, r := range visible {
		assert.True(t, strings.Contains(strings.ToLower(r.Depot), "muttom"))
		assert.Equal(t, "Due Soon", r.Fitness)
	}

	st.SetSearchText("nothing-matches")
	assert.Empty(t, ComputeVisible(s, records, st.Filters()))
}

func TestComputeVisibleIdempotent(t *testing.T) {
	s := trainSchema()
	st := StateFor(s)
	st.SetSearchText("kmrl")
	require.NoError(t, st.SetCategoryFilter("status", "Active"))

	once := ComputeVisible(s, sampleTrains(), st.Filters())
	twice := ComputeVisible(s, once, st.Filters())
	assert.Equal(t, once, twice)
}

func TestComputeVisibleIgnoresUnknownCategories(t *testing.T) {
	s := trainSchema()
	f := Filters{Categories: map[string]string{"colour": "red"}}
	assert.Len(t, ComputeVisible(s, sampleTrains(), f), 4)
}

func TestAggregateCountsSumToTotal(t *testing.T) {
	s := trainSchema()
	records := append(sampleTrains(), train{ID: "KMRL-005", Status: "Standby"})

	for _, field := range s.DimensionNames() {
		agg, err := ComputeAggregates(s, records, field)
		require.NoError(t, err)
		sum := 0
		for _, c := range agg.Counts {
			sum += c.Count
		}
		assert.Equal(t, len(records), sum, field)
		assert.Equal(t, len(records), agg.Total)
	}

	agg, err := ComputeAggregates(s, records, "status")
	require.NoError(t, err)
	var order []string
	for _, c := range agg.Counts {
		order = append(order, c.Value)
	}
	assert.Equal(t, []string{"Active", "Maintenance", "Expired", "Standby"}, order)
	assert.Equal(t, ToneDefault, agg.Counts[3].Tone)
}

func TestAggregateEmptyCollection(t *testing.T) {
	agg, err := ComputeAggregates(trainSchema(), nil, "status")
	require.NoError(t, err)
	assert.Empty(t, agg.Counts)
	assert.Zero(t, agg.Total)
}

func TestUnknownDimension(t *testing.T) {
	s := trainSchema()
	_, err := ComputeAggregates(s, sampleTrains(), "colour")
	assert.ErrorIs(t, err, ErrUnknownDimension)

	st := StateFor(s)
	assert.ErrorIs(t, st.SetCategoryFilter("colour", "red"), ErrUnknownDimension)
}

func TestToneFallback(t *testing.T) {
	m := ToneMap{"Valid": ToneSuccess}
	assert.Equal(t, ToneSuccess, m.Tone("Valid"))
	assert.Equal(t, ToneDefault, m.Tone("Unheard Of"))
	assert.Equal(t, ToneDefault, ToneMap(nil).Tone("x"))
}

func TestStateQueryRoundTrip(t *testing.T) {
	s := trainSchema()
	st := StateFor(s)
	st.SetSearchText("aluva")
	require.NoError(t, st.SetCategoryFilter("status", "Expired"))

	q := st.Query()
	assert.Equal(t, "aluva", q.Get("q"))
	assert.Equal(t, "Expired", q.Get("status"))
	assert.Empty(t, q.Get("fitness"))

	back := FromQuery(s, url.Values{"q": {"aluva"}, "status": {"Expired"}, "page": {"2"}})
	assert.Equal(t, st.Filters(), back.Filters())
}

func TestStateFiltersSnapshotIsIsolated(t *testing.T) {
	st := StateFor(trainSchema())
	snap := st.Filters()
	require.NoError(t, st.SetCategoryFilter("status", "Active"))
	assert.Equal(t, All, snap.Categories["status"])
}

func TestBuildPage(t *testing.T) {
	s := trainSchema()
	require.NoError(t, s.Validate())

	st := FromQuery(s, url.Values{"status": {"Active"}})
	page := Build(s, sampleTrains(), st)

	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Visible)
	assert.Equal(t, []string{"Train ID", "Depot", "Status"}, page.Headers)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "KMRL-001", page.Rows[0].Key)
	assert.True(t, page.Rows[0].Cells[2].Chip)
	assert.Equal(t, ToneSuccess, page.Rows[0].Cells[2].Tone)
	assert.Len(t, page.Cards, 1)
	assert.Equal(t, "status=Active", page.Query)

	require.Len(t, page.Filters, 2)
	status := page.Filters[0]
	assert.Equal(t, All, status.Options[0].Value)
	assert.False(t, status.Options[0].Selected)
	assert.Equal(t, Option{Value: "Active", Selected: true}, status.Options[1])

	require.Len(t, page.Aggregates, 2)
	assert.Equal(t, 2, page.Aggregates[0].Get("Active"))

	table := page.Table()
	require.Len(t, table, 3)
	assert.Equal(t, []string{"KMRL-003", "Muttom", "Active"}, table[2])
}

func TestBuildPageKeepsUnlistedSelection(t *testing.T) {
	s := trainSchema()
	page := Build(s, sampleTrains(), FromQuery(s, url.Values{"status": {"Retired"}}))
	assert.Zero(t, page.Visible)
	last := page.Filters[0].Options[len(page.Filters[0].Options)-1]
	assert.Equal(t, Option{Value: "Retired", Selected: true}, last)
}

func TestValidateRejectsBrokenSchema(t *testing.T) {
	s := trainSchema()
	s.Dimensions = append(s.Dimensions, s.Dimensions[0])
	assert.Error(t, s.Validate())

	s = trainSchema()
	s.Columns = append(s.Columns, Column[train]{Label: "broken"})
	assert.Error(t, s.Validate())
}
