package tableview

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
)

// Filters is an immutable snapshot of the active filter criteria.
type Filters struct {
	Search     string
	Categories map[string]string
}

// Active reports whether the dimension restricts the result.
func (f Filters) Active(name string) (string, bool) {
	v, ok := f.Categories[name]
	if !ok || v == "" || v == All {
		return "", false
	}
	return v, true
}

// State holds the per-page filter state. The zero value is not usable; build
// one with NewState or FromQuery.
type State struct {
	search     string
	categories map[string]string
	known      map[string]struct{}
}

// NewState returns a state for the given dimensions with every filter disabled.
func NewState(dimensions ...string) *State {
	st := &State{
		categories: make(map[string]string, len(dimensions)),
		known:      make(map[string]struct{}, len(dimensions)),
	}
	for _, name := range dimensions {
		st.known[name] = struct{}{}
		st.categories[name] = All
	}
	return st
}

// StateFor returns an empty state for the schema's dimensions.
func StateFor[R any](s Schema[R]) *State {
	return NewState(s.DimensionNames()...)
}

// SetSearchText replaces the free-text filter.
func (st *State) SetSearchText(text string) {
	st.search = strings.TrimSpace(text)
}

// SetCategoryFilter replaces the value of one dimension. All or "" disables it.
func (st *State) SetCategoryFilter(field, value string) error {
	if _, ok := st.known[field]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDimension, field)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		value = All
	}
	st.categories[field] = value
	return nil
}

// Filters snapshots the current state.
func (st *State) Filters() Filters {
	return Filters{Search: st.search, Categories: maps.Clone(st.categories)}
}

// Query encodes the state as URL query parameters, omitting disabled filters.
func (st *State) Query() url.Values {
	q := url.Values{}
	if st.search != "" {
		q.Set("q", st.search)
	}
	for name, v := range st.categories {
		if v != All {
			q.Set(name, v)
		}
	}
	return q
}

// FromQuery builds a state from "q" and one parameter per dimension. Other
// parameters are ignored.
func FromQuery[R any](s Schema[R], q url.Values) *State {
	st := StateFor(s)
	st.SetSearchText(q.Get("q"))
	for _, name := range s.DimensionNames() {
		if v := q.Get(name); v != "" {
			_ = st.SetCategoryFilter(name, v)
		}
	}
	return st
}
