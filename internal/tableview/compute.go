package tableview

import (
	"fmt"
	"strings"
)

// ComputeVisible returns the records matching every active predicate, in
// source order. Category keys that name no dimension of the schema are ignored.
func ComputeVisible[R any](s Schema[R], records []R, f Filters) []R {
	needle := strings.ToLower(strings.TrimSpace(f.Search))

	preds := make([]predicate[R], 0, len(f.Categories))
	for _, d := range s.Dimensions {
		if v, ok := f.Active(d.Name); ok {
			preds = append(preds, predicate[R]{value: d.Value, expect: v})
		}
	}

	out := make([]R, 0, len(records))
	for _, rec := range records {
		if needle != "" && !matchesSearch(s.Search, rec, needle) {
			continue
		}
		ok := true
		for _, p := range preds {
			if p.value(rec) != p.expect {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

type predicate[R any] struct {
	value  func(R) string
	expect string
}

func matchesSearch[R any](fields []func(R) string, rec R, needle string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field(rec)), needle) {
			return true
		}
	}
	return false
}

// Count is the number of records carrying one value of a dimension.
type Count struct {
	Value string
	Count int
	Tone  Tone
}

// Aggregate partitions a collection by one dimension.
type Aggregate struct {
	Field  string
	Label  string
	Total  int
	Counts []Count
}

// Get returns the count for value, zero when absent.
func (a Aggregate) Get(value string) int {
	for _, c := range a.Counts {
		if c.Value == value {
			return c.Count
		}
	}
	return 0
}

// Map returns the counts keyed by value. Only values present in the data appear.
func (a Aggregate) Map() map[string]int {
	m := make(map[string]int, len(a.Counts))
	for _, c := range a.Counts {
		m[c.Value] = c.Count
	}
	return m
}

// ComputeAggregates counts records per distinct value of field. Declared enum
// values come first in declaration order, then undeclared values in the order
// they were first seen.
func ComputeAggregates[R any](s Schema[R], records []R, field string) (Aggregate, error) {
	d, ok := s.Dimension(field)
	if !ok {
		return Aggregate{}, fmt.Errorf("%w: %s", ErrUnknownDimension, field)
	}
	counts := make(map[string]int)
	seen := make([]string, 0)
	for _, rec := range records {
		v := d.Value(rec)
		if _, ok := counts[v]; !ok {
			seen = append(seen, v)
		}
		counts[v]++
	}

	agg := Aggregate{Field: d.Name, Label: d.Label, Total: len(records)}
	emitted := make(map[string]struct{}, len(counts))
	emit := func(v string) {
		n, ok := counts[v]
		if !ok {
			return
		}
		if _, done := emitted[v]; done {
			return
		}
		emitted[v] = struct{}{}
		agg.Counts = append(agg.Counts, Count{Value: v, Count: n, Tone: d.Tones.Tone(v)})
	}
	for _, v := range d.Values {
		emit(v)
	}
	for _, v := range seen {
		emit(v)
	}
	return agg, nil
}

// AggregateAll computes an aggregate for every dimension of the schema.
func AggregateAll[R any](s Schema[R], records []R) map[string]Aggregate {
	out := make(map[string]Aggregate, len(s.Dimensions))
	for _, d := range s.Dimensions {
		agg, _ := ComputeAggregates(s, records, d.Name)
		out[d.Name] = agg
	}
	return out
}
