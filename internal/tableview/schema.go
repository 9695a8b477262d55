// Package tableview implements the filter and aggregate view model shared by
// every data page: free-text search plus independent categorical filters over
// a flat record collection, and per-value counts for summary cards.
package tableview

import (
	"errors"
	"fmt"
)

// All disables a categorical filter dimension.
const All = "All"

// ErrUnknownDimension is returned for filters on a field the schema does not declare.
var ErrUnknownDimension = errors.New("tableview: unknown dimension")

// Tone is the visual treatment of a categorical value.
type Tone string

const (
	ToneDefault Tone = "default"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
	ToneInfo    Tone = "info"
	TonePrimary Tone = "primary"
)

// ToneMap maps enum values to tones.
type ToneMap map[string]Tone

// Tone looks up value, falling back to ToneDefault for anything undeclared.
func (m ToneMap) Tone(value string) Tone {
	if t, ok := m[value]; ok {
		return t
	}
	return ToneDefault
}

// Dimension is one categorical filter over records of type R.
type Dimension[R any] struct {
	Name   string
	Label  string
	Value  func(R) string
	Values []string
	Tones  ToneMap
}

// Column describes one rendered table column. Text formats the cell at
// render time; Tone, when set, renders the cell as a coloured chip.
type Column[R any] struct {
	Label string
	Text  func(R) string
	Tone  func(R) Tone
}

// Card is a summary statistic shown above a table.
type Card struct {
	Label string
	Value string
	Tone  Tone
}

// Schema parameterises the view model for one record type.
type Schema[R any] struct {
	Name       string
	Title      string
	Subtitle   string
	Search     []func(R) string
	Dimensions []Dimension[R]
	Columns    []Column[R]
	// Summary builds cards from the unfiltered records and their
	// per-dimension aggregates.
	Summary func(all []R, aggs map[string]Aggregate) []Card
	// Key identifies a record, used for detail links.
	Key func(R) string
}

// Dimension returns the dimension called name.
func (s Schema[R]) Dimension(name string) (Dimension[R], bool) {
	for _, d := range s.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension[R]{}, false
}

// DimensionNames lists the declared dimensions in order.
func (s Schema[R]) DimensionNames() []string {
	names := make([]string, 0, len(s.Dimensions))
	for _, d := range s.Dimensions {
		names = append(names, d.Name)
	}
	return names
}

// Validate checks the schema is usable.
func (s Schema[R]) Validate() error {
	seen := make(map[string]struct{}, len(s.Dimensions))
	for _, d := range s.Dimensions {
		if d.Name == "" || d.Value == nil {
			return fmt.Errorf("tableview: schema %s: dimension missing name or accessor", s.Name)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("tableview: schema %s: duplicate dimension %s", s.Name, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	for _, c := range s.Columns {
		if c.Text == nil {
			return fmt.Errorf("tableview: schema %s: column %q has no formatter", s.Name, c.Label)
		}
	}
	return nil
}
