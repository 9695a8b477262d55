package tableview

// Option is one entry of a filter select.
type Option struct {
	Value    string
	Selected bool
}

// FilterControl renders one categorical filter.
type FilterControl struct {
	Name    string
	Label   string
	Options []Option
}

// Cell is a formatted table cell.
type Cell struct {
	Text string
	Tone Tone
	Chip bool
}

// Row is one visible record.
type Row struct {
	Key   string
	Cells []Cell
}

// Page is the render-ready projection of a schema, its records and a filter state.
type Page struct {
	Name       string
	Title      string
	Subtitle   string
	Search     string
	Query      string
	Filters    []FilterControl
	Headers    []string
	Rows       []Row
	Cards      []Card
	Aggregates []Aggregate
	Total      int
	Visible    int
}

// Build filters records with st and formats the visible rows. Cards and
// aggregates always describe the whole collection.
func Build[R any](s Schema[R], records []R, st *State) Page {
	if st == nil {
		st = StateFor(s)
	}
	filters := st.Filters()
	visible := ComputeVisible(s, records, filters)
	aggs := AggregateAll(s, records)

	page := Page{
		Name:     s.Name,
		Title:    s.Title,
		Subtitle: s.Subtitle,
		Search:   filters.Search,
		Query:    st.Query().Encode(),
		Total:    len(records),
		Visible:  len(visible),
	}

	for _, d := range s.Dimensions {
		agg := aggs[d.Name]
		page.Aggregates = append(page.Aggregates, agg)
		page.Filters = append(page.Filters, filterControl(d, agg, filters.Categories[d.Name]))
	}

	for _, c := range s.Columns {
		page.Headers = append(page.Headers, c.Label)
	}
	page.Rows = make([]Row, 0, len(visible))
	for _, rec := range visible {
		row := Row{Cells: make([]Cell, 0, len(s.Columns))}
		if s.Key != nil {
			row.Key = s.Key(rec)
		}
		for _, c := range s.Columns {
			cell := Cell{Text: c.Text(rec)}
			if cell.Text == "" {
				cell.Text = "-"
			}
			if c.Tone != nil {
				cell.Tone = c.Tone(rec)
				cell.Chip = true
			}
			row.Cells = append(row.Cells, cell)
		}
		page.Rows = append(page.Rows, row)
	}

	if s.Summary != nil {
		page.Cards = s.Summary(records, aggs)
	}
	return page
}

func filterControl[R any](d Dimension[R], agg Aggregate, current string) FilterControl {
	if current == "" {
		current = All
	}
	fc := FilterControl{Name: d.Name, Label: d.Label}
	seen := map[string]struct{}{All: {}}
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		fc.Options = append(fc.Options, Option{Value: v, Selected: v == current})
	}
	fc.Options = append(fc.Options, Option{Value: All, Selected: current == All})
	for _, v := range d.Values {
		add(v)
	}
	for _, c := range agg.Counts {
		add(c.Value)
	}
	add(current)
	return fc
}

// Table returns the header and formatted cells of the visible rows, for
// exports.
func (p Page) Table() [][]string {
	out := make([][]string, 0, len(p.Rows)+1)
	out = append(out, append([]string(nil), p.Headers...))
	for _, r := range p.Rows {
		line := make([]string, 0, len(r.Cells))
		for _, c := range r.Cells {
			line = append(line, c.Text)
		}
		out = append(out, line)
	}
	return out
}
