// Package view renders the dashboard pages from the embedded templates.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/tableview"
	"github.com/kmrl/opsboard/internal/view/svg"
	"github.com/kmrl/opsboard/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	User        string
	Data        any
}

var toneColors = map[tableview.Tone]string{
	tableview.ToneSuccess: "#16a34a",
	tableview.ToneWarning: "#d97706",
	tableview.ToneError:   "#dc2626",
	tableview.ToneInfo:    "#0284c7",
	tableview.TonePrimary: "#30d5c8",
	tableview.ToneDefault: "#64748b",
}

// ToneColor returns the fill used for a tone in charts.
func ToneColor(t tableview.Tone) string {
	if c, ok := toneColors[t]; ok {
		return c
	}
	return toneColors[tableview.ToneDefault]
}

// AggregateChart draws the counts of one dimension as a bar chart.
func AggregateChart(agg tableview.Aggregate) template.HTML {
	if len(agg.Counts) == 0 {
		return ""
	}
	bars := make([]svg.Bar, 0, len(agg.Counts))
	for _, c := range agg.Counts {
		bars = append(bars, svg.Bar{Label: c.Value, Value: float64(c.Count), Color: ToneColor(c.Tone)})
	}
	out, err := svg.Bars(0, 0, bars, svg.BarOpts{Title: agg.Label, Description: agg.Label + " distribution"})
	if err != nil {
		return ""
	}
	return out
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"toneClass": func(t tableview.Tone) string {
			if t == "" {
				t = tableview.ToneDefault
			}
			return "chip chip-" + string(t)
		},
		"chart": AggregateChart,
		"active": func(current, prefix string) bool {
			if prefix == "/" {
				return current == "/"
			}
			return len(current) >= len(prefix) && current[:len(prefix)] == prefix
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("view: parse templates: %w", err)
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData and status 200.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a named template into a buffer and writes it with
// status. Nothing is written when execution fails.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("view: template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("view: render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
