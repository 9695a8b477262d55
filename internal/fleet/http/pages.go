package fleethttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kmrl/opsboard/internal/auth"
	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/poller"
	"github.com/kmrl/opsboard/internal/tableview"
)

// Banner reports a failed refresh above data that is still shown.
type Banner struct {
	Message string
	Since   time.Time
}

func bannerFor[T any](what string, snap poller.Snapshot[T]) *Banner {
	if snap.Err == nil {
		return nil
	}
	return &Banner{Message: fmt.Sprintf("Could not refresh %s: %v", what, snap.Err), Since: snap.FailedAt}
}

// StatCard is one headline figure of the dashboard.
type StatCard struct {
	Label string
	Value string
	Hint  string
	Tone  tableview.Tone
}

// NavCard links to a data page.
type NavCard struct {
	Title       string
	Description string
	Href        string
}

// NavCards lists the data pages shown on the dashboard.
var NavCards = []NavCard{
	{Title: "Fitness Certificates", Description: "Certificate validity and risk per trainset", Href: "/fitness"},
	{Title: "Job Card Status", Description: "Open and in-progress maintenance work", Href: "/jobcards"},
	{Title: "Branding Priorities", Description: "Advertising campaigns and revenue", Href: "/branding"},
	{Title: "Mileage Balancing", Description: "Distance run against target", Href: "/mileage"},
	{Title: "Cleaning & Detailing", Description: "Cleaning bookings by bay", Href: "/cleaning"},
	{Title: "Stabling Geometry", Description: "Overnight bay occupancy", Href: "/stabling"},
	{Title: "Train Audit", Description: "Every trainset with its related records", Href: "/trainsets"},
}

type dashboardData struct {
	Stats     []StatCard
	Nav       []NavCard
	Banner    *Banner
	UpdatedAt time.Time
	Loading   bool
}

// StatCards formats the overview figures.
func StatCards(o fleet.Overview) []StatCard {
	health := tableview.ToneSuccess
	switch {
	case o.SystemHealth < 75:
		health = tableview.ToneError
	case o.SystemHealth < 90:
		health = tableview.ToneWarning
	}
	return []StatCard{
		{Label: "Trains Ready", Value: strconv.Itoa(o.TrainsReady), Hint: "of " + strconv.Itoa(o.TotalTrains) + " in fleet", Tone: tableview.ToneSuccess},
		{Label: "Maintenance Alerts", Value: strconv.Itoa(o.MaintenanceAlerts), Hint: "open job cards", Tone: tableview.ToneWarning},
		{Label: "Ad Deadlines", Value: strconv.Itoa(o.AdDeadlines), Hint: "campaigns ending within 7 days", Tone: tableview.ToneInfo},
		{Label: "System Health", Value: strconv.FormatFloat(math.Round(o.SystemHealth*10)/10, 'f', 1, 64) + "%", Hint: "share of fleet in service", Tone: health},
	}
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.feeds.Overview.Snapshot()
	data := dashboardData{
		Nav:       NavCards,
		Banner:    bannerFor("fleet statistics", snap),
		UpdatedAt: snap.UpdatedAt,
		Loading:   !snap.Loaded && snap.Err == nil,
	}
	if snap.Loaded {
		data.Stats = StatCards(snap.Value)
	}
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard", data)
}

type tableData struct {
	Page      tableview.Page
	Chart     tableview.Aggregate
	Banner    *Banner
	UpdatedAt time.Time
	Loading   bool
	ExportURL string
	Detail    bool
}

// tablePage serves one polled collection through its schema. The filter
// state comes from the query string; ?format=csv exports the visible rows.
func tablePage[R any](h *Handler, schema tableview.Schema[R], src *poller.Source[[]R], detail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := src.Snapshot()
		q := r.URL.Query()
		page := tableview.Build(schema, snap.Value, tableview.FromQuery(schema, q))

		if q.Get("format") == "csv" {
			var buf bytes.Buffer
			if err := WriteTable(&buf, page.Table()); err != nil {
				h.respondAPIError(w, "export "+schema.Name, err)
				return
			}
			h.sendCSV(w, schema.Name+".csv", buf.Bytes())
			return
		}

		export := url.Values{}
		for k, v := range q {
			export[k] = v
		}
		export.Set("format", "csv")
		data := tableData{
			Page:      page,
			Banner:    bannerFor(schema.Title, snap),
			UpdatedAt: snap.UpdatedAt,
			Loading:   !snap.Loaded && snap.Err == nil,
			ExportURL: r.URL.Path + "?" + export.Encode(),
			Detail:    detail,
		}
		if len(page.Aggregates) > 0 {
			data.Chart = page.Aggregates[0]
		}
		h.render(w, r, http.StatusOK, "pages/table.html", schema.Title, data)
	}
}

type jobRow struct {
	fleet.JobCard
	Tone         tableview.Tone
	PriorityTone tableview.Tone
}

type trainsetData struct {
	Trainset    fleet.Trainset
	FitnessTone tableview.Tone
	StatusTone  tableview.Tone
	Jobs        []jobRow
	CleanTone   tableview.Tone
	BrandTone   tableview.Tone
}

func (h *Handler) trainsetPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	id := chi.URLParam(r, "id")
	t, err := h.service.Trainset(ctx, id)
	if err != nil {
		if errors.Is(err, fleet.ErrNotFound) {
			h.errorPage(w, r, http.StatusNotFound, "No trainset "+id)
			return
		}
		h.logError("trainset page", err)
		h.errorPage(w, r, http.StatusBadGateway, "The trainset could not be loaded, please try again")
		return
	}
	data := trainsetData{
		Trainset:    t,
		FitnessTone: fleet.FitnessTone(t.Fitness),
		StatusTone:  fleet.TrainTone(t.Status),
	}
	if t.CleaningSlot != nil {
		data.CleanTone = fleet.CleaningTone(t.CleaningSlot.Status)
	}
	if t.BrandingCampaign != nil {
		data.BrandTone = fleet.CampaignTone(t.BrandingCampaign.Status)
	}
	for _, j := range t.JobCards {
		data.Jobs = append(data.Jobs, jobRow{JobCard: j, Tone: fleet.JobTone(j.Status), PriorityTone: fleet.LevelTone(j.Priority)})
	}
	h.render(w, r, http.StatusOK, "pages/trainset.html", "Trainset "+t.TrainID, data)
}

type errorData struct {
	Status  int
	Message string
}

func (h *Handler) errorPage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, "pages/error.html", http.StatusText(status), errorData{Status: status, Message: msg})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	if err := h.templates.RenderStatus(w, status, name, auth.PageData(r, h.csrf, title, data)); err != nil {
		h.logError("render "+name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
