package fleethttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/kmrl/opsboard/internal/auth"
	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/platform/httpx"
)

// ExportLimit bounds report generation per client.
const ExportLimit = 20

// MountAPI registers the read endpoints and reports under the API router.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/stats/overview/", h.overview)
	r.Get("/prediction/{collection}/", h.prediction)
	r.Get("/trainsets/", h.listTrainsets)
	r.Get("/trainsets/{id}/", h.getTrainset)
	// Legacy train audit paths read the same records.
	r.Get("/trains/", h.listTrainsets)
	r.Get("/trains/{id}/", h.getTrainset)
	r.Group(func(r chi.Router) {
		r.Use(exportLimiter())
		r.Get("/reports/csv/", h.reportCSV)
		r.Get("/reports/pdf/", h.reportPDF)
	})
}

// MountPages registers the dashboard and the table pages. Callers wrap the
// router with auth.RequireLogin.
func (h *Handler) MountPages(r chi.Router) {
	r.Get("/", h.dashboard)
	r.Get("/fitness", tablePage(h, fleet.FitnessSchema(), h.feeds.Fitness, false))
	r.Get("/jobcards", tablePage(h, fleet.JobCardSchema(), h.feeds.JobCards, false))
	r.Get("/branding", tablePage(h, fleet.BrandingSchema(), h.feeds.Branding, false))
	r.Get("/mileage", tablePage(h, fleet.MileageSchema(), h.feeds.Mileage, false))
	r.Get("/cleaning", tablePage(h, fleet.CleaningSchema(), h.feeds.Cleaning, false))
	r.Get("/stabling", tablePage(h, fleet.StablingSchema(), h.feeds.Stabling, false))
	r.Get("/trainsets", tablePage(h, fleet.TrainsetSchema(), h.feeds.Trainsets, true))
	r.Get("/trainsets/{id}", h.trainsetPage)
}

// NotFound renders the HTML 404 page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.errorPage(w, r, http.StatusNotFound, "The page you asked for does not exist")
}

func exportLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(
		ExportLimit,
		time.Minute,
		httprate.WithKeyFuncs(auth.RateKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "report export limit reached, try again shortly")
		}),
	)
}
