package simulation

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kmrl/opsboard/internal/auth"
	"github.com/kmrl/opsboard/internal/platform/httpx"
	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/view"
)

// Handler serves the simulation API and page.
type Handler struct {
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	logger    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, templates *view.Engine, csrf *shared.CSRFManager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, templates: templates, csrf: csrf, logger: logger}
}

// MountAPI registers /simulations/run/ under the API router.
func (h *Handler) MountAPI(r chi.Router) {
	r.Post("/simulations/run/", h.run)
}

// MountPages registers the simulation page.
func (h *Handler) MountPages(r chi.Router) {
	r.Get("/simulation", h.showPage)
	r.Post("/simulation", h.submit)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.DecodeJSON(r, &req, 16<<10); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Run(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type pageData struct {
	Templates   []Template
	Description string
	Result      *Result
	Error       string
	MaxLength   int
}

func (h *Handler) showPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageData{Templates: Templates, MaxLength: MaxDescription})
}

// submit renders the assessment in place; nothing is stored, so there is
// nothing to redirect to.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pageData{Templates: Templates, MaxLength: MaxDescription, Error: "Invalid form submission"})
		return
	}
	data := pageData{Templates: Templates, MaxLength: MaxDescription, Description: r.PostFormValue("description")}
	res, err := h.service.Run(r.Context(), Request{Description: data.Description})
	if err != nil {
		if !errors.Is(err, httpx.ErrValidation) {
			h.logger.Error("simulation", slog.Any("error", err))
		}
		data.Error = "Describe the scenario to simulate (at most 2000 characters)"
		h.render(w, r, http.StatusBadRequest, data)
		return
	}
	data.Result = &res
	h.render(w, r, http.StatusOK, data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	if err := h.templates.RenderStatus(w, status, "pages/simulation.html", auth.PageData(r, h.csrf, "Simulation", data)); err != nil {
		h.logger.Error("render simulation", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
