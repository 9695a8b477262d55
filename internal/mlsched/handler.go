package mlsched

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kmrl/opsboard/internal/auth"
	"github.com/kmrl/opsboard/internal/platform/httpx"
	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/tableview"
	"github.com/kmrl/opsboard/internal/view"
)

// Handler serves the ML endpoints and the analysis page.
type Handler struct {
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, templates *view.Engine, csrf *shared.CSRFManager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, templates: templates, csrf: csrf, validate: validator.New(), logger: logger}
}

// MountReadAPI registers the public read endpoints under the API router.
func (h *Handler) MountReadAPI(r chi.Router) {
	r.Get("/schedules/", h.getSchedule)
	r.Get("/ml/predictions/", h.predictions)
	r.Get("/ml/failures/", h.failures)
	r.Get("/ml/trends/", h.trends)
	r.Get("/ml/suggestions/", h.suggestions)
}

// MountWriteAPI registers the training and generation endpoints.
func (h *Handler) MountWriteAPI(r chi.Router) {
	r.Post("/ml/schedule/train/", h.train)
	r.Post("/ml/schedule/generate/", h.generate)
}

// MountPages registers the ML analysis page and its forms.
func (h *Handler) MountPages(r chi.Router) {
	r.Get("/ml", h.showPage)
	r.Post("/ml/train", h.submitTrain)
	r.Post("/ml/generate", h.submitGenerate)
}

type generateRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type generateResponse struct {
	Status   string       `json:"status"`
	Date     string       `json:"date"`
	Schedule []Assignment `json:"schedule"`
}

func (h *Handler) train(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Train(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req, 4<<10); err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation))
		return
	}
	sched, err := h.service.Generate(r.Context(), req.Date)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, generateResponse{Status: "success", Date: sched.Date, Schedule: sched.Schedule})
}

// respondError answers in the {status, message} shape of the ML API.
// Internal failures are logged and not echoed.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status, _ := httpx.StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("ml request", slog.Any("error", err))
		msg = "schedule engine failed"
	}
	httpx.JSON(w, status, TrainResult{Status: "error", Message: msg})
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.service.Schedule(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		status, _ := httpx.StatusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("load schedule", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

// predictions lists the assignments of the stored schedule as a bare array.
func (h *Handler) predictions(w http.ResponseWriter, r *http.Request) {
	sched, err := h.service.Schedule(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		status, _ := httpx.StatusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("load predictions", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched.Schedule)
}

func (h *Handler) failures(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Insights().Failures)
}

func (h *Handler) trends(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Insights().Trends)
}

func (h *Handler) suggestions(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Insights().Suggestions)
}

type failureRow struct {
	Failure
	Tone tableview.Tone
}

type trendRow struct {
	Trend
	Tone tableview.Tone
}

type suggestionRow struct {
	Suggestion
	Tone tableview.Tone
}

type pageData struct {
	Date        string
	Engine      string
	Reasoning   string
	Table       tableview.Page
	Chart       tableview.Aggregate
	Failures    []failureRow
	Trends      []trendRow
	Suggestions []suggestionRow
	Error       string
}

func (h *Handler) showPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{Engine: h.service.EngineName()}
	sched, err := h.service.Schedule(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		if errors.Is(err, httpx.ErrValidation) {
			data.Error = err.Error()
		} else {
			h.logger.Warn("load schedule", slog.Any("error", err))
			data.Error = "Schedule store unavailable"
		}
		sched, _ = h.service.Schedule(r.Context(), "")
	}
	schema := ScheduleSchema()
	data.Date = sched.Date
	data.Reasoning = sched.Reasoning
	data.Table = tableview.Build(schema, sched.Schedule, tableview.FromQuery(schema, r.URL.Query()))
	if len(data.Table.Aggregates) > 0 {
		data.Chart = data.Table.Aggregates[0]
	}

	in := h.service.Insights()
	for _, f := range in.Failures {
		data.Failures = append(data.Failures, failureRow{Failure: f, Tone: riskTones.Tone(f.Risk)})
	}
	for _, t := range in.Trends {
		data.Trends = append(data.Trends, trendRow{Trend: t, Tone: trendTones.Tone(t.Status)})
	}
	for _, s := range in.Suggestions {
		data.Suggestions = append(data.Suggestions, suggestionRow{Suggestion: s, Tone: riskTones.Tone(s.Priority)})
	}

	if err := h.templates.Render(w, "pages/ml.html", auth.PageData(r, h.csrf, "ML Analysis", data)); err != nil {
		h.logger.Error("render ml page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, date, kind, msg string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(kind, msg)
	}
	target := "/ml"
	if date != "" {
		target += "?date=" + url.QueryEscape(date)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) submitTrain(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Train(r.Context())
	if err != nil {
		h.logger.Error("train", slog.Any("error", err))
		h.redirect(w, r, "", shared.FlashError, "Training failed, please try again")
		return
	}
	h.redirect(w, r, "", shared.FlashSuccess, res.Message)
}

func (h *Handler) submitGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "", shared.FlashError, "Invalid form submission")
		return
	}
	date := r.PostFormValue("date")
	sched, err := h.service.Generate(r.Context(), date)
	if err != nil {
		if errors.Is(err, httpx.ErrValidation) {
			h.redirect(w, r, "", shared.FlashError, "Enter the date as YYYY-MM-DD")
			return
		}
		h.logger.Error("generate schedule", slog.Any("error", err))
		h.redirect(w, r, date, shared.FlashError, "Schedule generation failed, please try again")
		return
	}
	h.redirect(w, r, sched.Date, shared.FlashSuccess,
		fmt.Sprintf("Schedule generated for %s: %d trains assigned", sched.Date, len(sched.Schedule)))
}
