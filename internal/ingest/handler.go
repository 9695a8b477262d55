package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kmrl/opsboard/internal/auth"
	"github.com/kmrl/opsboard/internal/platform/httpx"
	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/view"
)

// FileField is the multipart field carrying the upload.
const FileField = "file"

const chooseFileMessage = "Please choose a CSV file to upload"

var errNoCSV = fmt.Errorf("%w: please choose a CSV file to upload", httpx.ErrValidation)

// Handler serves the upload form and the ingest API.
type Handler struct {
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	maxBytes  int64
	logger    *slog.Logger
}

// NewHandler constructs a Handler. maxBytes caps the request body.
func NewHandler(service *Service, templates *view.Engine, csrf *shared.CSRFManager, maxBytes int64, logger *slog.Logger) *Handler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, templates: templates, csrf: csrf, maxBytes: maxBytes, logger: logger}
}

// MountAPI registers /ingest/upload/ under the API router.
func (h *Handler) MountAPI(r chi.Router) {
	r.Post("/ingest/upload/", h.apiUpload)
}

// MountPages registers the HTML upload form.
func (h *Handler) MountPages(r chi.Router) {
	r.Get("/upload", h.showUpload)
	r.Post("/upload", h.submitUpload)
}

type uploadPageData struct {
	Columns  []string
	MaxBytes string
	Field    string
}

func (h *Handler) showUpload(w http.ResponseWriter, r *http.Request) {
	data := uploadPageData{Columns: Columns, MaxBytes: fmt.Sprintf("%d MiB", h.maxBytes>>20), Field: FileField}
	if err := h.templates.Render(w, "pages/upload.html", auth.PageData(r, h.csrf, "Input Upload", data)); err != nil {
		h.logger.Error("render upload", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// openCSV returns the uploaded file after checking it is present and named
// *.csv.
func (h *Handler) openCSV(w http.ResponseWriter, r *http.Request) (multipart.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("%w: file exceeds %d bytes", httpx.ErrValidation, h.maxBytes)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, "", errNoCSV
		}
		return nil, "", fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	file, header, err := r.FormFile(FileField)
	if err != nil {
		return nil, "", errNoCSV
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		_ = file.Close()
		return nil, "", errNoCSV
	}
	return file, header.Filename, nil
}

func (h *Handler) apiUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := h.openCSV(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer file.Close()

	res, err := h.service.Ingest(r.Context(), file)
	if err != nil {
		h.respondIngestError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) respondIngestError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		httpx.ProblemBody(w, http.StatusBadRequest, struct {
			httpx.ProblemDetail
			Rows []RowError `json:"rows"`
		}{httpx.ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: verr.Error()}, verr.Rows})
		return
	}
	status, _ := httpx.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("ingest", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) submitUpload(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	flash := func(kind, msg string) {
		if sess != nil {
			sess.AddFlash(kind, msg)
		}
		http.Redirect(w, r, "/upload", http.StatusSeeOther)
	}

	file, name, err := h.openCSV(w, r)
	if errors.Is(err, errNoCSV) {
		flash(shared.FlashError, chooseFileMessage)
		return
	}
	if err != nil {
		flash(shared.FlashError, err.Error())
		return
	}
	defer file.Close()

	res, err := h.service.Ingest(r.Context(), file)
	if err != nil {
		status, _ := httpx.StatusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("ingest", slog.Any("error", err))
			flash(shared.FlashError, "Upload failed, please try again")
			return
		}
		flash(shared.FlashError, err.Error())
		return
	}
	flash(shared.FlashSuccess, fmt.Sprintf("Uploaded %s: %d trainsets, %d job cards, %d campaigns, %d cleaning slots",
		name, res.Inserted.Trainsets, res.Inserted.JobCards, res.Inserted.BrandingCampaigns, res.Inserted.CleaningSlots))
}
