// Package fleethttp serves the fleet collections as JSON and as the
// dashboard's HTML table pages.
package fleethttp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kmrl/opsboard/internal/feed"
	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/platform/httpx"
	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/view"
)

const requestTimeout = 10 * time.Second

// Service is the read contract of the API endpoints.
type Service interface {
	fleet.Store
	fleet.OverviewSource
}

// PDFRenderer converts report HTML to PDF.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, filename string, html []byte) ([]byte, error)
}

// Config wires a Handler.
type Config struct {
	Service   Service
	Feeds     *feed.Feeds
	Templates *view.Engine
	CSRF      *shared.CSRFManager
	PDF       PDFRenderer
	Logger    *slog.Logger
}

// Handler serves the fleet API and pages.
type Handler struct {
	service   Service
	feeds     *feed.Feeds
	templates *view.Engine
	csrf      *shared.CSRFManager
	pdf       PDFRenderer
	logger    *slog.Logger
	csvPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs a Handler. PDF may be nil, in which case the PDF
// report answers 501.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		service:   cfg.Service,
		feeds:     cfg.Feeds,
		templates: cfg.Templates,
		csrf:      cfg.CSRF,
		pdf:       cfg.PDF,
		logger:    logger.With(slog.String("component", "fleethttp")),
		now:       time.Now,
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// respondAPIError maps err to a problem response, logging the ones the
// client cannot act on.
func (h *Handler) respondAPIError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, fleet.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "trainset not found")
		return
	}
	status, _ := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
}
