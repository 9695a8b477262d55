package fleethttp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/kmrl/opsboard/internal/platform/httpx"
)

const reportFilename = "report"

func (h *Handler) reportCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	all, err := h.service.Trainsets(ctx)
	if err != nil {
		h.respondAPIError(w, "report csv", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := WriteTrainsetCSV(buf, all); err != nil {
		h.respondAPIError(w, "write report csv", err)
		return
	}
	h.sendCSV(w, reportFilename+".csv", buf.Bytes())
}

func (h *Handler) reportPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		httpx.RespondError(w, fmt.Errorf("%w: PDF export requires a Gotenberg endpoint", httpx.ErrNotImplemented))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*requestTimeout)
	defer cancel()
	all, err := h.service.Trainsets(ctx)
	if err != nil {
		h.respondAPIError(w, "report pdf", err)
		return
	}
	html, err := ReportHTML(all, h.now())
	if err != nil {
		h.respondAPIError(w, "report html", err)
		return
	}
	pdf, err := h.pdf.RenderHTML(ctx, reportFilename+".pdf", html)
	if err != nil {
		h.respondAPIError(w, "render pdf", fmt.Errorf("%w: %v", httpx.ErrUpstream, err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+reportFilename+".pdf")
	if _, err := w.Write(pdf); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) sendCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if _, err := w.Write(data); err != nil {
		h.logError("stream csv", err)
	}
}
