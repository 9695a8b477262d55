package fleethttp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/platform/httpx"
)

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	o, err := h.service.Overview(ctx)
	if err != nil {
		h.respondAPIError(w, "overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) prediction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	collection := chi.URLParam(r, "collection")
	var (
		data any
		err  error
	)
	switch collection {
	case fleet.CollectionFitness:
		data, err = h.service.Fitness(ctx)
	case fleet.CollectionJobCards:
		data, err = h.service.JobCards(ctx)
	case fleet.CollectionBranding:
		data, err = h.service.Branding(ctx)
	case fleet.CollectionMileage:
		data, err = h.service.Mileage(ctx)
	case fleet.CollectionCleaning:
		data, err = h.service.Cleaning(ctx)
	case fleet.CollectionStabling:
		data, err = h.service.Stabling(ctx)
	default:
		httpx.RespondError(w, fmt.Errorf("%w: unknown collection %q", httpx.ErrNotFound, collection))
		return
	}
	if err != nil {
		h.respondAPIError(w, "prediction "+collection, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) listTrainsets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	all, err := h.service.Trainsets(ctx)
	if err != nil {
		h.respondAPIError(w, "list trainsets", err)
		return
	}
	httpx.JSON(w, http.StatusOK, all)
}

func (h *Handler) getTrainset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	t, err := h.service.Trainset(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.respondAPIError(w, "get trainset", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}
