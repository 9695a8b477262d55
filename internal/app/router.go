package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kmrl/opsboard/internal/auth"
	fleethttp "github.com/kmrl/opsboard/internal/fleet/http"
	"github.com/kmrl/opsboard/internal/ingest"
	"github.com/kmrl/opsboard/internal/mlsched"
	"github.com/kmrl/opsboard/internal/observability"
	"github.com/kmrl/opsboard/internal/platform/httpx"
	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/simulation"
	"github.com/kmrl/opsboard/jobs"
	"github.com/kmrl/opsboard/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler       *auth.Handler
	FleetHandler      *fleethttp.Handler
	IngestHandler     *ingest.Handler
	MLHandler         *mlsched.Handler
	SimulationHandler *simulation.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router serving the dashboard, its JSON API and
// the operational probes.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	for _, mw := range BaseStack(params.Metrics) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	appStack := MiddlewareStack(MiddlewareConfig{
		Logger:         logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	})

	r.Group(func(r chi.Router) {
		r.Use(appStack...)
		r.Use(chimw.Logger)

		params.AuthHandler.MountRoutes(r)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}

		r.Route("/api", func(api chi.Router) {
			params.FleetHandler.MountAPI(api)
			if params.MLHandler != nil {
				params.MLHandler.MountReadAPI(api)
			}
			api.Group(func(api chi.Router) {
				api.Use(auth.RequireLogin, writeLimiter())
				if params.IngestHandler != nil {
					params.IngestHandler.MountAPI(api)
				}
				if params.MLHandler != nil {
					params.MLHandler.MountWriteAPI(api)
				}
				if params.SimulationHandler != nil {
					params.SimulationHandler.MountAPI(api)
				}
			})
			api.NotFound(func(w http.ResponseWriter, r *http.Request) {
				httpx.RespondError(w, httpx.ErrNotFound)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLogin)
			params.FleetHandler.MountPages(r)
			if params.MLHandler != nil {
				params.MLHandler.MountPages(r)
			}
			if params.SimulationHandler != nil {
				params.SimulationHandler.MountPages(r)
			}
			if params.IngestHandler != nil {
				r.With(writeLimiter()).Group(params.IngestHandler.MountPages)
			}
		})
	})

	r.NotFound(chi.Chain(appStack...).HandlerFunc(params.FleetHandler.NotFound).ServeHTTP)
	return r
}

// staticCacheHandler lets browsers keep embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
