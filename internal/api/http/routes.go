package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"poolstats/internal/api/http/mw"
	"poolstats/internal/metrics"
)

func BuildRouter(
	api *API,
	logMW *mw.LoggingMiddleware,
	jwtMW *mw.JWTMiddleware,
	corsMW *mw.CORSMiddleware,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if logMW != nil {
		r.Use(logMW.Handler)
	}
	if corsMW != nil {
		r.Use(corsMW.Handler())
	}

	// tech endpoints, no auth
	r.Get("/healthz", api.Healthz)
	r.Get("/readiness", api.Readiness)
	r.Mount("/metrics", metrics.Handler())

	// data endpoints behind jwt when enabled
	protected := chi.NewRouter()
	if jwtMW != nil {
		protected.Use(jwtMW.Handler)
	}

	protected.Route("/api", func(apiR chi.Router) {
		apiR.Get("/overview", api.Overview)
		apiR.Get("/financials", api.Financials)
		apiR.Get("/usage", api.Usage)
		apiR.Route("/pools", func(pp chi.Router) {
			pp.Get("/{id}/stats", api.PoolStats)
		})
	})

	r.Mount("/", protected)
	return r
}
