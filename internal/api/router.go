// Package api exposes the query layer over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/risingfruit/forage/internal/metrics"
)

// Deps holds what the router needs.
type Deps struct {
	Query Querier
	// Cache serves the type routes; nil disables caching.
	Cache       *ResponseCache
	CORSOrigins []string
	// StaticDir holds the built frontend; empty disables it.
	StaticDir string
	Logger    *zap.Logger
}

// NewRouter builds the HTTP handler for the API, metrics and frontend.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.L().Named("http")
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := NewHandlers(d.Query)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/stats", h.Stats)
		r.Get("/locations", h.Locations)
		r.Get("/locations/{id}", h.Location)
		r.With(Cached(d.Cache)).Get("/types", h.Types)
		r.With(Cached(d.Cache)).Get("/types/{id}", h.Type)
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if d.StaticDir != "" {
		r.NotFound(newSPAHandler(d.StaticDir).ServeHTTP)
	}
	return r
}
