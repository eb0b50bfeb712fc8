// Package httpapi exposes profiles and watch state over a JSON HTTP API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/and161185/stremur/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Prefix is the mount point of the versioned API.
const Prefix = "/api/v1"

// Options configures the HTTP API.
type Options struct {
	Profiles       service.ProfileService
	WatchState     service.WatchStateService
	Logger         *zap.Logger
	AllowedOrigins []string
	// Ready is consulted by /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
}

// API holds the handler dependencies.
type API struct {
	profiles service.ProfileService
	watch    service.WatchStateService
	log      *zap.Logger
	ready    func(ctx context.Context) error
}

// New builds the router with middleware, health endpoints and all API routes.
func New(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	a := &API{profiles: opts.Profiles, watch: opts.WatchState, log: log, ready: opts.Ready}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logging(log))
	r.Use(recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.readyz)

	r.Route(Prefix, func(r chi.Router) {
		r.Use(a.authenticate)
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", a.listProfiles)
			r.Post("/", a.createProfile)
			r.Route("/{profileID}", func(r chi.Router) {
				r.Get("/", a.getProfile)
				r.Patch("/", a.updateProfile)
				r.Delete("/", a.deleteProfile)
				r.Post("/pin", a.validatePin)

				r.Get("/history", a.listHistory)
				r.Delete("/history", a.clearHistory)
				r.Get("/history/{mediaType}/{mediaID}", a.getProgress)
				r.Put("/history/{mediaType}/{mediaID}", a.upsertProgress)
				r.Delete("/history/{mediaType}/{mediaID}", a.deleteProgress)

				r.Get("/watchlist", a.listWatchlist)
				r.Get("/watchlist/{mediaType}/{mediaID}", a.inWatchlist)
				r.Put("/watchlist/{mediaType}/{mediaID}", a.addToWatchlist)
				r.Delete("/watchlist/{mediaType}/{mediaID}", a.removeFromWatchlist)
			})
		})
	})
	return r
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ready(ctx); err != nil {
			a.log.Warn("readyz: not ready", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: APIError{
				Code:      "NOT_READY",
				Message:   "storage unavailable",
				RequestID: RequestIDFromCtx(r.Context()),
			}})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
