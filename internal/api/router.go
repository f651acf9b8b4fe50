package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/graphcap/batchqueue/internal/api/middleware"
	"github.com/graphcap/batchqueue/internal/api/response"
	"github.com/graphcap/batchqueue/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	SubmitHandler   http.HandlerFunc
	ListHandler     http.HandlerFunc
	GetHandler      http.HandlerFunc
	CancelHandler   http.HandlerFunc
	ArchiveHandler  http.HandlerFunc
	ReorderHandler  http.HandlerFunc
	ClaimHandler    http.HandlerFunc
	CompleteHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		// Operator/UI surface
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeSubmit))

			r.Post("/api/v1/queue/jobs", orNotImplemented(deps.SubmitHandler))
			r.Get("/api/v1/queue/jobs", orNotImplemented(deps.ListHandler))
			r.Get("/api/v1/queue/jobs/{jobID}", orNotImplemented(deps.GetHandler))
			r.Post("/api/v1/queue/jobs/{jobID}/cancel", orNotImplemented(deps.CancelHandler))
			r.Post("/api/v1/queue/jobs/{jobID}/archive", orNotImplemented(deps.ArchiveHandler))
			r.Post("/api/v1/queue/reorder", orNotImplemented(deps.ReorderHandler))
		})

		// Worker surface
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeWorker))

			r.Post("/api/v1/queue/items/claim", orNotImplemented(deps.ClaimHandler))
			r.Post("/api/v1/queue/items/{itemID}/complete", orNotImplemented(deps.CompleteHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
