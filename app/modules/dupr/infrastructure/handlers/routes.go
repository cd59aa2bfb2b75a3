package duprhandlers

import (
	"net/http"

	authdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/auth/domain"
	authhandlers "github.com/Black-And-White-Club/dupr-bridge/app/modules/auth/infrastructure/handlers"
	authjwt "github.com/Black-And-White-Club/dupr-bridge/app/modules/auth/infrastructure/jwt"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/go-chi/chi/v5"
)

// RouteOptions carries the middleware dependencies of the HTTP surface.
type RouteOptions struct {
	Tokens         authjwt.Provider
	AllowedOrigins []string

	// Limiter bounds every /api/dupr request per caller.
	Limiter *authhandlers.CallerRateLimiter

	// SubmitLimiter additionally bounds the routes that call DUPR.
	SubmitLimiter *authhandlers.CallerRateLimiter
}

// Register mounts the webhook, health and organizer routes on r.
func (h *HTTPHandlers) Register(r chi.Router, opts RouteOptions) {
	r.Get("/healthz", h.HandleHealth)

	// Never rate limited or authenticated.
	r.Get("/webhooks/dupr", h.HandleWebhookProbe)
	r.Post("/webhooks/dupr", h.HandleWebhook)

	r.Route("/api/dupr", func(r chi.Router) {
		r.Use(authhandlers.CORSMiddleware(opts.AllowedOrigins))
		// Claims first, so authenticated callers are limited per user.
		r.Use(authhandlers.Authenticate(opts.Tokens))
		if opts.Limiter != nil {
			r.Use(authhandlers.RateLimitMiddleware(opts.Limiter))
		}

		// Diagnostics reports auth failures in its own trace.
		r.With(submitLimit(opts)...).Post("/diagnostics", h.HandleDiagnose)

		r.Group(func(r chi.Router) {
			r.Use(authhandlers.RequireRole(authdomain.RoleOrganizer))
			r.Get("/matches/{matchID}", h.HandleGetMatch)
			r.Put("/matches/{matchID}/eligible", h.HandleSetEligible)
			r.Put("/matches/{matchID}/result", h.HandleFinalizeResult)
			r.Get("/batches/{batchID}/jobs", h.HandleBatchJobs)

			r.Group(func(r chi.Router) {
				r.Use(submitLimit(opts)...)
				r.Post("/submissions", h.HandleSubmit)
				r.Post("/submissions/retry", h.HandleRetry)
				r.Post("/batches/{batchID}/process", h.HandleProcessBatch)
			})
		})
	})
}

func submitLimit(opts RouteOptions) []func(http.Handler) http.Handler {
	if opts.SubmitLimiter == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{authhandlers.RateLimitMiddleware(opts.SubmitLimiter)}
}

// HandleHealth reports liveness, including the job queue when one is wired.
func (h *HTTPHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.queue != nil {
		if err := h.queue.HealthCheck(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "Health check failed", attr.Error(err))
			writeError(w, http.StatusServiceUnavailable, "queue unavailable")
			return
		}
	}
	writeOK(w)
}
