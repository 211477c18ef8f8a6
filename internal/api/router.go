/**
 * @description
 * This file sets up the HTTP router for the custody service using the
 * go-chi/chi router. It defines the API routes, applies middleware for
 * logging, CORS, and authentication, and maps routes to handler functions.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the custody-service routes.
func NewRouter(h *Handlers, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Protected routes that require an authenticated caller identity.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Route("/cheques", func(r chi.Router) {
			r.Post("/", h.CreateChequeHandler)
			r.Get("/", h.ListChequesHandler)

			r.Route("/{chequeID}", func(r chi.Router) {
				r.Get("/", h.GetChequeHandler)
				r.Post("/dispatch", h.MarkReadyForDispatchHandler)
				r.Post("/forward", h.ForwardToReceptionHandler)
				r.Post("/handover", h.CompleteHandoverHandler)
				r.Post("/cancel", h.CancelChequeHandler)
				r.Get("/audit", h.GetAuditTrailHandler)
				r.Get("/custody", h.GetCustodyLogHandler)
				r.Get("/handover", h.GetHandoverHandler)

				r.Post("/otp", h.GenerateOtpHandler)
				r.Post("/otp/verify", h.VerifyOtpHandler)

				r.Post("/overrides", h.CreateOverrideHandler)
				r.Get("/overrides", h.ListOverridesByChequeHandler)
			})
		})

		r.Route("/overrides", func(r chi.Router) {
			r.Get("/pending", h.ListPendingOverridesHandler)
			r.Get("/{overrideID}", h.GetOverrideHandler)
			r.Post("/{overrideID}/approve", h.ApproveOverrideHandler)
			r.Post("/{overrideID}/reject", h.RejectOverrideHandler)
		})
	})

	return r
}
