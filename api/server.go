/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. Timeout:    Hard per-request deadline
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/*        Accounts, rewards, transfers, unlocks, ranking, admin
  /ws           Websocket change-signal stream
  /metrics      Prometheus scrape endpoint
  /health       Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - ws.go: Websocket session handling
  - cmd/server/main.go: Server startup
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ncoin/reward-engine/notify"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, hub *notify.Hub) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	// API routes. The websocket stream below is long-lived, so the hard
	// request deadline applies only here.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/login", h.Login)
		r.Get("/balance/{nickname}", h.GetBalance)
		r.Get("/history/{nickname}", h.GetHistory)
		r.Get("/user-exists/{nickname}", h.UserExists)

		r.Post("/quest", h.CompleteQuest)
		r.Post("/send", h.Send)

		r.Get("/quiz-rights/{nickname}", h.GetRights)
		r.Post("/claim-quiz", h.Claim)

		r.Get("/ranking", h.GetRanking)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/distribute", h.Distribute)
			r.Post("/delete", h.DeleteAccount)
		})
	})

	// Change-signal stream for connected clients.
	ws := &WSHandler{Hub: hub}
	r.With(middleware.NoCache).Get("/ws", ws.Serve)

	// Operational endpoints
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", h.Health)

	return r
}
