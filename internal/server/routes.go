package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all API routes. Session and chat routes require a
// caller identity; health and metrics do not.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.healthz)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Route("/session", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Get("/", s.getSessions)
			r.Delete("/", s.deleteSession)
			r.Post("/abort", s.abortSession)
		})

		r.Post("/chat", s.chat)

		// Global observer stream (SSE).
		r.Get("/event", s.globalEvents)
	})
}
