package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter wires up all HTTP routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated: health probe and credential exchange.
		r.Get("/health", s.handleHealth)
		r.Post("/auth/token", s.handleToken)

		// Everything else requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/camera", func(r chi.Router) {
				r.Get("/state", s.handleCameraState)
				r.Get("/owner", s.handleCameraOwner)
				r.Post("/mode", s.handleCameraMode)
				r.Get("/config/{mode}", s.handleCameraConfig)
				r.Patch("/config/{mode}", s.handleCameraConfigPatch)
				r.Get("/ready", s.handleCameraReady)
				r.Post("/permission", s.handleCameraPermission)
				r.Post("/capture", s.handleCameraCapture)
				r.Get("/metrics", s.handleCameraMetrics)
				r.Get("/history", s.handleCameraHistory)
				r.Get("/recovery", s.handleCameraRecovery)
				r.Post("/diagnostics", s.handleCameraDiagnostics)
				r.Get("/journal/transitions", s.handleJournalTransitions)
				r.Get("/journal/resets", s.handleJournalResets)
			})
		})
	})

	// WebSocket upgrade authenticates by single-use ticket, not header.
	path := s.wsCfg.Path
	if path == "" {
		path = "/ws"
	}
	r.Get(path, s.handleWS)

	return r
}
