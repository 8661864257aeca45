package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(cors.Handler(s.corsOptions()))
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get(s.wsPath(), s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Get("/status", s.handleStatus)
		r.Get("/image", s.handleImage)
		r.Get("/capabilities", s.handleCapabilities)

		r.Route("/print", func(r chi.Router) {
			r.Post("/pause", s.handlePrintCommand(actionPause))
			r.Post("/resume", s.handlePrintCommand(actionResume))
			r.Post("/stop", s.handlePrintCommand(actionStop))
		})

		r.Route("/lights", func(r chi.Router) {
			r.Put("/chamber", s.handleLight(lightChamber))
			r.Put("/work", s.handleLight(lightWork))
		})
		r.Put("/speed", s.handleSpeed)

		r.Route("/ams", func(r chi.Router) {
			r.Get("/", s.handleListAMS)
			r.Get("/{id}", s.handleGetAMS)
		})

		r.Get("/events", s.handleListEvents)
		r.Get("/history", s.handleListHistory)
		r.Get("/audit", s.handleListAudit)
	})

	return r
}

// wsPath returns the configured WebSocket path, defaulting to /ws.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.printer.Status()
	body := map[string]any{
		"status":            "ok",
		"version":           s.version,
		"printer_available": status.Available,
	}
	if status.Reason != "" {
		body["printer_reason"] = status.Reason
	}
	writeJSON(w, http.StatusOK, body)
}
