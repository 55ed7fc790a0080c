package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthProbeTimeout bounds each subsystem health probe.
const healthProbeTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.withRequestID)
	r.Use(s.withLogging)
	r.Use(s.withRecovery)
	r.Use(s.withCORS)
	r.Use(s.withBodyLimit)

	// API v1 routes. Element ids carry a slash, so paths use the same
	// encoded form as the MQTT topics (72623/119 -> 72623_119).
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)
		r.Get("/energy", s.handleEnergy)
		r.Post("/refresh", s.handleRefresh)

		r.Route("/elements", func(r chi.Router) {
			r.Get("/", s.handleListElements)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetElement)
				r.Post("/command", s.handleCommand)
				r.Get("/history", s.handleGetHistory)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// healthProbe reports one subsystem's health.
type healthProbe struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// handleHealth returns liveness plus per-subsystem health. A degraded
// subsystem turns the response into a 503 so probes can alert on it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	subsystems := make(map[string]healthProbe, len(s.health))
	healthy := true

	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		err := checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			subsystems[name] = healthProbe{Error: err.Error()}
			healthy = false
			continue
		}
		subsystems[name] = healthProbe{OK: true}
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"subsystems": subsystems,
	})
}
