package server

import (
	"net/http"
	"time"
)

type healthCheck struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type healthReport struct {
	Healthy bool                   `json:"healthy"`
	Checks  map[string]healthCheck `json:"checks"`
}

// Ping is the bare liveness probe.
func (s *Server) Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, "pong")
	}
}

// Health runs the structured checks; any failure degrades the whole
// report to 503.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{Healthy: true, Checks: map[string]healthCheck{}}

		dbCheck := healthCheck{Healthy: true}
		if err := s.db.PingContext(r.Context()); err != nil {
			dbCheck = healthCheck{Healthy: false, Error: err.Error()}
			report.Healthy = false
		}
		report.Checks["database"] = dbCheck

		cacheCheck := healthCheck{Healthy: true}
		probe := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		if err := s.images.Write(r.Context(), ".healthcheck", probe); err != nil {
			cacheCheck = healthCheck{Healthy: false, Error: err.Error()}
			report.Healthy = false
		}
		report.Checks["image_cache"] = cacheCheck

		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		writeResponse(w, status, report)
	}
}
