package api

import (
	"net/http"
	"time"
)

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "alive",
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReadiness reports ready once the controller is wired; the controller
// fails construction if the store is unreachable, so a live controller
// implies a working store.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.ctrl == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "not_ready",
			Version:   Version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ready",
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
