package api

import (
	"net/http"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ReadinessResponse represents the JSON response for the readiness check endpoint.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady verifies that the user store is reachable. Unlike /healthz
// (liveness) it returns 503 when a dependency check fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := ReadinessResponse{Status: "ok", Checks: map[string]string{}}

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Checks["database"] = "error"
			s.logger.ErrorContext(ctx, "readiness check failed", appendRequestID(ctx, []any{
				"check", "database",
				"error", err.Error(),
			})...)
		} else {
			resp.Checks["database"] = "ok"
		}
	}

	if resp.Status == "ok" {
		writeJSON(w, http.StatusOK, resp)
	} else {
		writeJSON(w, http.StatusServiceUnavailable, resp)
	}
}
