package httpapi

import (
	"context"
	"net/http"
	"time"
)

const readyTimeout = 2 * time.Second

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

type readyResponse struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "unavailable", Failed: failed})
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Status: "ready"})
}
