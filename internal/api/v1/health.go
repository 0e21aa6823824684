package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fairspace/ceres/internal/server"
)

const healthTimeout = 2 * time.Second

type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler reports whether the pid store's backing database answers.
func HealthHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if srv.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := srv.Health.Ping(ctx); err != nil {
				srv.Logger.Error("health check failed", "error", err)
				http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		_ = respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	})
}
