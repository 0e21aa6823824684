package api

import (
	"net/http"

	"github.com/fairspace/ceres/internal/server"
)

// Mux is satisfied by http.ServeMux and the traced mux from dd-trace-go.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterRoutes mounts the v1 API and health check on mux.
func RegisterRoutes(mux Mux, srv server.Server) {
	mux.Handle("/api/v1/pids", PidsHandler(srv))
	mux.Handle("/api/v1/pids/", PidHandler(srv))
	mux.Handle("/health", HealthHandler(srv))
}
