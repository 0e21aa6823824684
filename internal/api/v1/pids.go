package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fairspace/ceres/internal/server"
	"github.com/fairspace/ceres/pkg/pid"
)

// PidsPostRequest is the body of POST /api/v1/pids. ID and UUID are accepted
// for compatibility with older clients and are always replaced by a new id.
type PidsPostRequest struct {
	ID   string `json:"id,omitempty"`
	UUID string `json:"uuid,omitempty"`
	URI  string `json:"uri"`
}

// PidsHandler registers pids and looks them up by uri.
//
//	POST /api/v1/pids          body {"uri": "..."}
//	GET  /api/v1/pids?uri=...
func PidsHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logArgs := []any{
			"method", r.Method,
			"path", r.URL.Path,
		}

		switch r.Method {
		case "POST":
			req := &PidsPostRequest{}
			if err := decodeRequest(r, req); err != nil {
				srv.Logger.Warn("error decoding request",
					append([]any{
						"error", err,
					}, logArgs...)...)
				http.Error(w, fmt.Sprintf("Bad request: %q", err),
					http.StatusBadRequest)
				return
			}

			candidate := pid.Pid{URI: req.URI}
			callerID := req.ID
			if callerID == "" {
				callerID = req.UUID
			}
			if callerID != "" {
				// A malformed id is ignored just like a well-formed one.
				if id, err := pid.ParseUUID(callerID); err == nil {
					candidate.ID = id
				}
			}

			p, err := srv.PidService.Add(r.Context(), candidate)
			if err != nil {
				respondPidError(srv, w, err, logArgs)
				return
			}

			if err := respondJSON(w, http.StatusCreated, p); err != nil {
				srv.Logger.Error("error encoding pid response",
					append([]any{
						"error", err,
					}, logArgs...)...)
			}

		case "GET":
			uri := r.URL.Query().Get("uri")
			if uri == "" {
				http.Error(w, "Bad request: uri query parameter is required",
					http.StatusBadRequest)
				return
			}

			p, err := srv.PidService.FindByURI(r.Context(), uri)
			if err != nil {
				respondPidError(srv, w, err, append(logArgs, "uri", uri))
				return
			}

			if err := respondJSON(w, http.StatusOK, p); err != nil {
				srv.Logger.Error("error encoding pid response",
					append([]any{
						"error", err,
					}, logArgs...)...)
			}

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
	})
}

// PidHandler reads and deletes a single pid.
//
//	GET    /api/v1/pids/{id}
//	DELETE /api/v1/pids/{id}
func PidHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logArgs := []any{
			"method", r.Method,
			"path", r.URL.Path,
		}

		rawID, err := parseResourceIDFromURL(r.URL.Path, "pids")
		if err != nil {
			srv.Logger.Warn("error parsing pid id from path",
				append([]any{
					"error", err,
				}, logArgs...)...)
			http.Error(w, "Bad request: pid id is required", http.StatusBadRequest)
			return
		}
		id, err := pid.ParseUUID(rawID)
		if err != nil {
			http.Error(w, fmt.Sprintf("Bad request: invalid pid id %q", rawID),
				http.StatusBadRequest)
			return
		}
		logArgs = append(logArgs, "id", id)

		switch r.Method {
		case "GET":
			p, err := srv.PidService.FindByID(r.Context(), id)
			if err != nil {
				respondPidError(srv, w, err, logArgs)
				return
			}

			if err := respondJSON(w, http.StatusOK, p); err != nil {
				srv.Logger.Error("error encoding pid response",
					append([]any{
						"error", err,
					}, logArgs...)...)
			}

		case "DELETE":
			if err := srv.PidService.Delete(r.Context(), id); err != nil {
				respondPidError(srv, w, err, logArgs)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
	})
}

// respondPidError maps service errors onto HTTP status codes.
func respondPidError(srv server.Server, w http.ResponseWriter, err error, logArgs []any) {
	switch {
	case errors.Is(err, pid.ErrNotFound):
		http.Error(w, "Pid not found", http.StatusNotFound)
	case errors.Is(err, pid.ErrDuplicateURI):
		http.Error(w, "Conflict: uri is already registered", http.StatusConflict)
	case errors.Is(err, pid.ErrDuplicateID):
		http.Error(w, "Conflict: id is already registered", http.StatusConflict)
	case errors.Is(err, pid.ErrInvalid):
		http.Error(w, fmt.Sprintf("Bad request: %s", err), http.StatusBadRequest)
	default:
		srv.Logger.Error("error handling pid request",
			append([]any{
				"error", err,
			}, logArgs...)...)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
