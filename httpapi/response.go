// Package httpapi implements the External Interfaces (§6): a go-chi router
// exposing the hybrid search, upsert, and rebuild operations over HTTP.
//
// Grounded on so-ta-ai-orchestration/internal/handler/response.go's
// JSON/Error/HandleError shape, simplified to this spec's two-case error
// taxonomy (not-found vs. internal) since §7's propagation rule surfaces
// only unrecoverable request-level conditions as HTTP errors.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agentplexus/hybridtable"
)

// errorResponse mirrors the teacher's ErrorResponse/ErrorDetail envelope,
// trimmed to the fields this spec's error taxonomy actually needs.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes status and data as a JSON body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a {"error": {...}} body at status.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// handleError converts a core error into an HTTP response per §7's
// propagation rule: only unknown-table and upsert-target-missing surface as
// HTTP errors (404); everything else is an internal condition the caller
// should not have observed (the pipeline itself degrades per-request
// failures into empty results, so reaching here means something unexpected
// escaped that degradation).
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hybridtable.ErrTableNotFound):
		writeError(w, http.StatusNotFound, "TABLE_NOT_FOUND", err.Error())
	case errors.Is(err, hybridtable.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "RECORD_NOT_FOUND", err.Error())
	default:
		slog.Error("httpapi: internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
