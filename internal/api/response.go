package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aqlhr/askaql/internal/log"
)

// ErrorResponse is the JSON error body for all non-2xx responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
// Uses buffer-first strategy to ensure headers are only sent after successful
// encoding. This allows returning a proper 500 error if encoding fails.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("failed to write response body", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg, details string, logger log.Logger) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details}, logger)
}
