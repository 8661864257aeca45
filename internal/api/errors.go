package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/printlink-core/internal/printer"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "printer_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writePrinterError maps printer errors onto HTTP statuses.
func writePrinterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, printer.ErrNotConnected), errors.Is(err, printer.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "printer is not connected")
	case errors.Is(err, printer.ErrInvalidSpeed), errors.Is(err, printer.ErrUnknownCapability):
		writeBadRequest(w, err.Error())
	case errors.Is(err, printer.ErrAMSNotFound):
		writeNotFound(w, "AMS unit not found")
	case errors.Is(err, printer.ErrNoCoverImage):
		writeNotFound(w, "no cover image for the current job")
	default:
		writeInternalError(w, "printer command failed")
	}
}
