package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/servomount/internal/servo"
	"github.com/nerrad567/servomount/internal/thing"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeInternal       = "internal_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeMisdirected    = "misdirected_request"
	ErrCodeHardwareFault  = "hardware_fault"
	ErrCodeReadOnly       = "read_only"
	ErrCodeOutOfRange     = "out_of_range"
	ErrCodeNoSuchAction   = "no_such_action"
	ErrCodeUnavailable    = "unavailable"
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

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// classifyWriteError maps a rejected property write onto an HTTP status and
// error code. The WebSocket error messages reuse the same mapping.
func classifyWriteError(err error) (int, string) {
	switch {
	case errors.Is(err, thing.ErrPropertyNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, thing.ErrReadOnly):
		return http.StatusBadRequest, ErrCodeReadOnly
	case errors.Is(err, servo.ErrOutOfRange):
		return http.StatusBadRequest, ErrCodeOutOfRange
	case errors.Is(err, servo.ErrHardwareFault):
		return http.StatusBadGateway, ErrCodeHardwareFault
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writePropertyError writes the response for a rejected property write.
func writePropertyError(w http.ResponseWriter, err error) {
	status, code := classifyWriteError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "property write failed"
	}
	writeError(w, status, code, message)
}
