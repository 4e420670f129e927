package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// WriteJSON writes data as a JSON response with the given status code.
// Encoding failures are logged; the status line has already been sent.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// ErrorObject is a single JSON:API style error.
type ErrorObject struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Errors []ErrorObject `json:"errors"`
}

// WriteError writes a single error object.
func WriteError(w http.ResponseWriter, status int, code, title, detail string) {
	WriteJSON(w, status, ErrorResponse{Errors: []ErrorObject{{
		Status: strconv.Itoa(status),
		Code:   code,
		Title:  title,
		Detail: detail,
	}}})
}

// WriteValidationError writes a 400 with code "validation_failed".
func WriteValidationError(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "validation_failed", "Validation Failed", detail)
}

// WriteUnauthorized writes a 401 with code "unauthorized".
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", detail)
}

// WriteForbidden writes a 403 with code "forbidden".
func WriteForbidden(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusForbidden, "forbidden", "Forbidden", detail)
}

// WriteNotFound writes a 404 naming the missing resource.
func WriteNotFound(w http.ResponseWriter, resourceType, id string) {
	WriteError(w, http.StatusNotFound, "not_found", "Resource Not Found",
		"The requested "+resourceType+" with ID '"+id+"' was not found")
}

// WriteTooManyRequests writes a 429 and a Retry-After hint in seconds.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too Many Requests", "")
}

// WriteInternalError writes a 500. Callers log the cause; detail stays generic.
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error", "An internal error occurred")
}
