package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/JPKribs/snapcontrol/internal"
)

// MARK: respondWithSuccess
// Handle API responses that are successful.
func (a *APIServer) respondWithSuccess(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	response := APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
	json.NewEncoder(w).Encode(response)
}

// MARK: respondWithError
// Handle API responses that are errors.
func (a *APIServer) respondWithError(w http.ResponseWriter, statusCode int, errorMessage string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: false,
		Error:   errorMessage,
	}
	json.NewEncoder(w).Encode(response)
}

// MARK: respondWithFailure
// Writes err with the status code of its kind.
func (a *APIServer) respondWithFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Warn("Request failed", "status", status, "error", err)
	}
	a.respondWithError(w, status, err.Error())
}

// MARK: writeJSON
// Plain JSON body for the frontend endpoints.
func (a *APIServer) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Error("Failed to encode response", "error", err)
	}
}

// MARK: writeFailure
// Plain text error for the frontend endpoints.
func (a *APIServer) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Warn("Request failed", "status", status, "error", err)
	}
	http.Error(w, err.Error(), status)
}

// MARK: statusFor
func statusFor(err error) int {
	switch {
	case errors.Is(err, internal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrTransientUnavailable), errors.Is(err, internal.ErrConnectionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, internal.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MARK: parsePaginationParams
// Parse pagination parameters.
func (a *APIServer) parsePaginationParams(r *http.Request) (int, int) {
	limit := 100
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
