// Package utils carries the Admin API's response envelope, security
// middleware, and rate limiting.
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sentineld/avengine/internal/threatengine"
)

// APIError is a handler-level error carrying the HTTP status it
// should be reported with.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// NewAPIError builds an APIError.
func NewAPIError(message string, status int) *APIError {
	return &APIError{Status: status, Message: message}
}

// KindToStatus maps a threatengine.Kind to the HTTP status the API
// reports it with.
func KindToStatus(kind threatengine.Kind) int {
	switch kind {
	case threatengine.NotFound:
		return http.StatusNotFound
	case threatengine.InvalidConfig:
		return http.StatusBadRequest
	case threatengine.ScanInProgress:
		return http.StatusConflict
	case threatengine.ScanCancelled:
		return http.StatusConflict
	case threatengine.TooLarge, threatengine.Unreadable:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// APIErrorFromErr classifies err via threatengine.KindOf and wraps it
// in an APIError carrying the matching HTTP status.
func APIErrorFromErr(err error) *APIError {
	if kind, ok := threatengine.KindOf(err); ok {
		return NewAPIError(err.Error(), KindToStatus(kind))
	}
	return NewAPIError(err.Error(), http.StatusInternalServerError)
}

// SendError writes the uniform JSON error envelope.
func SendError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "error",
		"message": err.Message,
	})
}

// SendSuccess writes the uniform JSON success envelope.
func SendSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"data":   data,
	})
}

// SendSuccessWithMessage writes the success envelope with an extra
// human-readable message field.
func SendSuccessWithMessage(w http.ResponseWriter, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "success",
		"message": message,
		"data":    data,
	})
}
