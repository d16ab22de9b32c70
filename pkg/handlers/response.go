// Package handlers contains the HTTP layer for catalog-engine.
// Handlers decode requests, call services, and map service errors to
// HTTP status codes; business rules live in pkg/services.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteServiceError maps a service error onto the HTTP status codes the
// apperrors sentinels define and writes the JSON error body. Unrecognized
// errors become 500s with a generic message so internals don't leak.
func WriteServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal_error"
	)

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperrors.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Unhandled service error", zap.Error(err))
		message = "internal server error"
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
