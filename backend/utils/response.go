package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/connectome-service/backend/models"
	"github.com/gilchrisn/connectome-service/pkg/brain"
)

// WriteSuccessResponse writes a successful JSON response
func WriteSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	writeJSONResponse(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteCreatedResponse writes a 201 JSON response
func WriteCreatedResponse(w http.ResponseWriter, message string, data interface{}) {
	writeJSONResponse(w, http.StatusCreated, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteErrorResponse writes an error JSON response
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	response := models.APIResponse{
		Success: false,
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}
	writeJSONResponse(w, statusCode, response)
}

// WriteValidationErrorResponse writes a validation error response
func WriteValidationErrorResponse(w http.ResponseWriter, message string, errors map[string]string) {
	writeJSONResponse(w, http.StatusBadRequest, models.APIResponse{
		Success: false,
		Message: message,
		Data:    map[string]interface{}{"validation_errors": errors},
	})
}

// StatusFor maps an analysis error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, brain.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, brain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, brain.ErrStructural),
		errors.Is(err, brain.ErrInsufficientResource),
		errors.Is(err, brain.ErrNotComputed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err with the status StatusFor picks.
func WriteServiceError(w http.ResponseWriter, message string, err error) {
	WriteErrorResponse(w, StatusFor(err), message, err)
}

// writeJSONResponse is a helper function to write JSON responses
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		log.Error().
			Err(err).
			Int("status_code", statusCode).
			Msg("Failed to encode JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success": false, "message": "Internal server error", "error": "JSON encoding failed"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
	w.Write([]byte("\n"))
}
