package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/variantlab/variant-engine/pkg/apperrors"
)

// ApiResponse standardizes all API responses.
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, response ApiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// SuccessResponse writes a successful JSON response.
func SuccessResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	WriteJSON(w, statusCode, ApiResponse{
		Success: true,
		Data:    data,
	})
}

// ErrorResponse writes an error JSON response.
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// HandleServiceError maps service-layer errors onto HTTP status codes.
// ErrDuplicateAssignment never reaches here; the assignment store resolves
// it internally by re-reading the winning row.
func HandleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		ErrorResponse(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, apperrors.ErrValidation):
		ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrInvalidTransition):
		ErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		ErrorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}
