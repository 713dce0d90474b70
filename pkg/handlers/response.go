package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/apperrors"
	"github.com/flexiapi/flexiapi/pkg/logging"
	"github.com/flexiapi/flexiapi/pkg/models"
)

// Envelope is the body of every API response. Error repeats Message on
// failure and is null on success.
type Envelope struct {
	Status     bool             `json:"status"`
	Message    string           `json:"message"`
	Data       any              `json:"data"`
	Error      *string          `json:"error"`
	Pagination *models.PageInfo `json:"pagination,omitempty"`
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// Success writes a 200 envelope.
func Success(w http.ResponseWriter, message string, data any, pagination *models.PageInfo) error {
	return WriteJSON(w, http.StatusOK, Envelope{
		Status:     true,
		Message:    message,
		Data:       data,
		Pagination: pagination,
	})
}

// Failure writes an error envelope with the given status.
func Failure(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, Envelope{Status: false, Message: message, Error: &message})
}

// WriteError maps err to its status code and writes the failure envelope.
// Validation messages are returned as-is; execution messages are scrubbed of
// credentials first. Anything else is reported as an unhandled error.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := apperrors.HTTPStatus(err)

	message := "Unhandled server error"
	switch {
	case apperrors.IsValidation(err):
		message = err.Error()
	case apperrors.IsExecution(err):
		message = logging.SanitizeError(err)
	default:
		logger.Error("Unhandled error", zap.String("error", logging.SanitizeError(err)))
	}

	if writeErr := Failure(w, status, message); writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}
