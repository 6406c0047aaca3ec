package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/devportal/services"
	"github.com/upb/devportal/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}
	message := services.GetPublicMessage(err)

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsValidationError(err):
		writeErr = utils.WriteUnprocessableEntity(w, message, details)

	case services.IsConfigurationError(err):
		logger.Error("service not configured", zap.Error(err))
		writeErr = utils.WriteConfigurationError(w, message)

	case services.IsExternalError(err):
		// provider failures pass their message through
		writeErr = utils.WriteBadGateway(w, message)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteError(w, http.StatusInternalServerError, message, details)

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var details map[string]interface{}
	var validationErr *utils.ValidationError
	if errors.As(err, &validationErr) {
		details = validationErr.Details()
	}

	if err := utils.WriteUnprocessableEntity(w, err.Error(), details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
