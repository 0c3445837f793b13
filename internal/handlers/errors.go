package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"rag-pipeline/internal/contextutil"
	"rag-pipeline/internal/extract"
	"rag-pipeline/internal/service"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	if validationErr, ok := service.AsValidationError(err); ok {
		logger.WarnContext(ctx, "validation failed", "field", validationErr.Field, "error", err)
		writeError(w, http.StatusBadRequest, validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, extract.ErrUnsupportedType):
		logger.WarnContext(ctx, "unsupported upload", "error", err)
		writeError(w, http.StatusBadRequest, "Unsupported file type")
	case errors.Is(err, extract.ErrMalformedFile):
		logger.WarnContext(ctx, "unreadable upload", "error", err)
		writeError(w, http.StatusBadRequest, "Could not read file")
	case errors.Is(err, extract.ErrPDFUnavailable):
		logger.ErrorContext(ctx, "pdf extraction unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, "PDF support not available")
	case errors.Is(err, service.ErrInvalidInput):
		logger.WarnContext(ctx, "invalid input", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, service.ErrNotFound):
		logger.InfoContext(ctx, "document not found", "error", err)
		writeError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, service.ErrExternalService):
		logger.ErrorContext(ctx, "external service error", "error", err)
		writeError(w, http.StatusBadGateway, "External service error")
	default:
		logger.ErrorContext(ctx, "service error", "error", err)
		writeError(w, http.StatusInternalServerError, defaultMsg)
	}
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
