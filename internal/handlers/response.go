package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"research-backend/internal/contextutil"
	"research-backend/internal/service"
	"research-backend/internal/storage"
	"research-backend/internal/vectorstore"
)

// defaultListSize is used by /meta and /batches when n is not given.
const defaultListSize = 20

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeAndValidate reads a JSON body into dst and checks its validate tags.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &service.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &service.ValidationError{
				Field:   strings.ToLower(fe.Field()),
				Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
			}
		}
		return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return nil
}

// listSize parses the optional n query parameter.
func listSize(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("n")
	if raw == "" {
		return defaultListSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Field: "n", Message: "must be an integer"}
	}
	return n, nil
}

// writeJSON writes v with the given status code.
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

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		logger.WarnContext(ctx, "validation error", "error", err)
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	if errors.Is(err, service.ErrInvalidInput) {
		logger.WarnContext(ctx, "invalid input", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if errors.Is(err, service.ErrNotFound) || errors.Is(err, storage.ErrNotFound) {
		logger.WarnContext(ctx, "not found", "error", err)
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}

	logger.ErrorContext(ctx, "service error", "error", err)

	if errors.Is(err, vectorstore.ErrDimensionMismatch) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", defaultMsg, err))
}
