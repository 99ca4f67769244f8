// Package handler implements the REST endpoints.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/robalyx/draftguard/internal/database/types"
	restTypes "github.com/robalyx/draftguard/internal/rest/types"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

// writeError maps err onto an HTTP status and a JSON body.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) error {
	var validationErr *types.ValidationError

	switch {
	case errors.As(err, &validationErr):
		return writeJSON(w, http.StatusBadRequest, restTypes.ErrorResponse{
			Error: validationErr.Message,
			Field: validationErr.Field,
		})
	case errors.Is(err, types.ErrNotAdmin):
		return writeJSON(w, http.StatusForbidden, restTypes.ErrorResponse{Error: err.Error()})
	case errors.Is(err, types.ErrDraftNotFound),
		errors.Is(err, types.ErrPairNotFound),
		errors.Is(err, types.ErrActionNotFound):
		return writeJSON(w, http.StatusNotFound, restTypes.ErrorResponse{Error: err.Error()})
	default:
		logger.Error("Request failed", zap.Error(err))
		return writeJSON(w, http.StatusInternalServerError, restTypes.ErrorResponse{Error: "Internal server error"})
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched when optional is set.
func decodeBody(w http.ResponseWriter, req *http.Request, v any, optional bool) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		return types.NewValidationError("body", "unreadable request body")
	}
	if len(body) == 0 {
		if optional {
			return nil
		}
		return types.NewValidationError("body", "must not be empty")
	}

	if err := sonic.Unmarshal(body, v); err != nil {
		return types.NewValidationError("body", "malformed JSON: %v", err)
	}
	return nil
}
