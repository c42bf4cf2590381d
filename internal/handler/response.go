package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"musicfiles/internal/model"
	"musicfiles/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps service errors onto the wire taxonomy: validation errors
// are structured with field detail, authentication failures are flattened to
// one generic 401 regardless of cause.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrInvalidCredentials), errors.Is(err, model.ErrTokenInvalid):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	case errors.Is(err, model.ErrEmailTaken):
		status = http.StatusBadRequest
		body.Code = "VALIDATION_ERROR"
		body.Message = "Email is already registered"
		body.Details = "email"
	case errors.Is(err, model.ErrUsernameTaken):
		status = http.StatusBadRequest
		body.Code = "VALIDATION_ERROR"
		body.Message = "Username is already registered"
		body.Details = "username"
	case errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	default:
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	writeJSON(w, status, model.ErrorResponse{Error: body})
}
