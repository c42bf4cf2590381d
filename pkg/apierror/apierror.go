package apierror

import (
	"fmt"
	"net/http"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Validation is a 400 with field-level detail. Only validation failures may
// carry detail; authentication failures never do.
func Validation(message string, field string) *APIError {
	return New("VALIDATION_ERROR", message, field, http.StatusBadRequest)
}

// Unauthorized is the single generic 401. The message is deliberately fixed
// so that distinct failure causes are indistinguishable on the wire.
func Unauthorized() *APIError {
	return New("UNAUTHORIZED", "invalid credentials", "", http.StatusUnauthorized)
}

// BadRequest flags a malformed request body or token format problem.
func BadRequest(message string) *APIError {
	return New("BAD_REQUEST", message, "", http.StatusBadRequest)
}
