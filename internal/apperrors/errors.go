// Package apperrors renders API failures as a JSON error envelope.
package apperrors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes carried in the envelope.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeMethod       = "METHOD_NOT_ALLOWED"
)

// AppError is an error that knows its HTTP status.
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	// Internal is logged by callers and never written to the client.
	Internal error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Internal }

// WithInternal attaches the underlying cause.
func (e *AppError) WithInternal(err error) *AppError {
	e.Internal = err
	return e
}

// WriteHTTP writes the envelope with the error's status.
func (e *AppError) WriteHTTP(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": e})
}

func newError(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func BadRequest(message string) *AppError {
	return newError(http.StatusBadRequest, CodeBadRequest, message)
}

func ValidationError(message string) *AppError {
	return newError(http.StatusUnprocessableEntity, CodeValidation, message)
}

func Unauthorized(message string) *AppError {
	return newError(http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return newError(http.StatusForbidden, CodeForbidden, message)
}

// NotFound reports a missing resource by name, e.g. NotFound("broker").
func NotFound(resource string) *AppError {
	return newError(http.StatusNotFound, CodeNotFound, resource+" not found")
}

func Conflict(message string) *AppError {
	return newError(http.StatusConflict, CodeConflict, message)
}

func Internal(message string) *AppError {
	return newError(http.StatusInternalServerError, CodeInternal, message)
}

func MethodNotAllowed() *AppError {
	return newError(http.StatusMethodNotAllowed, CodeMethod, "method not allowed")
}
