package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Sentinel error kinds. Services wrap these so callers can branch with
// errors.Is without inspecting messages.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid input")
	ErrForbidden = errors.New("forbidden")
	ErrInternal  = errors.New("internal error")
)

// Error is a domain error carrying a stable code and an HTTP status class.
// Business rule violations favor specific denial messages over generic ones
// so operators can diagnose workflow misuse.
type Error struct {
	Kind       error
	Message    string
	Code       string
	HTTPStatus int
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFound signals an entity absent under the current tenant scope.
func NotFound(resource string) *Error {
	return &Error{
		Kind:       ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
	}
}

// Conflict signals an invariant violation: wrong state for the requested
// transition, a duplicate active assignment, or a uniqueness collision.
func Conflict(message string) *Error {
	return &Error{
		Kind:       ErrConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// Invalid signals a missing or invalid reference in the request payload.
func Invalid(message string) *Error {
	return &Error{
		Kind:       ErrInvalid,
		Message:    message,
		Code:       "INVALID_INPUT",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Forbidden signals an ownership or assignment mismatch.
func Forbidden(message string) *Error {
	return &Error{
		Kind:       ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// Internal wraps an unexpected error without leaking its detail to clients.
func Internal(err error) *Error {
	return &Error{
		Kind:       fmt.Errorf("%w: %w", ErrInternal, err),
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// HTTPError translates any error into an echo HTTP error. Domain errors keep
// their status and message; everything else becomes a 500.
func HTTPError(err error) *echo.HTTPError {
	var e *Error
	if errors.As(err, &e) {
		return echo.NewHTTPError(e.HTTPStatus, e.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
