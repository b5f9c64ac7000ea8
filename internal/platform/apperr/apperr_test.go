package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err    *Error
		kind   error
		status int
	}{
		{NotFound("admission"), ErrNotFound, http.StatusNotFound},
		{Conflict("bed already occupied"), ErrConflict, http.StatusConflict},
		{Invalid("invalid warehouse reference"), ErrInvalid, http.StatusBadRequest},
		{Forbidden("task is assigned to another nurse"), ErrForbidden, http.StatusForbidden},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.kind) {
			t.Errorf("%s: expected errors.Is to match kind", tt.err.Code)
		}
		if tt.err.HTTPStatus != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.err.Code, tt.status, tt.err.HTTPStatus)
		}
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("bed")
	if err.Error() != "bed not found" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestHTTPError_DomainError(t *testing.T) {
	he := HTTPError(Conflict("admission already closed"))
	if he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", he.Code)
	}
	if he.Message != "admission already closed" {
		t.Errorf("unexpected message: %v", he.Message)
	}
}

func TestHTTPError_WrappedDomainError(t *testing.T) {
	wrapped := fmt.Errorf("cancel order: %w", Conflict("order already completed"))
	he := HTTPError(wrapped)
	if he.Code != http.StatusConflict {
		t.Errorf("expected 409 for wrapped domain error, got %d", he.Code)
	}
}

func TestHTTPError_UnknownError(t *testing.T) {
	he := HTTPError(errors.New("connection reset"))
	if he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", he.Code)
	}
	if he.Message != "internal server error" {
		t.Errorf("storage detail must not leak, got %v", he.Message)
	}
}

func TestInternal_HidesDetail(t *testing.T) {
	err := Internal(errors.New("pq: deadlock detected"))
	if err.Message != "internal server error" {
		t.Errorf("unexpected message: %s", err.Message)
	}
	if !errors.Is(err, ErrInternal) {
		t.Error("expected errors.Is(err, ErrInternal)")
	}
}
