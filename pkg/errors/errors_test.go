package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if wrapped.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, wrapped.Code)
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "resource not found",
			},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	unwrapped := errors.Unwrap(appErr)
	if unwrapped != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestLockTimeout_Retryable(t *testing.T) {
	err := LockTimeout("could not acquire resource lock")

	if !err.Retryable() {
		t.Errorf("lock timeout errors must be retryable")
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, err.HTTPStatus)
	}
}

func TestConflict_NotRetryable(t *testing.T) {
	err := Conflict("slot already booked")

	if err.Retryable() {
		t.Errorf("conflicts are resolved by re-querying slots, not by retrying the same request")
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, err.HTTPStatus)
	}
}

func TestPersistence(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Persistence("insert failed", cause)

	if err.Code != CodePersistence {
		t.Errorf("expected code %s, got %s", CodePersistence, err.Code)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected Persistence to wrap the cause")
	}
}

func TestAsAppError_WrappedInChain(t *testing.T) {
	inner := NotFound("Resource")
	outer := fmt.Errorf("fetching rules: %w", inner)

	got := AsAppError(outer)
	if got.Code != CodeNotFound {
		t.Errorf("expected AsAppError to find the AppError in the chain, got code %s", got.Code)
	}
}

func TestAsAppError_Fallback(t *testing.T) {
	got := AsAppError(errors.New("plain"))
	if got.Code != CodeInternal {
		t.Errorf("expected fallback to internal error, got %s", got.Code)
	}
}
