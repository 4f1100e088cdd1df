package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := NewAppError(ErrCodeNotFoundBusiness, "Business not found", nil)

	expected := "not_found_business: Business not found"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	appErr := NewAppError(ErrCodeInternalDB, "failed to list sales", underlying)

	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the underlying error")
	}

	wrapped := fmt.Errorf("handler: %w", appErr)
	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeInternalDB {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeInternalDB)
	}
}

func TestAppErrorWithDetails_DoesNotMutate(t *testing.T) {
	base := NewAppErrorWithDetails(ErrCodeValidationFailed, "invalid", nil, map[string]any{"a": 1})
	derived := base.WithDetails(map[string]any{"b": 2})

	if len(base.Details) != 1 {
		t.Errorf("original details mutated: %v", base.Details)
	}
	if derived.Details["a"] != 1 || derived.Details["b"] != 2 {
		t.Errorf("merged details = %v", derived.Details)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeValidationSelfRoleChange, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthInvalidCreds, http.StatusUnauthorized},
		{ErrCodePermissionRole, http.StatusForbidden},
		{ErrCodePermissionPlan, http.StatusForbidden},
		{ErrCodeNotFoundBusiness, http.StatusNotFound},
		{ErrCodeNotFoundSubscription, http.StatusNotFound},
		{ErrCodeConflictEmail, http.StatusConflict},
		{ErrCodeConflictLastAdmin, http.StatusConflict},
		{ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{ErrCodeRateLimit, http.StatusTooManyRequests},
		{ErrCodeUpstreamStripe, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusServiceUnavailable},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
