package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
// The prefix of a code determines its HTTP status.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationFailed           ErrorCode = "validation_failed"
	ErrCodeValidationInvalidJSON      ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingField     ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEmail     ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidPrice     ErrorCode = "validation_invalid_price"
	ErrCodeValidationInvalidQuantity  ErrorCode = "validation_invalid_quantity"
	ErrCodeValidationInvalidDate      ErrorCode = "validation_invalid_date"
	ErrCodeValidationInvalidRole      ErrorCode = "validation_invalid_role"
	ErrCodeValidationInvalidDiscount  ErrorCode = "validation_invalid_discount"
	ErrCodeValidationSelfRoleChange   ErrorCode = "validation_self_role_change"
	ErrCodeValidationInvalidFile      ErrorCode = "validation_invalid_file"
	ErrCodeValidationPaymentProvider  ErrorCode = "validation_payment_provider_unavailable"
	ErrCodeValidationWebhookSignature ErrorCode = "validation_webhook_signature"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"
	ErrCodeAuthTokenExpired ErrorCode = "auth_token_expired"
	ErrCodeAuthInvalidCreds ErrorCode = "auth_invalid_credentials"
	ErrCodeAuthUserNotFound ErrorCode = "auth_user_not_found"

	// Permission (403)
	ErrCodePermissionRole ErrorCode = "permission_role_insufficient"
	ErrCodePermissionPlan ErrorCode = "permission_plan_insufficient"

	// Not Found (404)
	ErrCodeNotFoundUser         ErrorCode = "not_found_user"
	ErrCodeNotFoundBusiness     ErrorCode = "not_found_business"
	ErrCodeNotFoundProduct      ErrorCode = "not_found_product"
	ErrCodeNotFoundSale         ErrorCode = "not_found_sale"
	ErrCodeNotFoundPlan         ErrorCode = "not_found_plan"
	ErrCodeNotFoundSubscription ErrorCode = "not_found_subscription"
	ErrCodeNotFoundRoute        ErrorCode = "not_found_route"

	// Conflict (409)
	ErrCodeConflictEmail      ErrorCode = "conflict_email_exists"
	ErrCodeConflictLastAdmin  ErrorCode = "conflict_last_admin"
	ErrCodeConflictConcurrent ErrorCode = "conflict_concurrent_modification"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamStripe      ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamInsights    ErrorCode = "upstream_insights_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// Method routing
	ErrCodeMethodNotAllowed ErrorCode = "method_not_allowed"

	// Traffic (429)
	ErrCodeRateLimit ErrorCode = "rate_limit_exceeded"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case s == string(ErrCodeMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case s == string(ErrCodeRateLimit):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout the service.
// Handlers render it directly; any other error is reported as an internal error.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
