package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"bizpulse/internal/types"
)

// ValidationError describes one failed rule. Field is the JSON name of the
// offending field and Code is the validator tag that failed.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the domain-specific rules of
// the API and reports failures using JSON field names.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags:
//
//	role           a known account role ("user" or "admin")
//	calendar_date  YYYY-MM-DD or an RFC3339 timestamp
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("role", validateRole); err != nil {
		logger.Error("failed to register role validation", "error", err)
	}
	if err := v.RegisterValidation("calendar_date", validateCalendarDate); err != nil {
		logger.Error("failed to register calendar_date validation", "error", err)
	}

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns an *types.AppError whose code is
// derived from the first failure. All failures are listed under the
// "validation_errors" detail key.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: a programming error, not a client error.
		v.logger.Error("struct validation misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: messageFor(fe),
		})
	}

	first := verrs[0]
	return types.NewAppErrorWithDetails(
		codeFor(first),
		out[0].Message,
		err,
		map[string]any{"validation_errors": out},
	)
}

func codeFor(fe validator.FieldError) types.ErrorCode {
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return types.ErrCodeValidationMissingField
	case "email":
		return types.ErrCodeValidationInvalidEmail
	case "role":
		return types.ErrCodeValidationInvalidRole
	case "calendar_date":
		return types.ErrCodeValidationInvalidDate
	case "gt", "gte", "lte", "min", "max":
		if code, ok := numericFieldCodes[fe.Field()]; ok && fe.Kind() != reflect.String {
			return code
		}
	}
	return types.ErrCodeValidationFailed
}

// numericFieldCodes refines range failures on well-known numeric fields.
var numericFieldCodes = map[string]types.ErrorCode{
	"price":           types.ErrCodeValidationInvalidPrice,
	"unitPrice":       types.ErrCodeValidationInvalidPrice,
	"priceMonthly":    types.ErrCodeValidationInvalidPrice,
	"priceYearly":     types.ErrCodeValidationInvalidPrice,
	"quantity":        types.ErrCodeValidationInvalidQuantity,
	"discountPercent": types.ErrCodeValidationInvalidDiscount,
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "role":
		return fmt.Sprintf("%s must be a valid role", fe.Field())
	case "calendar_date":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

func validateRole(fl validator.FieldLevel) bool {
	return types.Role(fl.Field().String()).Valid()
}

// validateCalendarDate accepts empty strings; combine with required to
// reject them.
func validateCalendarDate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}
