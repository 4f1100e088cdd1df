// Package handlers contains the HTTP handlers of the BizPulse API.
//
// Each handler is responsible for:
//   - Decoding and validating HTTP requests
//   - Resolving the caller and their business
//   - Delegating to service-layer logic
//   - Encoding responses and managing HTTP-specific concerns (headers, cookies)
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

// BusinessLookup finds the business owned by a user.
type BusinessLookup interface {
	GetByUserID(ctx context.Context, userID string) (*types.Business, error)
}

// BusinessResolver maps the authenticated caller to their business, the
// tenant boundary of every catalog, sales and analytics request.
type BusinessResolver struct {
	businesses BusinessLookup
}

// NewBusinessResolver creates a BusinessResolver.
func NewBusinessResolver(businesses BusinessLookup) *BusinessResolver {
	return &BusinessResolver{businesses: businesses}
}

// Resolve returns the caller and their business. A missing actor is
// auth_token_missing; a user without a business is not_found_business.
func (b *BusinessResolver) Resolve(r *http.Request) (*types.Actor, *types.Business, error) {
	actor, err := requireActor(r)
	if err != nil {
		return nil, nil, err
	}
	biz, err := b.businesses.GetByUserID(r.Context(), actor.ID)
	if err != nil {
		return nil, nil, err
	}
	return actor, biz, nil
}

func requireActor(r *http.Request) (*types.Actor, error) {
	actor, ok := types.GetActor(r.Context())
	if !ok || actor.ID == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil)
	}
	return &actor, nil
}

// decodeAndValidate decodes the JSON body into dst and runs struct validation.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *core.Validator, dst any) error {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return v.ValidateStruct(dst)
}

// parseCalendarDate accepts YYYY-MM-DD or RFC3339. A date-only end bound
// covers the whole day.
func parseCalendarDate(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidDate, "Invalid date: "+raw, err)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t, nil
}

// queryInt parses a positive integer query parameter, returning def when it
// is absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := types.FormatTimestamp(*t)
	return &s
}
