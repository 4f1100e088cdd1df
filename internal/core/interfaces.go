package core

import (
	"context"
	"time"

	"bizpulse/internal/types"
)

// Authenticator decouples the HTTP layer from the token format and the user
// store, allowing for easy mocking in tests.
type Authenticator interface {
	// ResolveToken validates a raw identity token and returns the Actor with
	// the role currently stored for the user.
	//
	// Distinct Error Codes:
	// - ErrCodeAuthTokenInvalid for malformed tokens or bad signatures.
	// - ErrCodeAuthTokenExpired for well-formed tokens past their expiry.
	// - ErrCodeAuthUserNotFound when the token's user no longer exists.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	// RecordRequest records latency and count for one request. endpoint is
	// the matched route pattern, not the raw path.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	// IncrementAndCheck counts one request for key and reports whether it
	// fits within limit for the current window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult contains the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}
