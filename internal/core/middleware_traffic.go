package core

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"bizpulse/internal/types"
)

// authRateLimitedPrefix covers login, register, forgot-password and logout.
const authRateLimitedPrefix = "/v1/auth/"

// rateLimitSweepInterval bounds how often expired windows are dropped.
const rateLimitSweepInterval = time.Minute

// RateLimitRule allows Limit requests per Window. A zero Limit disables it.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitPolicy holds the rules RateLimit applies.
type RateLimitPolicy struct {
	// Auth applies to public POST /v1/auth/* requests, keyed by client IP.
	Auth RateLimitRule
	// API applies to authenticated requests, keyed by user id.
	API RateLimitRule
}

// RateLimit enforces s.RateLimits through s.RateLimitStore. It runs after
// AuthMiddleware so authenticated requests are counted per user; anonymous
// requests outside the auth endpoints pass through. Store errors fail open.
//
// Every counted response carries X-RateLimit-Limit, X-RateLimit-Remaining
// and X-RateLimit-Reset; rejected ones also carry Retry-After.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimitStore == nil {
			next.ServeHTTP(w, r)
			return
		}

		key, rule := s.rateLimitTarget(r)
		if key == "" || rule.Limit <= 0 || rule.Window <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		result, err := s.RateLimitStore.IncrementAndCheck(r.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			s.Logger.ErrorContext(r.Context(), "rate limit store error",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, rule.Limit, result)
		if !result.Allowed {
			s.Logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("key", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			Error(w, r, types.NewAppError(types.ErrCodeRateLimit,
				"Too many requests. Please retry after the reset time.", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitTarget(r *http.Request) (string, RateLimitRule) {
	if actor, ok := types.GetActor(r.Context()); ok && actor.ID != "" {
		return "user:" + actor.ID, s.RateLimits.API
	}
	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, authRateLimitedPrefix) {
		return "auth:" + extractClientIP(r), s.RateLimits.Auth
	}
	return "", RateLimitRule{}
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimitStore keeps fixed windows aligned to multiples of the
// window length in process memory. Counts are per instance.
type MemoryRateLimitStore struct {
	clock types.Clock

	mu        sync.Mutex
	windows   map[string]rateWindow
	lastSweep time.Time
}

// NewMemoryRateLimitStore creates an empty store. A nil clock uses wall time.
func NewMemoryRateLimitStore(clock types.Clock) *MemoryRateLimitStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryRateLimitStore{clock: clock, windows: make(map[string]rateWindow)}
}

// IncrementAndCheck implements RateLimitStore. Rejected requests are not
// counted, so Remaining never goes negative.
func (m *MemoryRateLimitStore) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now)

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = rateWindow{resetAt: now.Truncate(window).Add(window)}
	}
	if w.count >= limit {
		m.windows[key] = w
		return RateLimitResult{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	m.windows[key] = w
	return RateLimitResult{Allowed: true, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}

// Len reports the number of tracked keys.
func (m *MemoryRateLimitStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *MemoryRateLimitStore) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < rateLimitSweepInterval {
		return
	}
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
	m.lastSweep = now
}
