package core

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"bizpulse/internal/types"
)

// authPublicPaths are exempt from authentication regardless of method.
var authPublicPaths = map[string]bool{
	"/health":                  true,
	"/metrics":                 true,
	"/v1/auth/register":        true,
	"/v1/auth/login":           true,
	"/v1/auth/logout":          true,
	"/v1/auth/forgot-password": true,
	"/v1/payment/webhook":      true,
}

// authOptionalRoutes resolve the Actor when a valid token is present and
// continue anonymously otherwise. Keys are "METHOD path".
var authOptionalRoutes = map[string]bool{
	"GET /v1/subscription": true,
}

// AuthMiddleware resolves the identity token of the request.
//
//  1. Reads the token from "Authorization: Bearer <token>" or, failing that,
//     from the identity cookie.
//  2. Calls Authenticator.ResolveToken and injects the Actor into the
//     request context via types.WithActor.
//  3. Returns 401 on failure with distinct error codes:
//     - auth_token_missing: no token in header or cookie.
//     - auth_token_invalid: malformed token or bad signature.
//     - auth_token_expired: token past its expiry.
//
// If s.Authenticator is nil (tests), the middleware passes through.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil || authPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		optional := authOptionalRoutes[r.Method+" "+r.URL.Path]

		token := s.extractToken(r)
		if token == "" {
			if optional {
				next.ServeHTTP(w, r)
				return
			}
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Unauthorized")
			return
		}

		actor, err := s.Authenticator.ResolveToken(r.Context(), token)
		if err == nil && actor == nil {
			err = types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid authentication token", nil)
		}
		if err != nil {
			if optional {
				next.ServeHTTP(w, r)
				return
			}
			s.handleAuthError(w, r, err)
			return
		}

		ctx := types.WithActor(r.Context(), *actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken prefers the Authorization header over the cookie.
func (s *Server) extractToken(r *http.Request) string {
	if token := extractBearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if c, err := r.Cookie(s.cookieName()); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func (s *Server) cookieName() string {
	if s.Config != nil && s.Config.Auth.CookieName != "" {
		return s.Config.Auth.CookieName
	}
	return "token"
}

// extractBearerToken parses "Bearer <token>" with a case-insensitive scheme
// per RFC 7235. Returns "" if the format is invalid.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// handleAuthError maps an Authenticator error to a 401 response.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeAuthTokenExpired:
			s.Logger.WarnContext(r.Context(), "authentication failed: token expired",
				slog.String("path", r.URL.Path),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenExpired, "Authentication token has expired")
			return
		case types.ErrCodeAuthTokenInvalid, types.ErrCodeAuthTokenMissing, types.ErrCodeAuthUserNotFound:
			s.Logger.WarnContext(r.Context(), "authentication failed: token invalid",
				slog.String("path", r.URL.Path),
				slog.String("error_code", string(appErr.Code)),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
			return
		}
	}

	s.Logger.ErrorContext(r.Context(), "authentication failed: unexpected error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	Error(w, r, err)
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	JSON(w, r, http.StatusUnauthorized, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}

// RequireRole returns middleware that admits only actors holding role.
// Unauthenticated requests get 401; other roles get 403.
func RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := types.GetActor(r.Context())
			if !ok {
				Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
				return
			}
			if actor.Role != role {
				Error(w, r, types.NewAppError(types.ErrCodePermissionRole, "Forbidden", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
