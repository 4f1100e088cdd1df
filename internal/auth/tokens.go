package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bizpulse/internal/types"
)

// DefaultTokenTTL is the lifetime of an identity token.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims is the payload of an identity token. Role is informational: the
// authenticator always re-reads the current role from the database.
type Claims struct {
	UserID string     `json:"uid"`
	Email  string     `json:"email"`
	Role   types.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256-signed identity tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  types.Clock
}

// NewTokenService creates a TokenService. A non-positive ttl uses DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration, clock types.Clock) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, clock: clock}
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for u and returns it with its expiry.
func (s *TokenService) Issue(u *types.User) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to sign token", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature and expiry of raw and returns its claims.
func (s *TokenService) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", err)
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil)
	}
	return claims, nil
}
