package auth

import (
	"context"
	"errors"

	"bizpulse/internal/types"
)

// UserLookup reads a user by id.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// TokenAuthenticator turns a raw identity token into an Actor.
type TokenAuthenticator struct {
	tokens *TokenService
	users  UserLookup
}

func NewTokenAuthenticator(tokens *TokenService, users UserLookup) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens, users: users}
}

// ResolveToken verifies the token and loads the user it names. The role on
// the returned Actor is the stored role, not the one in the token, so
// demotions take effect on the next request.
func (a *TokenAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
			return nil, types.NewAppError(types.ErrCodeAuthUserNotFound, "Unauthorized", nil)
		}
		return nil, err
	}

	return &types.Actor{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}
