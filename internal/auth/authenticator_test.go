package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizpulse/internal/types"
)

func TestTokenAuthenticator_UsesStoredRole(t *testing.T) {
	tokens := NewTokenService(testSecret, time.Hour, nil)
	users := new(mockUserStore)
	a := NewTokenAuthenticator(tokens, users)
	ctx := context.Background()

	token, _, err := tokens.Issue(&types.User{ID: "usr_1", Email: "a@b.co", Role: types.RoleAdmin})
	require.NoError(t, err)
	users.On("GetByID", ctx, "usr_1").Return(&types.User{ID: "usr_1", Email: "a@b.co", Role: types.RoleUser}, nil)

	actor, err := a.ResolveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, actor.Role)
	assert.False(t, actor.IsAdmin())
}

func TestTokenAuthenticator_DeletedUser(t *testing.T) {
	tokens := NewTokenService(testSecret, time.Hour, nil)
	users := new(mockUserStore)
	a := NewTokenAuthenticator(tokens, users)
	ctx := context.Background()

	token, _, err := tokens.Issue(&types.User{ID: "usr_gone"})
	require.NoError(t, err)
	users.On("GetByID", ctx, "usr_gone").Return(nil, types.NewAppError(types.ErrCodeNotFoundUser, "User not found", nil))

	_, err = a.ResolveToken(ctx, token)
	requireAppErrorCode(t, err, types.ErrCodeAuthUserNotFound)
}

func TestTokenAuthenticator_InvalidToken(t *testing.T) {
	a := NewTokenAuthenticator(NewTokenService(testSecret, time.Hour, nil), new(mockUserStore))
	_, err := a.ResolveToken(context.Background(), "garbage")
	requireAppErrorCode(t, err, types.ErrCodeAuthTokenInvalid)
}
