package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vbonduro/stockcount/internal/apperr"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	env := newTestEnv(t)
	a := NewAuth(env.store.Operators, slog.Default())
	a.cost = bcrypt.MinCost
	return a
}

func TestLogin(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()
	require.NoError(t, a.SetPassword(ctx, "ana", "Ana Lima", "s3cret"))

	op, err := a.Login(ctx, "ana", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", op.DisplayName)

	_, err = a.Login(ctx, "ana", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = a.Login(ctx, "bob", "s3cret")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = a.Login(ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestBootstrap(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	require.NoError(t, a.Bootstrap(ctx, ""))
	require.NoError(t, a.Bootstrap(ctx, "admin:pw:Site Admin"))

	op, err := a.Login(ctx, "admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Site Admin", op.DisplayName)

	require.NoError(t, a.Bootstrap(ctx, "clerk:pw"))
	op, err = a.Login(ctx, "clerk", "pw")
	require.NoError(t, err)
	assert.Equal(t, "clerk", op.DisplayName)

	assert.Error(t, a.Bootstrap(ctx, "nopassword"))
}
