package service

import (
	"context"
	"testing"

	"github.com/ayo6706/mobile-money-ledger/internal/auth"
	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.open(t, "judy", 0)

	res, err := f.auth.Login(ctx, "judy", "password123")
	require.NoError(t, err)
	assert.Equal(t, account.ID, res.Account.ID)
	assert.Equal(t, "judy", res.User.Username)

	claims, err := f.tokens.Parse(res.Tokens.Access, auth.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID.String(), claims.UserID)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "judy", 0)

	_, err := f.auth.Login(ctx, "judy", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoginAdminWithoutAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.accounts.EnsureAdmin(ctx, "root", "supersecret"))

	res, err := f.auth.Login(ctx, "root", "supersecret")
	require.NoError(t, err)
	assert.Nil(t, res.Account)
	assert.Equal(t, domain.RoleAdmin, res.User.Role)
}

func TestRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "judy", 0)

	res, err := f.auth.Login(ctx, "judy", "password123")
	require.NoError(t, err)

	access, err := f.auth.Refresh(ctx, res.Tokens.Refresh)
	require.NoError(t, err)
	_, err = f.tokens.Parse(access, auth.AccessToken)
	require.NoError(t, err)

	_, err = f.auth.Refresh(ctx, res.Tokens.Access)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	f.auth.Logout(ctx, res.Tokens.Refresh)
	_, err = f.auth.Refresh(ctx, res.Tokens.Refresh)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	// Garbage and empty tokens are accepted silently.
	f.auth.Logout(ctx, "not-a-token")
	f.auth.Logout(ctx, "")
}
