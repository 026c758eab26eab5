package service

import (
	"context"
	"strings"
	"testing"

	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Username:    "ivan",
		Password:    "password123",
		FirstName:   "Ivan",
		LastName:    "Otieno",
		Email:       "ivan@example.com",
		PhoneNumber: "+254711000111",
		PIN:         "4321",
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, account, err := f.accounts.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.Equal(t, user.ID, account.UserID)
	assert.Equal(t, int64(0), account.Balance)
	assert.True(t, account.Active)
	assert.NotEqual(t, "4321", account.PinHash)

	owned, err := f.accounts.AccountForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, owned.ID)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.accounts.Register(ctx, validRegistration())
	require.NoError(t, err)

	samePhone := validRegistration()
	samePhone.Username = "other"
	_, _, err = f.accounts.Register(ctx, samePhone)
	require.ErrorIs(t, err, domain.ErrDuplicateAccount)

	sameUser := validRegistration()
	sameUser.PhoneNumber = "+254711999999"
	_, _, err = f.accounts.Register(ctx, sameUser)
	require.ErrorIs(t, err, domain.ErrDuplicateAccount)

	// The rejected registration must not leave an orphan user behind.
	_, err = f.store.Queries().GetUserByUsername(ctx, "other")
	assert.Error(t, err)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	tests := map[string]func(r *RegisterRequest){
		"empty username": func(r *RegisterRequest) { r.Username = "  " },
		"short password": func(r *RegisterRequest) { r.Password = "short" },
		"long password":  func(r *RegisterRequest) { r.Password = strings.Repeat("a", 80) },
		"bad phone":      func(r *RegisterRequest) { r.PhoneNumber = "07-11" },
		"short pin":      func(r *RegisterRequest) { r.PIN = "12" },
		"alpha pin":      func(r *RegisterRequest) { r.PIN = "12ab" },
		"bad email":      func(r *RegisterRequest) { r.Email = "nope" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := validRegistration()
			mutate(&req)
			_, _, err := f.accounts.Register(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestBalanceView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, account, err := f.accounts.Register(ctx, validRegistration())
	require.NoError(t, err)
	_, err = f.ledger.Deposit(ctx, account.ID, 130_000, "")
	require.NoError(t, err)

	view, err := f.accounts.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "+254711000111", view.PhoneNumber)
	assert.Equal(t, int64(130_000), view.Balance)
	assert.Equal(t, "Ivan Otieno", view.AccountHolder)

	_, err = f.accounts.Balance(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestBalanceViewFallsBackToUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := validRegistration()
	req.FirstName, req.LastName = "", ""
	user, _, err := f.accounts.Register(ctx, req)
	require.NoError(t, err)

	view, err := f.accounts.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ivan", view.AccountHolder)
}

func TestHistoryLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, account, err := f.accounts.Register(ctx, validRegistration())
	require.NoError(t, err)
	for i := 0; i < domain.MaxHistoryLimit+5; i++ {
		_, err := f.ledger.Deposit(ctx, account.ID, int64(100+i), "")
		require.NoError(t, err)
	}

	h, err := f.accounts.History(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(domain.MaxHistoryLimit+5), h.Count)
	require.Len(t, h.Transactions, domain.DefaultHistoryLimit)
	assert.Equal(t, int64(100+domain.MaxHistoryLimit+4), h.Transactions[0].Amount)

	h, err = f.accounts.History(ctx, user.ID, 3)
	require.NoError(t, err)
	assert.Len(t, h.Transactions, 3)

	h, err = f.accounts.History(ctx, user.ID, 10_000)
	require.NoError(t, err)
	assert.Len(t, h.Transactions, domain.MaxHistoryLimit)

	_, err = f.accounts.History(ctx, uuid.New(), 5)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSetActiveWritesAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := uuid.New()

	_, account, err := f.accounts.Register(ctx, validRegistration())
	require.NoError(t, err)

	updated, err := f.accounts.SetActive(ctx, admin, account.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	_, err = f.accounts.SetActive(ctx, admin, account.ID, false)
	require.NoError(t, err)

	_, err = f.accounts.SetActive(ctx, admin, account.ID, true)
	require.NoError(t, err)

	entries := f.mem.AuditLog()
	require.Len(t, entries, 2)
	assert.Equal(t, "deactivated", entries[0].Action)
	assert.Equal(t, "active", *entries[0].PrevState)
	assert.Equal(t, "inactive", *entries[0].NextState)
	assert.Equal(t, account.ID, entries[0].EntityID)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, admin, *entries[0].ActorID)
	assert.Equal(t, "activated", entries[1].Action)

	_, err = f.accounts.SetActive(ctx, admin, uuid.New(), false)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "a", 0)
	f.open(t, "b", 0)
	f.open(t, "c", 0)

	page, total, err := f.accounts.ListAccounts(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	page, _, err = f.accounts.ListAccounts(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.accounts.EnsureAdmin(ctx, "root", "supersecret"))
	require.NoError(t, f.accounts.EnsureAdmin(ctx, "root", "different"))

	admin, err := f.store.Queries().GetUserByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	require.NoError(t, f.accounts.EnsureAdmin(ctx, "", ""))
}
