package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/db"
	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/ayo6706/mobile-money-ledger/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// setupPostgres migrates and truncates the database named by DATABASE_URL.
func setupPostgres(t *testing.T) *fixture {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, connString))

	pool, err := db.Connect(ctx, connString, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE TABLE transactions, accounts, users, audit_log, revoked_tokens, idempotency_keys CASCADE")
	require.NoError(t, err)

	return newFixtureWith(t, repository.NewStore(pool))
}

func TestPostgresLedgerScenario(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()

	alice := f.open(t, "alice", 100_000)
	bob := f.open(t, "bob", 0)

	dep, err := f.ledger.Deposit(ctx, alice.ID, 30_000, "AGT-1")
	require.NoError(t, err)
	assert.Equal(t, int64(130_000), dep.NewBalance)

	_, err = f.ledger.Withdraw(ctx, WithdrawRequest{AccountID: alice.ID, Amount: 200_000, PIN: testPIN})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = f.ledger.Transfer(ctx, TransferRequest{SenderID: alice.ID, RecipientPhone: bob.PhoneNumber, Amount: 50_000, PIN: testPIN, Description: "lunch"})
	require.NoError(t, err)

	assert.Equal(t, int64(80_000), f.balance(t, alice))
	assert.Equal(t, int64(50_000), f.balance(t, bob))

	log := f.history(t, alice)
	require.Len(t, log, 3)
	assert.Equal(t, domain.TxTypeSend, log[0].Type)

	report, err := NewReconciliationService(f.store).Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Balanced())
}

func TestPostgresTransferRollsBackWhenLogWriteFails(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	alice := f.open(t, "alice", 1_000)
	bob := f.open(t, "bob", 0)

	f.ids.fix("TXNDUPLICATE")
	_, err := f.ledger.Transfer(ctx, TransferRequest{SenderID: alice.ID, RecipientPhone: bob.PhoneNumber, Amount: 400, PIN: testPIN})
	require.Error(t, err)

	assert.Equal(t, int64(1_000), f.balance(t, alice))
	assert.Equal(t, int64(0), f.balance(t, bob))
	assert.Empty(t, f.history(t, bob))
}

func TestPostgresConcurrentOpposingTransfers(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	alice := f.open(t, "alice", 100_000)
	bob := f.open(t, "bob", 100_000)

	const n = 10
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := f.ledger.Transfer(ctx, TransferRequest{SenderID: alice.ID, RecipientPhone: bob.PhoneNumber, Amount: 1_000, PIN: testPIN})
			return err
		})
		g.Go(func() error {
			_, err := f.ledger.Transfer(ctx, TransferRequest{SenderID: bob.ID, RecipientPhone: alice.PhoneNumber, Amount: 1_000, PIN: testPIN})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(100_000), f.balance(t, alice))
	assert.Equal(t, int64(100_000), f.balance(t, bob))
}
