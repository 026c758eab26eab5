package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/ayo6706/mobile-money-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, s *Store, phone string, balance int64) *models.Account {
	t.Helper()
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Username: "user-" + phone, Role: "user", Active: true}
	require.NoError(t, s.Queries().CreateUser(ctx, user))
	acc := &models.Account{ID: uuid.New(), UserID: user.ID, PhoneNumber: phone, Balance: balance, Active: true}
	require.NoError(t, s.Queries().CreateAccount(ctx, acc))
	return acc
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()
	acc := seedAccount(t, s, "254700000001", 1_000)

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(q repository.Querier) error {
		a, err := q.GetAccountForUpdate(ctx, acc.ID)
		require.NoError(t, err)
		_, err = q.UpdateAccountBalance(ctx, a.ID, a.Balance+500)
		require.NoError(t, err)
		require.NoError(t, q.CreateTransaction(ctx, &models.Transaction{ID: uuid.New(), Reference: "TXN1", AccountID: a.ID, Amount: 500}))

		staged, err := q.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1_500), staged.Balance)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Queries().GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), got.Balance)

	n, err := s.Queries().CountTransactionsByAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommitIsAllOrNothing(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()
	acc := seedAccount(t, s, "254700000002", 1_000)
	require.NoError(t, s.Queries().CreateTransaction(ctx, &models.Transaction{ID: uuid.New(), Reference: "DUP", AccountID: acc.ID, Amount: 1}))

	err := s.RunInTx(ctx, func(q repository.Querier) error {
		if _, err := q.UpdateAccountBalance(ctx, acc.ID, 5); err != nil {
			return err
		}
		if err := q.CreateTransaction(ctx, &models.Transaction{ID: uuid.New(), Reference: "OK", AccountID: acc.ID, Amount: 1}); err != nil {
			return err
		}
		return q.CreateTransaction(ctx, &models.Transaction{ID: uuid.New(), Reference: "DUP", AccountID: acc.ID, Amount: 1})
	})
	require.Error(t, err)
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23505", pgErr.Code)

	got, err := s.Queries().GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), got.Balance)
	n, err := s.Queries().CountTransactionsByAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAccountLockIsExclusive(t *testing.T) {
	s := NewStore(0)
	ctx := context.Background()
	acc := seedAccount(t, s, "254700000003", 0)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTx(ctx, func(q repository.Querier) error {
			if _, err := q.GetAccountForUpdate(ctx, acc.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := s.RunInTx(waitCtx, func(q repository.Querier) error {
		_, err := q.GetAccountForUpdate(waitCtx, acc.ID)
		return err
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	err = s.RunInTx(ctx, func(q repository.Querier) error {
		_, err := q.GetAccountForUpdate(ctx, acc.ID)
		return err
	})
	require.NoError(t, err)
}

func TestLockTimeout(t *testing.T) {
	s := NewStore(20 * time.Millisecond)
	ctx := context.Background()
	acc := seedAccount(t, s, "254700000004", 0)

	err := s.RunInTx(ctx, func(outer repository.Querier) error {
		if _, err := outer.GetAccountForUpdate(ctx, acc.ID); err != nil {
			return err
		}
		return s.RunInTx(ctx, func(inner repository.Querier) error {
			_, err := inner.GetAccountForUpdate(ctx, acc.ID)
			return err
		})
	})
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestPanicReleasesLocks(t *testing.T) {
	s := NewStore(50 * time.Millisecond)
	ctx := context.Background()
	acc := seedAccount(t, s, "254700000008", 1_000)

	require.Panics(t, func() {
		_ = s.RunInTx(ctx, func(q repository.Querier) error {
			a, err := q.GetAccountForUpdate(ctx, acc.ID)
			require.NoError(t, err)
			_, err = q.UpdateAccountBalance(ctx, a.ID, a.Balance+500)
			require.NoError(t, err)
			panic("handler bug")
		})
	})

	err := s.RunInTx(ctx, func(q repository.Querier) error {
		_, err := q.GetAccountForUpdate(ctx, acc.ID)
		return err
	})
	require.NoError(t, err)

	got, err := s.Queries().GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), got.Balance)
}

func TestLookupsReturnNoRows(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()

	_, err := s.Queries().GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = s.Queries().GetAccountByPhone(ctx, "254799999999")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = s.Queries().GetAccountForUpdate(ctx, uuid.New())
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = s.Queries().GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	rows, err := s.Queries().UpdateAccountBalance(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestUniquePhone(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()
	seedAccount(t, s, "254700000005", 0)

	user := &models.User{ID: uuid.New(), Username: "other"}
	require.NoError(t, s.Queries().CreateUser(ctx, user))
	err := s.Queries().CreateAccount(ctx, &models.Account{ID: uuid.New(), UserID: user.ID, PhoneNumber: "254700000005"})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "accounts_phone_number_key", pgErr.ConstraintName)
}

func TestTransactionsNewestFirst(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()
	acc := seedAccount(t, s, "254700000006", 0)

	for _, ref := range []string{"A", "B", "C"} {
		require.NoError(t, s.Queries().CreateTransaction(ctx, &models.Transaction{ID: uuid.New(), Reference: ref, AccountID: acc.ID, Amount: 1}))
	}

	txns, err := s.Queries().ListTransactionsByAccount(ctx, acc.ID, 2)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "C", txns[0].Reference)
	assert.Equal(t, "B", txns[1].Reference)
}

func TestCreatedAtFollowsCommitOrder(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()
	acc := seedAccount(t, s, "254700000009", 0)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first := &models.Transaction{ID: uuid.New(), Reference: "FIRST", AccountID: acc.ID, Amount: 1}
	err := s.RunInTx(ctx, func(q repository.Querier) error {
		if err := q.CreateTransaction(ctx, first); err != nil {
			return err
		}
		// Committed while FIRST is still staged.
		return s.Queries().CreateTransaction(ctx, &models.Transaction{ID: uuid.New(), Reference: "SECOND", AccountID: acc.ID, Amount: 1})
	})
	require.NoError(t, err)

	txns, err := s.Queries().ListTransactionsByAccount(ctx, acc.ID, 10)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "FIRST", txns[0].Reference)
	assert.Equal(t, "SECOND", txns[1].Reference)
	assert.True(t, txns[0].CreatedAt.After(txns[1].CreatedAt))
	assert.Equal(t, txns[0].CreatedAt, first.CreatedAt)
}

func TestIdempotencyKeyLifecycle(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()
	q := s.Queries()

	_, err := q.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{IdempotencyKey: "k", RequestHash: "h", Method: "POST", Path: "/api/send"})
	require.NoError(t, err)
	_, err = q.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{IdempotencyKey: "k", RequestHash: "h"})
	require.ErrorIs(t, err, pgx.ErrNoRows)

	_, err = q.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{IdempotencyKey: "k", RequestHash: "other"})
	require.ErrorIs(t, err, pgx.ErrNoRows)

	rec, err := q.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		IdempotencyKey: "k", RequestHash: "h", ResponseStatus: 200, ResponseBody: []byte(`{}`), ContentType: "application/json",
	})
	require.NoError(t, err)
	assert.False(t, rec.InProgress)

	got, err := q.GetIdempotencyKey(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int32(200), got.ResponseStatus)
}
