package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	s := NewStore(nil, memory.NewStore(time.Second).Queries(), time.Hour)
	s.poll = 5 * time.Millisecond
	return s
}

func TestLookupUnknownKey(t *testing.T) {
	s := newTestStore()
	_, err := s.Lookup(context.Background(), "missing", "h")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReserveFinalizeReplay(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	key := ScopedKey("user-1", "abc")

	ok, err := s.Reserve(ctx, key, "h1", "POST", "/api/send")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.Lookup(ctx, key, "h1")
	require.ErrorIs(t, err, ErrInProgress)

	ok, err = s.Reserve(ctx, key, "h1", "POST", "/api/send")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Finalize(ctx, key, "h1", 200, []byte(`{"message":"ok"}`), "application/json")
	require.NoError(t, err)

	rec, err := s.Lookup(ctx, key, "h1")
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Status)
	assert.JSONEq(t, `{"message":"ok"}`, string(rec.Body))
	assert.Equal(t, ServedByLedger, rec.ServedBy)

	_, err = s.Lookup(ctx, key, "h2")
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestKeysAreScopedPerUser(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	ok, err := s.Reserve(ctx, ScopedKey("alice", "k"), "h", "POST", "/api/deposit")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Reserve(ctx, ScopedKey("bob", "k"), "h", "POST", "/api/deposit")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitForCompletion(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "k", "h", "POST", "/api/withdraw")
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = s.Finalize(context.Background(), "k", "h", 201, []byte(`{}`), "application/json")
	}()

	rec, err := s.WaitForCompletion(ctx, "k", "h")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
}

func TestWaitForCompletionHonoursContext(t *testing.T) {
	s := newTestStore()
	ok, err := s.Reserve(context.Background(), "k", "h", "POST", "/api/withdraw")
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = s.WaitForCompletion(ctx, "k", "h")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
