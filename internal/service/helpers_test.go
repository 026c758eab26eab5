package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/auth"
	"github.com/ayo6706/mobile-money-ledger/internal/idgen"
	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/ayo6706/mobile-money-ledger/internal/repository/memory"
	"github.com/ayo6706/mobile-money-ledger/internal/security"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPIN = "1234"

// switchableIDs hands out random ids until fixed is set.
type switchableIDs struct {
	mu    sync.Mutex
	fixed string
	gen   idgen.Generator
}

func (s *switchableIDs) NewTransactionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fixed != "" {
		return s.fixed
	}
	return s.gen.NewTransactionID()
}

func (s *switchableIDs) fix(id string) {
	s.mu.Lock()
	s.fixed = id
	s.mu.Unlock()
}

type fixture struct {
	store    QueryStore
	mem      *memory.Store
	ids      *switchableIDs
	ledger   *LedgerService
	accounts *AccountService
	auth     *AuthService
	tokens   *auth.TokenManager
}

var phoneSeq atomic.Int64

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.NewStore(5 * time.Second)
	f := newFixtureWith(t, mem)
	f.mem = mem
	return f
}

func newFixtureWith(t *testing.T, store QueryStore) *fixture {
	t.Helper()

	hasher := security.NewBcrypt(bcrypt.MinCost)
	ids := &switchableIDs{gen: idgen.New()}

	tokens, err := auth.NewTokenManager(auth.Config{
		Secret:     strings.Repeat("k", auth.MinSecretLength),
		Issuer:     "ledger-test",
		Audience:   "ledger-test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)

	return &fixture{
		store:    store,
		ids:      ids,
		ledger:   NewLedgerService(store, hasher, ids),
		accounts: NewAccountService(store, hasher),
		auth:     NewAuthService(store, tokens, auth.NewRevocationList(store.Queries(), nil), hasher),
		tokens:   tokens,
	}
}

// open registers a user with a fresh phone number and deposits opening cents.
func (f *fixture) open(t *testing.T, username string, opening int64) *models.Account {
	t.Helper()
	phone := fmt.Sprintf("+2547%08d", phoneSeq.Add(1))
	_, account, err := f.accounts.Register(context.Background(), RegisterRequest{
		Username:    username,
		Password:    "password123",
		FirstName:   strings.ToUpper(username[:1]) + username[1:],
		PhoneNumber: phone,
		PIN:         testPIN,
	})
	require.NoError(t, err)
	if opening > 0 {
		_, err = f.ledger.Deposit(context.Background(), account.ID, opening, "opening")
		require.NoError(t, err)
	}
	return account
}

func (f *fixture) balance(t *testing.T, account *models.Account) int64 {
	t.Helper()
	a, err := f.store.Queries().GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	return a.Balance
}

func (f *fixture) history(t *testing.T, account *models.Account) []models.Transaction {
	t.Helper()
	txns, err := f.store.Queries().ListTransactionsByAccount(context.Background(), account.ID, 1000)
	require.NoError(t, err)
	return txns
}
