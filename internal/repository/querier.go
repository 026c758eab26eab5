package repository

import (
	"context"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/google/uuid"
)

// Querier is the full data access contract. Single-row lookups return
// pgx.ErrNoRows when nothing matches, regardless of the backing store.
type Querier interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByOwner(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error)
	// GetAccountForUpdate holds an exclusive lock on the account until the
	// surrounding unit of work ends.
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance int64) (int64, error)
	SetAccountActive(ctx context.Context, id uuid.UUID, active bool) (int64, error)
	ListAccounts(ctx context.Context, limit, offset int32) ([]models.Account, error)
	CountAccounts(ctx context.Context) (int64, error)

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit int32) ([]models.Transaction, error)
	CountTransactionsByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	GetTransferImbalances(ctx context.Context) ([]TransferImbalance, error)
	GetBalanceDrifts(ctx context.Context) ([]BalanceDrift, error)

	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)

	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error

	GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error)
}

// TransferImbalance is a transfer whose SEND and RECEIVE legs disagree.
type TransferImbalance struct {
	TransferID uuid.UUID
	Legs       int64
	Debited    int64
	Credited   int64
}

// BalanceDrift is an account whose balance differs from its latest balance_after.
type BalanceDrift struct {
	AccountID    uuid.UUID
	Balance      int64
	LedgerAmount int64
}

type InsertAuditLogParams struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
}

type FinalizeIdempotencyKeyParams struct {
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	IdempotencyKey string
	RequestHash    string
}
