package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/ayo6706/mobile-money-ledger/internal/repository"
	"github.com/ayo6706/mobile-money-ledger/internal/security"
	"github.com/ayo6706/mobile-money-ledger/internal/validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var validate = validation.New()

// AccountService covers account holders: registration, the balance and
// history views, and administrative activation.
type AccountService struct {
	store   QueryStore
	secrets security.SecretHasher
	audit   *AuditService
}

func NewAccountService(store QueryStore, secrets security.SecretHasher) *AccountService {
	return &AccountService{
		store:   store,
		secrets: secrets,
		audit:   NewAuditService(),
	}
}

// RegisterRequest is a signup. Passwords stop at bcrypt's byte limit.
type RegisterRequest struct {
	Username    string `json:"username" validate:"notblank,max=150"`
	Password    string `json:"password" validate:"required,min=8,maxbytes=72"`
	FirstName   string `json:"first_name" validate:"max=150"`
	LastName    string `json:"last_name" validate:"max=150"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	PhoneNumber string `json:"phone_number" validate:"phone"`
	PIN         string `json:"pin" validate:"pin"`
}

func (r RegisterRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, validation.Message(err))
	}
	return nil
}

// Register creates a user and its wallet account (balance zero, active) in one
// unit of work.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*models.User, *models.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	passwordHash, err := s.secrets.Hash(req.Password)
	if err != nil {
		return nil, nil, err
	}
	pinHash, err := s.secrets.Hash(req.PIN)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Role:         domain.RoleUser,
		Active:       true,
	}
	account := &models.Account{
		ID:          uuid.New(),
		UserID:      user.ID,
		PhoneNumber: req.PhoneNumber,
		Active:      true,
		PinHash:     pinHash,
	}

	err = s.store.RunInTx(ctx, func(q repository.Querier) error {
		if err := q.CreateUser(ctx, user); err != nil {
			return err
		}
		return q.CreateAccount(ctx, account)
	})
	if err != nil {
		return nil, nil, duplicateOr(err, "register account")
	}

	zap.L().Info("account registered",
		zap.String("user_id", user.ID.String()),
		zap.String("account_id", account.ID.String()))
	return user, account, nil
}

// EnsureAdmin creates the bootstrap administrator when no user with that
// username exists. Administrators have no wallet account.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}

	queries := s.store.Queries()
	if _, err := queries.GetUserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := s.secrets.Hash(password)
	if err != nil {
		return err
	}
	admin := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
	}
	if err := queries.CreateUser(ctx, admin); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}
	zap.L().Info("bootstrap admin created", zap.String("username", username))
	return nil
}

// AccountForUser resolves the wallet owned by userID.
func (s *AccountService) AccountForUser(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	account, err := s.store.Queries().GetAccountByOwner(ctx, userID)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "get account by owner")
	}
	return account, nil
}

// BalanceView is the account holder's balance summary.
type BalanceView struct {
	PhoneNumber   string
	Balance       int64
	AccountHolder string
}

func (s *AccountService) Balance(ctx context.Context, userID uuid.UUID) (*BalanceView, error) {
	queries := s.store.Queries()
	user, err := queries.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "get user")
	}
	account, err := queries.GetAccountByOwner(ctx, userID)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "get account by owner")
	}
	return &BalanceView{
		PhoneNumber:   account.PhoneNumber,
		Balance:       account.Balance,
		AccountHolder: user.FullName(),
	}, nil
}

// History is the newest-first slice of an account's log plus the total count.
type History struct {
	Count        int64
	Transactions []models.Transaction
}

// History returns up to limit records; limit <= 0 selects the default page
// size and larger values are capped.
func (s *AccountService) History(ctx context.Context, userID uuid.UUID, limit int) (*History, error) {
	switch {
	case limit <= 0:
		limit = domain.DefaultHistoryLimit
	case limit > domain.MaxHistoryLimit:
		limit = domain.MaxHistoryLimit
	}

	account, err := s.AccountForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	queries := s.store.Queries()
	count, err := queries.CountTransactionsByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	txns, err := queries.ListTransactionsByAccount(ctx, account.ID, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return &History{Count: count, Transactions: txns}, nil
}

// ListAccounts returns one page of accounts for administrators.
func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]models.Account, int64, error) {
	if limit <= 0 || limit > domain.MaxHistoryLimit {
		limit = domain.MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	queries := s.store.Queries()
	total, err := queries.CountAccounts(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}
	accounts, err := queries.ListAccounts(ctx, int32(limit), int32(offset))
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, total, nil
}

// SetActive enables or soft-disables an account and records the change in the
// audit log. Setting the current state again is a no-op.
func (s *AccountService) SetActive(ctx context.Context, actorID, accountID uuid.UUID, active bool) (*models.Account, error) {
	var out *models.Account
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		account, err := q.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		if account.Active == active {
			out = account
			return nil
		}

		rows, err := q.SetAccountActive(ctx, accountID, active)
		if err != nil {
			return fmt.Errorf("set account active: %w", err)
		}
		if err := requireExactlyOne(rows, "set account active"); err != nil {
			return err
		}

		action := "deactivated"
		if active {
			action = "activated"
		}
		metadata, err := json.Marshal(map[string]any{"phone_number": account.PhoneNumber})
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		if err := s.audit.Write(ctx, q, "account", accountID, &actorID, action,
			activeState(account.Active), activeState(active), metadata); err != nil {
			return err
		}

		account.Active = active
		out = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func activeState(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func duplicateOr(err error, operation string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
