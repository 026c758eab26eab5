package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/ayo6706/mobile-money-ledger/internal/idgen"
	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/ayo6706/mobile-money-ledger/internal/observability"
	"github.com/ayo6706/mobile-money-ledger/internal/repository"
	"github.com/ayo6706/mobile-money-ledger/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// LedgerService moves money: deposits, withdrawals and peer transfers. Each
// call is a single unit of work; on any error nothing is written.
type LedgerService struct {
	store QueryStore
	pins  security.SecretVerifier
	ids   idgen.Generator
}

func NewLedgerService(store QueryStore, pins security.SecretVerifier, ids idgen.Generator) *LedgerService {
	return &LedgerService{
		store: store,
		pins:  pins,
		ids:   ids,
	}
}

// DepositResult is returned by Deposit and Withdraw.
type DepositResult struct {
	TransactionID string
	Amount        int64
	NewBalance    int64
}

type WithdrawResult = DepositResult

type TransferResult struct {
	TransactionID  string
	Amount         int64
	RecipientPhone string
	NewBalance     int64
}

type WithdrawRequest struct {
	AccountID   uuid.UUID
	Amount      int64
	PIN         string
	Description string
}

type TransferRequest struct {
	SenderID       uuid.UUID
	RecipientPhone string
	Amount         int64
	PIN            string
	Description    string
}

// Deposit credits amount cents to the account. reference is the caller's
// external reference (agent receipt number) and may be empty.
func (s *LedgerService) Deposit(ctx context.Context, accountID uuid.UUID, amount int64, reference string) (res *DepositResult, err error) {
	defer func() { recordOutcome("deposit", err) }()

	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}

	err = s.store.RunInTx(ctx, func(q repository.Querier) error {
		account, err := q.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		if !account.Active {
			return domain.ErrAccountInactive
		}
		if account.Balance > math.MaxInt64-amount {
			return fmt.Errorf("%w: balance limit exceeded", domain.ErrInvalidAmount)
		}

		txn, err := s.post(ctx, q, account, domain.TxTypeDeposit, amount, entry{
			externalRef: reference,
			description: domain.DefaultDepositDescription,
		})
		if err != nil {
			return err
		}
		res = &DepositResult{TransactionID: txn.Reference, Amount: amount, NewBalance: txn.BalanceAfter}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("deposit completed",
		zap.String("transaction_id", res.TransactionID),
		zap.String("account_id", accountID.String()),
		zap.Int64("amount", amount))
	return res, nil
}

// Withdraw debits req.Amount after verifying the account PIN. A wrong PIN is
// reported before insufficient funds.
func (s *LedgerService) Withdraw(ctx context.Context, req WithdrawRequest) (res *WithdrawResult, err error) {
	defer func() { recordOutcome("withdraw", err) }()

	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, req.Amount)
	}
	if err := s.authorize(ctx, req.AccountID, req.PIN); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = domain.DefaultWithdrawDescription
	}

	err = s.store.RunInTx(ctx, func(q repository.Querier) error {
		account, err := q.GetAccountForUpdate(ctx, req.AccountID)
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		if !account.Active {
			return domain.ErrAccountInactive
		}
		if account.Balance < req.Amount {
			return domain.ErrInsufficientFunds
		}

		txn, err := s.post(ctx, q, account, domain.TxTypeWithdraw, -req.Amount, entry{description: description})
		if err != nil {
			return err
		}
		res = &WithdrawResult{TransactionID: txn.Reference, Amount: req.Amount, NewBalance: txn.BalanceAfter}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("withdrawal completed",
		zap.String("transaction_id", res.TransactionID),
		zap.String("account_id", req.AccountID.String()),
		zap.Int64("amount", req.Amount))
	return res, nil
}

// Transfer moves req.Amount from the sender to the account registered under
// req.RecipientPhone. Checks run in a fixed order: sender exists, sender
// active, PIN, funds, recipient exists, not self, recipient active.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (res *TransferResult, err error) {
	defer func() { recordOutcome("transfer", err) }()

	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, req.Amount)
	}
	if err := s.authorize(ctx, req.SenderID, req.PIN); err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(q repository.Querier) error {
		recipient, err := q.GetAccountByPhone(ctx, req.RecipientPhone)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("get recipient: %w", err)
			}
			recipient = nil
		}

		ids := []uuid.UUID{req.SenderID}
		if recipient != nil {
			ids = append(ids, recipient.ID)
		}
		locked := make(map[uuid.UUID]*models.Account, len(ids))
		for _, id := range lockOrder(ids...) {
			account, err := q.GetAccountForUpdate(ctx, id)
			if err != nil {
				if id == req.SenderID {
					return notFound(err, domain.ErrAccountNotFound, "lock sender")
				}
				return notFound(err, domain.ErrRecipientNotFound, "lock recipient")
			}
			locked[id] = account
		}

		sender := locked[req.SenderID]
		if !sender.Active {
			return domain.ErrAccountInactive
		}
		if sender.Balance < req.Amount {
			return domain.ErrInsufficientFunds
		}
		if recipient == nil {
			return domain.ErrRecipientNotFound
		}
		if recipient.ID == sender.ID {
			return domain.ErrSelfTransfer
		}
		recipient = locked[recipient.ID]
		if !recipient.Active {
			return domain.ErrAccountInactive
		}
		if recipient.Balance > math.MaxInt64-req.Amount {
			return fmt.Errorf("%w: recipient balance limit exceeded", domain.ErrInvalidAmount)
		}

		transferID := uuid.New()
		sent, err := s.post(ctx, q, sender, domain.TxTypeSend, -req.Amount, entry{
			counterparty: recipient.PhoneNumber,
			description:  req.Description,
			transferID:   &transferID,
		})
		if err != nil {
			return err
		}
		if _, err := s.post(ctx, q, recipient, domain.TxTypeReceive, req.Amount, entry{
			counterparty: sender.PhoneNumber,
			description:  fmt.Sprintf("From %s: %s", sender.PhoneNumber, req.Description),
			transferID:   &transferID,
		}); err != nil {
			return err
		}

		res = &TransferResult{
			TransactionID:  sent.Reference,
			Amount:         req.Amount,
			RecipientPhone: recipient.PhoneNumber,
			NewBalance:     sent.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("transfer completed",
		zap.String("transaction_id", res.TransactionID),
		zap.String("sender_id", req.SenderID.String()),
		zap.String("recipient_phone", res.RecipientPhone),
		zap.Int64("amount", req.Amount))
	return res, nil
}

// authorize checks that the account exists, is active and that the PIN
// matches. It runs before any lock is taken; callers re-check activity on the
// locked row.
func (s *LedgerService) authorize(ctx context.Context, accountID uuid.UUID, pin string) error {
	account, err := s.store.Queries().GetAccount(ctx, accountID)
	if err != nil {
		return notFound(err, domain.ErrAccountNotFound, "get account")
	}
	if !account.Active {
		return domain.ErrAccountInactive
	}
	ok, err := s.pins.Verify(account.PinHash, pin)
	if err != nil {
		return fmt.Errorf("verify pin: %w", err)
	}
	if !ok {
		return domain.ErrInvalidPIN
	}
	return nil
}

type entry struct {
	counterparty string
	externalRef  string
	description  string
	transferID   *uuid.UUID
}

// post applies delta to a locked account and appends the matching log record
// in the same unit of work. The account value is updated in place.
func (s *LedgerService) post(ctx context.Context, q repository.Querier, account *models.Account, txType string, delta int64, e entry) (*models.Transaction, error) {
	before := account.Balance
	after := before + delta

	rows, err := q.UpdateAccountBalance(ctx, account.ID, after)
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	if err := requireExactlyOne(rows, "update balance"); err != nil {
		return nil, err
	}
	account.Balance = after

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	txn := &models.Transaction{
		ID:            uuid.New(),
		Reference:     s.ids.NewTransactionID(),
		AccountID:     account.ID,
		Type:          txType,
		Amount:        amount,
		ExternalRef:   e.externalRef,
		Description:   e.description,
		Status:        domain.TxStatusSuccess,
		BalanceBefore: before,
		BalanceAfter:  after,
		TransferID:    e.transferID,
	}
	if e.counterparty != "" {
		phone := e.counterparty
		txn.CounterpartyPhone = &phone
	}
	if err := q.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("append %s record: %w", txType, err)
	}
	return txn, nil
}

func recordOutcome(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	observability.IncrementLedgerOperation(operation, outcome)
}
