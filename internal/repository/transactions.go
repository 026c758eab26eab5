package repository

import (
	"context"
	"fmt"

	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const transactionColumns = `id, reference, account_id, transaction_type, amount, counterparty_phone, external_ref,
	description, status, balance_before, balance_after, transfer_id, created_at`

func (q *Queries) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	query := `INSERT INTO transactions (id, reference, account_id, transaction_type, amount, counterparty_phone,
		external_ref, description, status, balance_before, balance_after, transfer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING created_at`
	err := q.db.QueryRow(ctx, query,
		txn.ID, txn.Reference, txn.AccountID, txn.Type, txn.Amount, txn.CounterpartyPhone,
		txn.ExternalRef, txn.Description, txn.Status, txn.BalanceBefore, txn.BalanceAfter, toNullPgUUID(txn.TransferID),
	).Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (q *Queries) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit int32) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`
	rows, err := q.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		var (
			t          models.Transaction
			transferID pgtype.UUID
		)
		if err := rows.Scan(&t.ID, &t.Reference, &t.AccountID, &t.Type, &t.Amount, &t.CounterpartyPhone, &t.ExternalRef,
			&t.Description, &t.Status, &t.BalanceBefore, &t.BalanceAfter, &transferID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.TransferID = fromNullPgUUID(transferID)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (q *Queries) CountTransactionsByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

func (q *Queries) GetTransferImbalances(ctx context.Context) ([]TransferImbalance, error) {
	query := `
		SELECT transfer_id,
			COUNT(*) AS legs,
			COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'SEND'), 0)::BIGINT AS debited,
			COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'RECEIVE'), 0)::BIGINT AS credited
		FROM transactions
		WHERE transfer_id IS NOT NULL
		GROUP BY transfer_id
		HAVING COUNT(*) <> 2
			OR COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'SEND'), 0)
				<> COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'RECEIVE'), 0)`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer imbalances: %w", err)
	}
	defer rows.Close()

	var out []TransferImbalance
	for rows.Next() {
		var r TransferImbalance
		if err := rows.Scan(&r.TransferID, &r.Legs, &r.Debited, &r.Credited); err != nil {
			return nil, fmt.Errorf("failed to scan transfer imbalance: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) GetBalanceDrifts(ctx context.Context) ([]BalanceDrift, error) {
	query := `
		SELECT a.id, a.balance, t.balance_after
		FROM accounts a
		JOIN LATERAL (
			SELECT balance_after FROM transactions
			WHERE account_id = a.id
			ORDER BY created_at DESC, seq DESC
			LIMIT 1
		) t ON TRUE
		WHERE a.balance <> t.balance_after`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance drifts: %w", err)
	}
	defer rows.Close()

	var out []BalanceDrift
	for rows.Next() {
		var r BalanceDrift
		if err := rows.Scan(&r.AccountID, &r.Balance, &r.LedgerAmount); err != nil {
			return nil, fmt.Errorf("failed to scan balance drift: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
