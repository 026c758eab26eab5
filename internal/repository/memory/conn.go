package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/ayo6706/mobile-money-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// conn is a query set bound either to a unit of work (tx != nil) or to the
// store in autocommit mode.
type conn struct {
	s  *Store
	tx *txState
}

var _ repository.Querier = (*conn)(nil)

func (c *conn) within(fn func(t *txState) error) error {
	if c.tx != nil {
		return fn(c.tx)
	}
	t := c.s.begin()
	defer t.rollback()
	if err := fn(t); err != nil {
		return err
	}
	return t.commit()
}

func (c *conn) enqueue(o op) error {
	return c.within(func(t *txState) error {
		t.ops = append(t.ops, o)
		return nil
	})
}

func (c *conn) CreateUser(_ context.Context, user *models.User) error {
	user.CreatedAt = c.s.now()
	u := *user
	err := c.enqueue(func(d *dataset) (func(), error) {
		if _, ok := d.usernames[u.Username]; ok {
			return nil, uniqueViolation("users_username_key")
		}
		if _, ok := d.users[u.ID]; ok {
			return nil, uniqueViolation("users_pkey")
		}
		d.users[u.ID] = u
		d.usernames[u.Username] = u.ID
		return func() {
			delete(d.users, u.ID)
			delete(d.usernames, u.Username)
		}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (c *conn) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	u, ok := c.s.data.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (c *conn) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	c.s.mu.RLock()
	id, ok := c.s.data.usernames[username]
	c.s.mu.RUnlock()
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c.GetUser(ctx, id)
}

func (c *conn) CreateAccount(_ context.Context, account *models.Account) error {
	now := c.s.now()
	account.CreatedAt, account.UpdatedAt = now, now
	a := *account
	err := c.enqueue(func(d *dataset) (func(), error) {
		if _, ok := d.accounts[a.ID]; ok {
			return nil, uniqueViolation("accounts_pkey")
		}
		if _, ok := d.phones[a.PhoneNumber]; ok {
			return nil, uniqueViolation("accounts_phone_number_key")
		}
		if _, ok := d.owners[a.UserID]; ok {
			return nil, uniqueViolation("accounts_user_id_key")
		}
		d.accounts[a.ID] = a
		d.phones[a.PhoneNumber] = a.ID
		d.owners[a.UserID] = a.ID
		d.accountOrder = append(d.accountOrder, a.ID)
		return func() {
			delete(d.accounts, a.ID)
			delete(d.phones, a.PhoneNumber)
			delete(d.owners, a.UserID)
			d.accountOrder = d.accountOrder[:len(d.accountOrder)-1]
		}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// account resolves id against the unit of work first, then committed state.
func (c *conn) account(id uuid.UUID) (*models.Account, error) {
	if c.tx != nil {
		if a, ok := c.tx.accounts[id]; ok {
			return &a, nil
		}
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	a, ok := c.s.data.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (c *conn) GetAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	return c.account(id)
}

func (c *conn) GetAccountByOwner(_ context.Context, userID uuid.UUID) (*models.Account, error) {
	c.s.mu.RLock()
	id, ok := c.s.data.owners[userID]
	c.s.mu.RUnlock()
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c.account(id)
}

func (c *conn) GetAccountByPhone(_ context.Context, phone string) (*models.Account, error) {
	c.s.mu.RLock()
	id, ok := c.s.data.phones[phone]
	c.s.mu.RUnlock()
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c.account(id)
}

func (c *conn) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if _, err := c.account(id); err != nil {
		return nil, err
	}
	var out *models.Account
	err := c.within(func(t *txState) error {
		if err := t.lock(ctx, id); err != nil {
			return err
		}
		a, err := c.account(id)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *conn) modifyAccount(ctx context.Context, id uuid.UUID, fn func(a *models.Account)) (int64, error) {
	var rows int64
	err := c.within(func(t *txState) error {
		if _, err := c.account(id); err != nil {
			return nil
		}
		if err := t.lock(ctx, id); err != nil {
			return err
		}
		a, err := (&conn{s: c.s, tx: t}).account(id)
		if err != nil {
			return nil
		}
		fn(a)
		a.UpdatedAt = c.s.now()
		t.stage(*a)
		rows = 1
		return nil
	})
	return rows, err
}

func (c *conn) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance int64) (int64, error) {
	if balance < 0 {
		return 0, fmt.Errorf("failed to update balance: %w", checkViolation("accounts_balance_check"))
	}
	return c.modifyAccount(ctx, id, func(a *models.Account) { a.Balance = balance })
}

func (c *conn) SetAccountActive(ctx context.Context, id uuid.UUID, active bool) (int64, error) {
	return c.modifyAccount(ctx, id, func(a *models.Account) { a.Active = active })
}

func (c *conn) ListAccounts(_ context.Context, limit, offset int32) ([]models.Account, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	out := []models.Account{}
	order := c.s.data.accountOrder
	for i := len(order) - 1 - int(offset); i >= 0 && len(out) < int(limit); i-- {
		out = append(out, c.s.data.accounts[order[i]])
	}
	return out, nil
}

func (c *conn) CountAccounts(context.Context) (int64, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return int64(len(c.s.data.accounts)), nil
}

// CreateTransaction stamps created_at when the row is applied at commit, so
// timestamps follow the order rows become visible.
func (c *conn) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	t := *txn
	err := c.enqueue(func(d *dataset) (func(), error) {
		if _, ok := d.txnRefs[t.Reference]; ok {
			return nil, uniqueViolation("transactions_reference_key")
		}
		t.CreatedAt = c.s.now()
		txn.CreatedAt = t.CreatedAt
		d.txns = append(d.txns, t)
		d.txnRefs[t.Reference] = struct{}{}
		d.byAccount[t.AccountID] = append(d.byAccount[t.AccountID], len(d.txns)-1)
		return func() {
			idx := d.byAccount[t.AccountID]
			d.byAccount[t.AccountID] = idx[:len(idx)-1]
			delete(d.txnRefs, t.Reference)
			d.txns = d.txns[:len(d.txns)-1]
		}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (c *conn) ListTransactionsByAccount(_ context.Context, accountID uuid.UUID, limit int32) ([]models.Transaction, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	idx := c.s.data.byAccount[accountID]
	out := []models.Transaction{}
	for i := len(idx) - 1; i >= 0 && len(out) < int(limit); i-- {
		out = append(out, c.s.data.txns[idx[i]])
	}
	return out, nil
}

func (c *conn) CountTransactionsByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return int64(len(c.s.data.byAccount[accountID])), nil
}

func (c *conn) GetTransferImbalances(context.Context) ([]repository.TransferImbalance, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	byTransfer := make(map[uuid.UUID]*repository.TransferImbalance)
	for _, t := range c.s.data.txns {
		if t.TransferID == nil {
			continue
		}
		r, ok := byTransfer[*t.TransferID]
		if !ok {
			r = &repository.TransferImbalance{TransferID: *t.TransferID}
			byTransfer[*t.TransferID] = r
		}
		r.Legs++
		switch t.Type {
		case "SEND":
			r.Debited += t.Amount
		case "RECEIVE":
			r.Credited += t.Amount
		}
	}

	var out []repository.TransferImbalance
	for _, r := range byTransfer {
		if r.Legs != 2 || r.Debited != r.Credited {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransferID.String() < out[j].TransferID.String() })
	return out, nil
}

func (c *conn) GetBalanceDrifts(context.Context) ([]repository.BalanceDrift, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	var out []repository.BalanceDrift
	for _, id := range c.s.data.accountOrder {
		idx := c.s.data.byAccount[id]
		if len(idx) == 0 {
			continue
		}
		a := c.s.data.accounts[id]
		last := c.s.data.txns[idx[len(idx)-1]]
		if a.Balance != last.BalanceAfter {
			out = append(out, repository.BalanceDrift{AccountID: id, Balance: a.Balance, LedgerAmount: last.BalanceAfter})
		}
	}
	return out, nil
}

func (c *conn) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	return c.enqueue(func(d *dataset) (func(), error) {
		if _, ok := d.revoked[tokenID]; ok {
			return func() {}, nil
		}
		d.revoked[tokenID] = expiresAt
		return func() { delete(d.revoked, tokenID) }, nil
	})
}

func (c *conn) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	_, ok := c.s.data.revoked[tokenID]
	return ok, nil
}

func (c *conn) InsertAuditLog(_ context.Context, arg repository.InsertAuditLogParams) error {
	return c.enqueue(func(d *dataset) (func(), error) {
		d.audit = append(d.audit, arg)
		return func() { d.audit = d.audit[:len(d.audit)-1] }, nil
	})
}

func (c *conn) GetIdempotencyKey(_ context.Context, key string) (repository.IdempotencyKey, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	k, ok := c.s.data.idem[key]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return k, nil
}

func (c *conn) ReserveIdempotencyKey(_ context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	now := c.s.now()
	k := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		ContentType:    "application/json",
		InProgress:     true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := c.enqueue(func(d *dataset) (func(), error) {
		if _, ok := d.idem[k.IdempotencyKey]; ok {
			return nil, pgx.ErrNoRows
		}
		d.idem[k.IdempotencyKey] = k
		return func() { delete(d.idem, k.IdempotencyKey) }, nil
	})
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	return k, nil
}

func (c *conn) FinalizeIdempotencyKey(_ context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	var out repository.IdempotencyKey
	err := c.enqueue(func(d *dataset) (func(), error) {
		prev, ok := d.idem[arg.IdempotencyKey]
		if !ok || prev.RequestHash != arg.RequestHash {
			return nil, pgx.ErrNoRows
		}
		k := prev
		k.ResponseStatus = arg.ResponseStatus
		k.ResponseBody = append([]byte(nil), arg.ResponseBody...)
		k.ContentType = arg.ContentType
		k.InProgress = false
		k.UpdatedAt = c.s.now()
		d.idem[arg.IdempotencyKey] = k
		out = k
		return func() { d.idem[arg.IdempotencyKey] = prev }, nil
	})
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	return out, nil
}
