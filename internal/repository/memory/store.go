// Package memory is an in-process implementation of repository.Querier used by
// the memory storage driver and by tests. It mirrors the Postgres semantics the
// services rely on: per-account exclusive locks held for the whole unit of
// work, all-or-nothing commits, unique constraints reported as *pgconn.PgError
// and pgx.ErrNoRows for missing rows.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/ayo6706/mobile-money-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrLockTimeout is returned when an account lock cannot be acquired in time.
var ErrLockTimeout = errors.New("lock timeout")

type dataset struct {
	users        map[uuid.UUID]models.User
	usernames    map[string]uuid.UUID
	accounts     map[uuid.UUID]models.Account
	accountOrder []uuid.UUID
	phones       map[string]uuid.UUID
	owners       map[uuid.UUID]uuid.UUID
	txns         []models.Transaction
	txnRefs      map[string]struct{}
	byAccount    map[uuid.UUID][]int
	revoked      map[string]time.Time
	audit        []repository.InsertAuditLogParams
	idem         map[string]repository.IdempotencyKey
}

// Store holds the whole ledger in memory.
type Store struct {
	mu   sync.RWMutex
	data dataset

	lockMu      sync.Mutex
	locks       map[uuid.UUID]chan struct{}
	lockTimeout time.Duration

	now func() time.Time
}

// NewStore creates an empty store. A zero lockTimeout waits for locks until
// the context is done.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		data: dataset{
			users:     make(map[uuid.UUID]models.User),
			usernames: make(map[string]uuid.UUID),
			accounts:  make(map[uuid.UUID]models.Account),
			phones:    make(map[string]uuid.UUID),
			owners:    make(map[uuid.UUID]uuid.UUID),
			txnRefs:   make(map[string]struct{}),
			byAccount: make(map[uuid.UUID][]int),
			revoked:   make(map[string]time.Time),
			idem:      make(map[string]repository.IdempotencyKey),
		},
		locks:       make(map[uuid.UUID]chan struct{}),
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// Queries returns an autocommit query set: every write is its own unit of work.
func (s *Store) Queries() repository.Querier {
	return &conn{s: s}
}

// RunInTx executes fn within a unit of work. Writes become visible to other
// callers only when fn returns nil; locks are released either way, including
// when fn panics.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	t := s.begin()
	defer t.rollback()
	if err := fn(&conn{s: s, tx: t}); err != nil {
		return err
	}
	if err := t.commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// AuditLog returns a copy of the audit entries written so far.
func (s *Store) AuditLog() []repository.InsertAuditLogParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.InsertAuditLogParams, len(s.data.audit))
	copy(out, s.data.audit)
	return out
}

func (s *Store) accountLock(id uuid.UUID) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

// op mutates the dataset and returns a function that reverts the mutation.
type op func(d *dataset) (undo func(), err error)

type txState struct {
	s        *Store
	held     map[uuid.UUID]chan struct{}
	accounts map[uuid.UUID]models.Account
	staged   []uuid.UUID
	ops      []op
	done     bool
}

func (s *Store) begin() *txState {
	return &txState{
		s:        s,
		held:     make(map[uuid.UUID]chan struct{}),
		accounts: make(map[uuid.UUID]models.Account),
	}
}

func (t *txState) lock(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.held[id]; ok {
		return nil
	}
	ch := t.s.accountLock(id)

	var timeout <-chan time.Time
	if t.s.lockTimeout > 0 {
		timer := time.NewTimer(t.s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
		t.held[id] = ch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock account %s: %w", id, ctx.Err())
	case <-timeout:
		return fmt.Errorf("lock account %s: %w", id, ErrLockTimeout)
	}
}

func (t *txState) release() {
	for id, ch := range t.held {
		<-ch
		delete(t.held, id)
	}
	t.done = true
}

func (t *txState) rollback() {
	if t.done {
		return
	}
	t.release()
}

func (t *txState) commit() error {
	defer t.release()

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	ops := append([]op(nil), t.ops...)
	for _, id := range t.staged {
		ops = append(ops, putAccount(t.accounts[id]))
	}

	undos := make([]func(), 0, len(ops))
	for _, apply := range ops {
		undo, err := apply(&t.s.data)
		if err != nil {
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i]()
			}
			return err
		}
		undos = append(undos, undo)
	}
	return nil
}

// stage records a modified copy of an already locked account.
func (t *txState) stage(a models.Account) {
	if _, ok := t.accounts[a.ID]; !ok {
		t.staged = append(t.staged, a.ID)
	}
	t.accounts[a.ID] = a
}

func putAccount(a models.Account) op {
	return func(d *dataset) (func(), error) {
		prev, ok := d.accounts[a.ID]
		if !ok {
			return nil, fmt.Errorf("account %s vanished before commit", a.ID)
		}
		d.accounts[a.ID] = a
		return func() { d.accounts[a.ID] = prev }, nil
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{
		Severity:       "ERROR",
		Code:           "23505",
		Message:        "duplicate key value violates unique constraint \"" + constraint + "\"",
		ConstraintName: constraint,
	}
}

func checkViolation(constraint string) error {
	return &pgconn.PgError{
		Severity:       "ERROR",
		Code:           "23514",
		Message:        "new row violates check constraint \"" + constraint + "\"",
		ConstraintName: constraint,
	}
}
