// Package idempotency remembers the outcome of money-moving requests so that
// a client retrying with the same Idempotency-Key gets the original answer
// instead of moving money twice.
//
// Keys are namespaced per user (see ScopedKey). The ledger database is the
// source of truth: a key is reserved before the handler runs and finalized
// with the response afterwards, so a retry that races the first attempt
// waits for it instead of executing. Redis, when configured, only caches
// finalized responses.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

// Replay sources reported in Record.ServedBy.
const (
	ServedByLedger = "store"
	ServedByCache  = "cache"
)

const cachePrefix = "ledger:replay:"

// Record is a finalized response ready to be replayed.
type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	ServedBy    string
}

// Store reserves, finalizes and replays idempotency keys.
type Store struct {
	redis   redis.Cmdable
	queries repository.Querier
	ttl     time.Duration
	poll    time.Duration
}

// NewStore returns a store backed by queries. redis may be nil; ttl bounds
// how long a cached replay lives.
func NewStore(redis redis.Cmdable, queries repository.Querier, ttl time.Duration) *Store {
	return &Store{redis: redis, queries: queries, ttl: ttl, poll: 50 * time.Millisecond}
}

// ScopedKey namespaces a client-supplied key by the authenticated user so two
// users can never replay each other's responses.
func ScopedKey(userID, key string) string {
	return userID + ":" + key
}

// Lookup returns the finalized response for key. It fails with
// ErrHashMismatch when key was used for a different request body and with
// ErrInProgress while the first request is still running.
func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if rec, ok := s.cached(ctx, key); ok {
		if rec.RequestHash != requestHash {
			return nil, ErrHashMismatch
		}
		return rec, nil
	}

	row, err := s.queries.GetIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if row.RequestHash != requestHash {
		return nil, ErrHashMismatch
	}
	if row.InProgress {
		return nil, ErrInProgress
	}

	rec := fromRow(row)
	s.remember(ctx, rec)
	return rec, nil
}

// Reserve claims key for a new request. It reports false when another request
// already holds the key.
func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	_, err := s.queries.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Method:         method,
		Path:           path,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	}
	return false, fmt.Errorf("reserve idempotency key: %w", err)
}

// Finalize stores the response of the request holding key.
func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	row, err := s.queries.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		ResponseStatus: int32(status),
		ResponseBody:   body,
		ContentType:    contentType,
		IdempotencyKey: key,
		RequestHash:    requestHash,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}

	rec := fromRow(row)
	s.remember(ctx, rec)
	return rec, nil
}

// WaitForCompletion polls until the request holding key finalizes or ctx ends.
func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if !errors.Is(err, ErrInProgress) {
			return rec, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func fromRow(row repository.IdempotencyKey) *Record {
	return &Record{
		Key:         row.IdempotencyKey,
		RequestHash: row.RequestHash,
		Status:      int(row.ResponseStatus),
		Body:        row.ResponseBody,
		ContentType: row.ContentType,
		ServedBy:    ServedByLedger,
	}
}

type cachedReplay struct {
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

func (s *Store) cached(ctx context.Context, key string) (*Record, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, cachePrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("replay cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var c cachedReplay
	if err := json.Unmarshal(raw, &c); err != nil {
		zap.L().Warn("replay cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &Record{
		Key:         key,
		RequestHash: c.Hash,
		Status:      c.Status,
		Body:        c.Body,
		ContentType: c.ContentType,
		ServedBy:    ServedByCache,
	}, true
}

func (s *Store) remember(ctx context.Context, rec *Record) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(cachedReplay{
		Hash:        rec.RequestHash,
		Status:      rec.Status,
		Body:        rec.Body,
		ContentType: rec.ContentType,
	})
	if err != nil {
		zap.L().Warn("encode replay cache entry", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, cachePrefix+rec.Key, payload, s.ttl).Err(); err != nil {
		zap.L().Warn("replay cache write failed", zap.Error(err))
	}
}
