package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/repository"
	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "auth:revoked:"

// RevocationList records refresh tokens invalidated by logout. Redis is an
// optional fast path; the database table is authoritative.
type RevocationList struct {
	queries repository.Querier
	redis   *redis.Client
	now     func() time.Time
}

func NewRevocationList(queries repository.Querier, redisClient *redis.Client) *RevocationList {
	return &RevocationList{queries: queries, redis: redisClient, now: time.Now}
}

// Revoke writes the token id to every backend and reports the combined error.
func (l *RevocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	var errs []error
	if l.redis != nil {
		ttl := expiresAt.Sub(l.now())
		if ttl > 0 {
			if err := l.redis.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
				errs = append(errs, fmt.Errorf("redis revoke: %w", err))
			}
		}
	}
	if err := l.queries.RevokeToken(ctx, tokenID, expiresAt); err != nil {
		errs = append(errs, fmt.Errorf("store revoke: %w", err))
	}
	return errors.Join(errs...)
}

func (l *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if l.redis != nil {
		n, err := l.redis.Exists(ctx, revokedKeyPrefix+tokenID).Result()
		if err == nil && n > 0 {
			return true, nil
		}
	}
	revoked, err := l.queries.IsTokenRevoked(ctx, tokenID)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}
