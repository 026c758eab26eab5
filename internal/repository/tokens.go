package repository

import (
	"context"
	"fmt"
	"time"
)

func (q *Queries) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := q.db.Exec(ctx, `INSERT INTO revoked_tokens (token_id, expires_at, revoked_at)
		VALUES ($1, $2, NOW()) ON CONFLICT (token_id) DO NOTHING`, tokenID, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (q *Queries) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`, tokenID).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return revoked, nil
}
