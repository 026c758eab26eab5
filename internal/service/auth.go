package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/auth"
	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/ayo6706/mobile-money-ledger/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Revoker tracks refresh tokens invalidated by logout.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthService handles login, token refresh and logout.
type AuthService struct {
	store     QueryStore
	tokens    *auth.TokenManager
	revoked   Revoker
	passwords security.SecretVerifier
}

func NewAuthService(store QueryStore, tokens *auth.TokenManager, revoked Revoker, passwords security.SecretVerifier) *AuthService {
	return &AuthService{
		store:     store,
		tokens:    tokens,
		revoked:   revoked,
		passwords: passwords,
	}
}

type LoginResult struct {
	Tokens  auth.TokenPair
	User    *models.User
	Account *models.Account
}

// Login checks credentials and issues a token pair. Regular users must own a
// wallet account; administrators log in without one.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	queries := s.store.Queries()
	user, err := queries.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err, domain.ErrInvalidCredentials, "get user")
	}
	ok, err := s.passwords.Verify(user.PasswordHash, password)
	if err != nil {
		zap.L().Warn("unusable password hash", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, domain.ErrUserInactive
	}

	var account *models.Account
	if user.Role != domain.RoleAdmin {
		account, err = queries.GetAccountByOwner(ctx, user.ID)
		if err != nil {
			return nil, notFound(err, domain.ErrAccountNotFound, "get account by owner")
		}
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Tokens: pair, User: user, Account: account}, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.RefreshToken)
	if err != nil {
		return "", err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", fmt.Errorf("%w: token revoked", domain.ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return "", fmt.Errorf("%w: invalid user id", domain.ErrInvalidToken)
	}
	user, err := s.store.Queries().GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: unknown user", domain.ErrInvalidToken)
		}
		return "", fmt.Errorf("get user: %w", err)
	}
	if !user.Active {
		return "", domain.ErrUserInactive
	}
	return s.tokens.IssueAccess(user.ID, user.Role)
}

// Logout revokes the refresh token when one is given. It never fails: an
// unparseable token or a failed revocation write is only logged.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	claims, err := s.tokens.Parse(refreshToken, auth.RefreshToken)
	if err != nil {
		zap.L().Debug("logout with invalid refresh token", zap.Error(err))
		return
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		zap.L().Warn("refresh token revocation failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
}
