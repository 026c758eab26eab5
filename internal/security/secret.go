// Package security hashes and verifies account secrets (login passwords and
// transaction PINs).
package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SecretVerifier checks a plaintext secret against a stored hash.
type SecretVerifier interface {
	Verify(hash, secret string) (bool, error)
}

// SecretHasher produces hashes that the matching SecretVerifier accepts.
type SecretHasher interface {
	Hash(secret string) (string, error)
}

// Bcrypt hashes secrets with bcrypt at the configured cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher; costs outside bcrypt's range fall back to
// bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports false for a mismatch and an error only when the stored hash
// itself is unusable.
func (b *Bcrypt) Verify(hash, secret string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("verify secret: %w", err)
}
