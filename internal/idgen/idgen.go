// Package idgen produces public transaction identifiers.
package idgen

import (
	"encoding/base32"

	"github.com/google/uuid"
)

// Prefix marks every generated transaction identifier.
const Prefix = "TXN"

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generator creates transaction identifiers.
type Generator interface {
	NewTransactionID() string
}

// RandomGenerator derives identifiers from random (version 4) UUIDs, giving
// 122 random bits per identifier with no coordination between nodes.
type RandomGenerator struct{}

func New() RandomGenerator {
	return RandomGenerator{}
}

// NewTransactionID returns e.g. "TXNHBQW2Z4UMNEMJPQ7VXK3LDRGTA".
func (RandomGenerator) NewTransactionID() string {
	id := uuid.New()
	return Prefix + encoding.EncodeToString(id[:])
}

// Func adapts a plain function to Generator.
type Func func() string

func (f Func) NewTransactionID() string {
	return f()
}
