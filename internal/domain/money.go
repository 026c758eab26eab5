package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are stored as BIGINT cents so balances never pass through floating point.
const (
	centsPerUnit  = 100
	amountPlaces  = 2
	maxAmountText = "9999999999.99"
)

var (
	minTransactionAmount = decimal.NewFromInt(1)
	maxTransactionAmount = decimal.RequireFromString(maxAmountText)
	hundred              = decimal.NewFromInt(centsPerUnit)
)

// Money is an amount of the ledger currency expressed in cents.
type Money struct {
	Amount   int64
	Currency string
}

// NewMoney creates a Money value in the ledger currency.
func NewMoney(cents int64) Money {
	return Money{Amount: cents, Currency: Currency}
}

// ToDecimal converts cents to a decimal with two places.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(hundred)
}

// String returns the amount as a fixed two-place decimal string, e.g. "1300.00".
func (m Money) String() string {
	return m.ToDecimal().StringFixed(amountPlaces)
}

// FromDecimal converts a decimal to cents, truncating anything past two places.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(hundred).IntPart()
}

// FormatCents renders cents as a decimal string.
func FormatCents(cents int64) string {
	return NewMoney(cents).String()
}

// ParseAmount validates a user-supplied transaction amount and converts it to cents.
// Amounts must have at most two decimal places and lie within [1.00, 9999999999.99].
func ParseAmount(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(amountPlaces)) {
		return 0, fmt.Errorf("%w: at most %d decimal places allowed", ErrInvalidAmount, amountPlaces)
	}
	if d.LessThan(minTransactionAmount) {
		return 0, fmt.Errorf("%w: must be at least %s", ErrInvalidAmount, minTransactionAmount.StringFixed(amountPlaces))
	}
	if d.GreaterThan(maxTransactionAmount) {
		return 0, fmt.Errorf("%w: must not exceed %s", ErrInvalidAmount, maxAmountText)
	}
	return FromDecimal(d), nil
}

// ParseAmountString parses a decimal string and validates it with ParseAmount.
func ParseAmountString(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, s)
	}
	return ParseAmount(d)
}
