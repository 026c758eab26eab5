package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName returns "first last", falling back to the username when both are empty.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// Account is a wallet owned by exactly one user. Balance is in cents.
type Account struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	PhoneNumber string    `json:"phone_number"`
	Balance     int64     `json:"balance"`
	Active      bool      `json:"is_active"`
	PinHash     string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transaction is an immutable record of one balance-affecting event.
type Transaction struct {
	ID                uuid.UUID  `json:"id"`
	Reference         string     `json:"transaction_id"`
	AccountID         uuid.UUID  `json:"account_id"`
	Type              string     `json:"transaction_type"`
	Amount            int64      `json:"amount"`
	CounterpartyPhone *string    `json:"recipient_phone"`
	ExternalRef       string     `json:"reference"`
	Description       string     `json:"description"`
	Status            string     `json:"status"`
	BalanceBefore     int64      `json:"balance_before"`
	BalanceAfter      int64      `json:"balance_after"`
	TransferID        *uuid.UUID `json:"transfer_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
