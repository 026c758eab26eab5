package domain

import "errors"

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindInvalidInput
	KindInsufficientFunds
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidInput:
		return "invalid_input"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrRecipientNotFound  = errors.New("recipient not found")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidPIN         = errors.New("invalid pin")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrSelfTransfer       = errors.New("cannot send money to yourself")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is disabled")
	ErrDuplicateAccount   = errors.New("username or phone number already registered")
	ErrInvalidToken       = errors.New("invalid token")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrAccountNotFound, KindNotFound},
	{ErrRecipientNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
	{ErrInvalidPIN, KindUnauthorized},
	{ErrInvalidCredentials, KindUnauthorized},
	{ErrInvalidToken, KindUnauthorized},
	{ErrInvalidAmount, KindInvalidInput},
	{ErrInvalidInput, KindInvalidInput},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrSelfTransfer, KindConflict},
	{ErrAccountInactive, KindConflict},
	{ErrUserInactive, KindConflict},
	{ErrDuplicateAccount, KindConflict},
}

// KindOf returns the classification of err; unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
