package domain

const (
	// Currency is the display label for every amount in the ledger.
	Currency = "KES"

	TxTypeDeposit  = "DEPOSIT"
	TxTypeWithdraw = "WITHDRAW"
	TxTypeSend     = "SEND"
	TxTypeReceive  = "RECEIVE"

	TxStatusPending = "PENDING"
	TxStatusSuccess = "SUCCESS"
	TxStatusFailed  = "FAILED"

	RoleUser  = "user"
	RoleAdmin = "admin"

	DefaultDepositDescription  = "Deposit via agent"
	DefaultWithdrawDescription = "Cash withdrawal"

	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)
