package handler

import (
	"net/http"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/ayo6706/mobile-money-ledger/internal/service"
)

// WalletHandler serves the account holder's own wallet: balance, history and
// money movement. The wallet is always the one owned by the bearer.
type WalletHandler struct {
	accounts *service.AccountService
	ledger   *service.LedgerService
}

func NewWalletHandler(accounts *service.AccountService, ledger *service.LedgerService) *WalletHandler {
	return &WalletHandler{accounts: accounts, ledger: ledger}
}

type sendRequest struct {
	RecipientPhone string `json:"recipient_phone" validate:"notblank,max=15"`
	Amount         Amount `json:"amount" validate:"required"`
	PIN            string `json:"pin" validate:"notblank,max=10"`
	Description    string `json:"description" validate:"max=200"`
}

type depositRequest struct {
	Amount    Amount `json:"amount" validate:"required"`
	Reference string `json:"reference" validate:"max=100"`
}

type withdrawRequest struct {
	Amount      Amount `json:"amount" validate:"required"`
	PIN         string `json:"pin" validate:"notblank,max=10"`
	Description string `json:"description" validate:"max=200"`
}

type movementResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Recipient     string `json:"recipient,omitempty"`
	NewBalance    string `json:"new_balance"`
	Currency      string `json:"currency"`
}

type transactionView struct {
	ID              string    `json:"id"`
	TransactionType string    `json:"transaction_type"`
	Amount          string    `json:"amount"`
	RecipientPhone  *string   `json:"recipient_phone"`
	Reference       string    `json:"reference"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	TransactionID   string    `json:"transaction_id"`
	BalanceBefore   string    `json:"balance_before"`
	BalanceAfter    string    `json:"balance_after"`
	CreatedAt       time.Time `json:"created_at"`
}

func newTransactionView(t models.Transaction) transactionView {
	return transactionView{
		ID:              t.ID.String(),
		TransactionType: t.Type,
		Amount:          domain.FormatCents(t.Amount),
		RecipientPhone:  t.CounterpartyPhone,
		Reference:       t.ExternalRef,
		Description:     t.Description,
		Status:          t.Status,
		TransactionID:   t.Reference,
		BalanceBefore:   domain.FormatCents(t.BalanceBefore),
		BalanceAfter:    domain.FormatCents(t.BalanceAfter),
		CreatedAt:       t.CreatedAt,
	}
}

// Balance handles GET /api/balance.
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	view, err := h.accounts.Balance(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "get balance")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{
		"phone_number":   view.PhoneNumber,
		"balance":        domain.FormatCents(view.Balance),
		"currency":       domain.Currency,
		"account_holder": view.AccountHolder,
	})
}

// Send handles POST /api/send.
func (h *WalletHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if !validRequest(w, r, req) {
		return
	}

	account, err := h.accounts.AccountForUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "send money")
		return
	}
	res, err := h.ledger.Transfer(r.Context(), service.TransferRequest{
		SenderID:       account.ID,
		RecipientPhone: req.RecipientPhone,
		Amount:         req.Amount.Cents,
		PIN:            req.PIN,
		Description:    req.Description,
	})
	if err != nil {
		respondServiceError(w, r, err, "send money")
		return
	}

	RespondJSON(w, http.StatusOK, movementResponse{
		Message:       "Money sent successfully",
		TransactionID: res.TransactionID,
		Amount:        domain.FormatCents(res.Amount),
		Recipient:     res.RecipientPhone,
		NewBalance:    domain.FormatCents(res.NewBalance),
		Currency:      domain.Currency,
	})
}

// Deposit handles POST /api/deposit.
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if !validRequest(w, r, req) {
		return
	}

	account, err := h.accounts.AccountForUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "deposit")
		return
	}
	res, err := h.ledger.Deposit(r.Context(), account.ID, req.Amount.Cents, req.Reference)
	if err != nil {
		respondServiceError(w, r, err, "deposit")
		return
	}

	RespondJSON(w, http.StatusOK, movementResponse{
		Message:       "Deposit successful",
		TransactionID: res.TransactionID,
		Amount:        domain.FormatCents(res.Amount),
		NewBalance:    domain.FormatCents(res.NewBalance),
		Currency:      domain.Currency,
	})
}

// Withdraw handles POST /api/withdraw.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if !validRequest(w, r, req) {
		return
	}

	account, err := h.accounts.AccountForUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "withdraw")
		return
	}
	res, err := h.ledger.Withdraw(r.Context(), service.WithdrawRequest{
		AccountID:   account.ID,
		Amount:      req.Amount.Cents,
		PIN:         req.PIN,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(w, r, err, "withdraw")
		return
	}

	RespondJSON(w, http.StatusOK, movementResponse{
		Message:       "Withdrawal successful",
		TransactionID: res.TransactionID,
		Amount:        domain.FormatCents(res.Amount),
		NewBalance:    domain.FormatCents(res.NewBalance),
		Currency:      domain.Currency,
	})
}

// Transactions handles GET /api/transactions?limit=N.
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	limit, err := queryInt(r, "limit", domain.DefaultHistoryLimit)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid", err.Error())
		return
	}

	history, err := h.accounts.History(r.Context(), userID, limit)
	if err != nil {
		respondServiceError(w, r, err, "list transactions")
		return
	}

	views := make([]transactionView, 0, len(history.Transactions))
	for _, t := range history.Transactions {
		views = append(views, newTransactionView(t))
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"count":        history.Count,
		"transactions": views,
	})
}
