package handler

import (
	"net/http"
	"time"

	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/ayo6706/mobile-money-ledger/internal/models"
	"github.com/ayo6706/mobile-money-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AdminHandler exposes account administration to the admin role.
type AdminHandler struct {
	accounts *service.AccountService
}

func NewAdminHandler(accounts *service.AccountService) *AdminHandler {
	return &AdminHandler{accounts: accounts}
}

type accountView struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PhoneNumber string    `json:"phone_number"`
	Balance     string    `json:"balance"`
	Currency    string    `json:"currency"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func newAccountView(a *models.Account) accountView {
	return accountView{
		ID:          a.ID.String(),
		UserID:      a.UserID.String(),
		PhoneNumber: a.PhoneNumber,
		Balance:     domain.FormatCents(a.Balance),
		Currency:    domain.Currency,
		Active:      a.Active,
		CreatedAt:   a.CreatedAt,
	}
}

// ListAccounts handles GET /api/admin/accounts?limit&offset.
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", domain.MaxHistoryLimit)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid", err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid", err.Error())
		return
	}

	accounts, total, err := h.accounts.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err, "list accounts")
		return
	}
	views := make([]accountView, 0, len(accounts))
	for i := range accounts {
		views = append(views, newAccountView(&accounts[i]))
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"count":    total,
		"accounts": views,
	})
}

// Activate handles POST /api/admin/accounts/{id}/activate.
func (h *AdminHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /api/admin/accounts/{id}/deactivate.
func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return
	}

	account, err := h.accounts.SetActive(r.Context(), actorID, accountID, active)
	if err != nil {
		respondServiceError(w, r, err, "update account status")
		return
	}
	RespondJSON(w, http.StatusOK, newAccountView(account))
}
