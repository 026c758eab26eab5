package handler

import (
	"net/http"

	"github.com/ayo6706/mobile-money-ledger/internal/service"
)

type AuthHandler struct {
	auth     *service.AuthService
	accounts *service.AccountService
}

func NewAuthHandler(auth *service.AuthService, accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{auth: auth, accounts: accounts}
}

type userView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}

	user, account, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "register")
		return
	}

	RespondJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"user": userView{
			ID:          user.ID.String(),
			Username:    user.Username,
			FullName:    user.FullName(),
			Email:       user.Email,
			PhoneNumber: account.PhoneNumber,
		},
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"notblank"`
		Password string `json:"password" validate:"required"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if !validRequest(w, r, req) {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, r, err, "login")
		return
	}

	user := userView{
		ID:       res.User.ID.String(),
		Username: res.User.Username,
		FullName: res.User.FullName(),
		Email:    res.User.Email,
	}
	if res.Account != nil {
		user.PhoneNumber = res.Account.PhoneNumber
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"access":  res.Tokens.Access,
		"refresh": res.Tokens.Refresh,
		"user":    user,
	})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh" validate:"notblank"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if !validRequest(w, r, req) {
		return
	}

	access, err := h.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		respondServiceError(w, r, err, "refresh token")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"access": access})
}

// Logout handles POST /api/auth/logout. It always succeeds for an
// authenticated caller; a bad or missing refresh token is ignored.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r, &req); err != nil {
		RespondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
		return
	}
	h.auth.Logout(r.Context(), req.Refresh)
	RespondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
