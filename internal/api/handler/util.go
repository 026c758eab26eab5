package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/ayo6706/mobile-money-ledger/internal/api/middleware"
	"github.com/ayo6706/mobile-money-ledger/internal/api/problem"
	"github.com/ayo6706/mobile-money-ledger/internal/domain"
	"github.com/ayo6706/mobile-money-ledger/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// respondServiceError maps an error returned by a service onto a problem
// response. Anything unclassified is logged and reported as a 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	switch {
	case errors.Is(err, domain.ErrSelfTransfer):
		RespondError(w, r, http.StatusBadRequest, "transfer/self-transfer", err.Error())
		return
	case errors.Is(err, domain.ErrUserInactive):
		RespondError(w, r, http.StatusForbidden, "auth/user-disabled", "Account is disabled")
		return
	case errors.Is(err, domain.ErrAccountInactive):
		RespondError(w, r, http.StatusConflict, "account/inactive", err.Error())
		return
	}

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		RespondError(w, r, http.StatusNotFound, "resource/not-found", err.Error())
		return
	case domain.KindUnauthorized:
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", unauthorizedMessage(err))
		return
	case domain.KindInvalidInput:
		RespondError(w, r, http.StatusBadRequest, "request/invalid", err.Error())
		return
	case domain.KindInsufficientFunds:
		RespondError(w, r, http.StatusBadRequest, "ledger/insufficient-funds", "Insufficient balance")
		return
	case domain.KindConflict:
		RespondError(w, r, http.StatusConflict, "resource/conflict", err.Error())
		return
	}

	if status, problemType, message, ok := mapDBError(err); ok {
		RespondError(w, r, status, problemType, message)
		return
	}
	zap.L().Error(operation+" failed",
		zap.Error(err),
		zap.String("trace_id", middleware.TraceIDFromContext(r.Context())))
	RespondError(w, r, http.StatusInternalServerError, "internal-server-error", operation+" failed")
}

// unauthorizedMessage hides token parser internals from clients.
func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidPIN):
		return "Invalid PIN"
	case errors.Is(err, domain.ErrInvalidToken):
		return "Invalid or expired token"
	default:
		return err.Error()
	}
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, false, errors.New("missing user in auth context")
	}

	actorID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid user_id in auth context")
	}

	return actorID, middleware.UserRoleFromContext(r.Context()) == domain.RoleAdmin, nil
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}

// decodeJSON reads a single JSON object from the request body. An empty body
// decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// Amount is a request amount in cents. It accepts a JSON string ("100.50") or
// number (100.5) and enforces the transaction amount rules on decode.
type Amount struct {
	Cents int64
	Set   bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	cents, err := domain.ParseAmountString(raw)
	if err != nil {
		return err
	}
	a.Cents = cents
	a.Set = true
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validation.New()
	v.RegisterCustomTypeFunc(amountValue, Amount{})
	return v
}

// amountValue hands an Amount to the validator as its cents, or as nothing
// when the field was absent so that "required" rejects it.
func amountValue(v reflect.Value) any {
	a, ok := v.Interface().(Amount)
	if !ok || !a.Set {
		return nil
	}
	return a.Cents
}

// validRequest reports the first rule req breaks as a 400 and returns false.
func validRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := validate.Struct(req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid", validation.Message(err))
		return false
	}
	return true
}

// respondDecodeError reports a malformed body. Amount rule violations keep
// their message; other decode failures get a generic one.
func respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrInvalidAmount) {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount: "+err.Error())
		return
	}
	RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s: must be a non-negative integer", name)
	}
	return v, nil
}
