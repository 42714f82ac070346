package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/reconciler"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountService is the account use-case surface the handlers need.
type AccountService interface {
	Create(ctx context.Context, ownerID string, in domain.NewAccount) (*domain.Account, error)
	List(ctx context.Context, ownerID string) ([]*domain.Account, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Account, error)
	Update(ctx context.Context, ownerID, id string, patch domain.AccountPatch) (*domain.Account, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Auditor reports balance drift for one account.
type Auditor interface {
	AuditAccount(ctx context.Context, accountID string) (reconciler.Drift, error)
}

// AccountsHandler handles account-related endpoints.
type AccountsHandler struct {
	accounts AccountService
	auditor  Auditor
	log      zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(accounts AccountService, auditor Auditor, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{accounts: accounts, auditor: auditor, log: log}
}

type accountRequest struct {
	Name           *string          `json:"name"`
	Type           *string          `json:"type"`
	InitialBalance *decimal.Decimal `json:"initialBalance"`
	// Balance is the field name older clients send for the opening balance.
	Balance *decimal.Decimal `json:"balance"`
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	accounts, err := h.accounts.List(r.Context(), owner)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	if accounts == nil {
		accounts = []*domain.Account{}
	}
	middleware.WriteJSON(w, http.StatusOK, accounts)
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	in := domain.NewAccount{InitialBalance: decimal.Zero}
	if req.Name != nil {
		in.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		t, err := domain.ParseAccountType(*req.Type)
		if err != nil {
			middleware.WriteServiceError(w, h.log, err)
			return
		}
		in.Type = t
	}
	switch {
	case req.InitialBalance != nil:
		in.InitialBalance = *req.InitialBalance
	case req.Balance != nil:
		in.InitialBalance = *req.Balance
	}

	if err := domain.ValidateNewAccount(in); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	acc, err := h.accounts.Create(r.Context(), owner, in)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, acc)
}

// GetAccount handles GET /api/accounts/{id}
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	acc, err := h.accounts.Get(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, acc)
}

// UpdateAccount handles PUT /api/accounts/{id}. Balances cannot be set.
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	var patch domain.AccountPatch
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		patch.Name = &name
	}
	if req.Type != nil {
		t, err := domain.ParseAccountType(*req.Type)
		if err != nil {
			middleware.WriteServiceError(w, h.log, err)
			return
		}
		patch.Type = &t
	}
	if err := domain.ValidateAccountPatch(patch); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	acc, err := h.accounts.Update(r.Context(), owner, r.PathValue("id"), patch)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, acc)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, message("Account removed"))
}

// AuditAccount handles GET /api/accounts/{id}/audit
func (h *AccountsHandler) AuditAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	// Ownership check before the audit reads the ledger.
	acc, err := h.accounts.Get(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	drift, err := h.auditor.AuditAccount(r.Context(), acc.ID)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, struct {
		reconciler.Drift
		InSync bool `json:"inSync"`
	}{drift, drift.InSync()})
}
