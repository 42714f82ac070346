package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionService is the transaction use-case surface the handlers need.
type TransactionService interface {
	Create(ctx context.Context, ownerID string, in domain.NewTransaction) (*domain.Transaction, error)
	Update(ctx context.Context, ownerID, id string, patch domain.TransactionPatch) (*domain.Transaction, error)
	Delete(ctx context.Context, ownerID, id string) error
	List(ctx context.Context, ownerID string, filter domain.TransactionFilter) ([]domain.TransactionView, error)
	Categories(ctx context.Context, ownerID string) ([]string, error)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	transactions TransactionService
	log          zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(transactions TransactionService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{transactions: transactions, log: log}
}

// transactionRequest carries create and update bodies. Absent fields stay
// nil so updates only touch what the client sent.
type transactionRequest struct {
	AccountID   *string          `json:"accountId"`
	Date        *string          `json:"date"`
	Amount      *decimal.Decimal `json:"amount"`
	Type        *string          `json:"type"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
}

func (req transactionRequest) newTransaction() (domain.NewTransaction, error) {
	var in domain.NewTransaction
	if req.AccountID != nil {
		in.AccountID = strings.TrimSpace(*req.AccountID)
	}
	if req.Date != nil && strings.TrimSpace(*req.Date) != "" {
		d, err := domain.ParseDate(*req.Date)
		if err != nil {
			return in, err
		}
		in.Date = d
	}
	if req.Amount == nil {
		return in, domain.Invalid("amount", "is required")
	}
	in.Amount = *req.Amount
	if req.Type == nil {
		return in, domain.Invalid("type", "is required")
	}
	t, err := domain.ParseTransactionType(*req.Type)
	if err != nil {
		return in, err
	}
	in.Type = t
	if req.Category != nil {
		in.Category = strings.TrimSpace(*req.Category)
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	return in, domain.ValidateNewTransaction(in)
}

func (req transactionRequest) patch() (domain.TransactionPatch, error) {
	var p domain.TransactionPatch
	if req.AccountID != nil {
		id := strings.TrimSpace(*req.AccountID)
		p.AccountID = &id
	}
	if req.Date != nil {
		d, err := domain.ParseDate(*req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	p.Amount = req.Amount
	if req.Type != nil {
		t, err := domain.ParseTransactionType(*req.Type)
		if err != nil {
			return p, err
		}
		p.Type = &t
	}
	if req.Category != nil {
		c := strings.TrimSpace(*req.Category)
		p.Category = &c
	}
	p.Description = req.Description
	return p, domain.ValidateTransactionPatch(p)
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	from, to, err := dateRange(query.Get("startDate"), query.Get("endDate"))
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	filter := domain.TransactionFilter{
		AccountID: query.Get("accountId"),
		Category:  query.Get("category"),
		From:      from,
		To:        to,
	}

	views, err := h.transactions.List(r.Context(), owner, filter)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	// Return array directly for frontend compatibility
	if views == nil {
		views = []domain.TransactionView{}
	}
	middleware.WriteJSON(w, http.StatusOK, views)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	in, err := req.newTransaction()
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	tx, err := h.transactions.Create(r.Context(), owner, in)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	patch, err := req.patch()
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	tx, err := h.transactions.Update(r.Context(), owner, r.PathValue("id"), patch)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	if err := h.transactions.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, message("Transaction removed"))
}
