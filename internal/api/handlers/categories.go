package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/categorizer"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// CategoryLister returns the categories a user has used.
type CategoryLister interface {
	Categories(ctx context.Context, ownerID string) ([]string, error)
}

// Suggester proposes a category for a description.
type Suggester interface {
	Suggest(ctx context.Context, ownerID, description string, txType domain.TransactionType) (categorizer.Suggestion, error)
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	categories CategoryLister
	suggester  Suggester
	log        zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler. suggester may be
// nil when no model is configured.
func NewCategoriesHandler(categories CategoryLister, suggester Suggester, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{categories: categories, suggester: suggester, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	categories, err := h.categories.Categories(r.Context(), owner)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// SuggestCategory handles POST /api/transactions/suggest-category
func (h *CategoriesHandler) SuggestCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	if h.suggester == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Category suggestions are not configured")
		return
	}

	var req struct {
		Description string `json:"description"`
		Type        string `json:"type"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	var txType domain.TransactionType
	if req.Type != "" {
		t, err := domain.ParseTransactionType(req.Type)
		if err != nil {
			middleware.WriteServiceError(w, h.log, err)
			return
		}
		txType = t
	}

	suggestion, err := h.suggester.Suggest(r.Context(), owner, req.Description, txType)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, suggestion)
}
