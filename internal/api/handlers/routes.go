package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
)

// Router groups the endpoint handlers served by the API.
type Router struct {
	Accounts     *AccountsHandler
	Transactions *TransactionsHandler
	Categories   *CategoriesHandler
	Jobs         *JobsHandler
}

// Handler builds the request multiplexer. auth guards every /api/ route;
// /health stays public.
func (rt Router) Handler(auth func(http.Handler) http.Handler) http.Handler {
	api := http.NewServeMux()

	// Accounts endpoints
	api.HandleFunc("GET /api/accounts", rt.Accounts.ListAccounts)
	api.HandleFunc("POST /api/accounts", rt.Accounts.CreateAccount)
	api.HandleFunc("GET /api/accounts/{id}", rt.Accounts.GetAccount)
	api.HandleFunc("PUT /api/accounts/{id}", rt.Accounts.UpdateAccount)
	api.HandleFunc("DELETE /api/accounts/{id}", rt.Accounts.DeleteAccount)
	api.HandleFunc("GET /api/accounts/{id}/audit", rt.Accounts.AuditAccount)

	// Transactions endpoints
	api.HandleFunc("GET /api/transactions", rt.Transactions.ListTransactions)
	api.HandleFunc("POST /api/transactions", rt.Transactions.CreateTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", rt.Transactions.UpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", rt.Transactions.DeleteTransaction)

	// Categories endpoints
	api.HandleFunc("GET /api/categories", rt.Categories.ListCategories)
	api.HandleFunc("POST /api/transactions/suggest-category", rt.Categories.SuggestCategory)

	// Jobs endpoints
	api.HandleFunc("POST /api/exports", rt.Jobs.CreateExport)
	api.HandleFunc("POST /api/notion-sync", rt.Jobs.StartNotionSync)
	api.HandleFunc("GET /api/jobs", rt.Jobs.ListJobs)
	api.HandleFunc("GET /api/jobs/{id}", rt.Jobs.GetJob)

	mux := http.NewServeMux()
	mux.Handle("/api/", auth(api))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	return mux
}
