package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision of BigQuery NUMERIC.
const numericScale = 9

// AccountRow represents an account record in BigQuery.
type AccountRow struct {
	AccountID      string    `bigquery:"account_id"` // REQUIRED
	OwnerID        string    `bigquery:"owner_id"`   // REQUIRED
	AccountName    string    `bigquery:"account_name"`
	AccountType    string    `bigquery:"account_type"`
	InitialBalance *big.Rat  `bigquery:"initial_balance"` // NUMERIC
	CurrentBalance *big.Rat  `bigquery:"current_balance"` // NUMERIC
	CreatedTS      time.Time `bigquery:"created_ts"`
	UpdatedTS      time.Time `bigquery:"updated_ts"`
}

// TransactionRow represents a transaction record in BigQuery.
// transaction_date duplicates the day of transaction_ts for partitioning.
type TransactionRow struct {
	TransactionID   string     `bigquery:"transaction_id"` // REQUIRED
	OwnerID         string     `bigquery:"owner_id"`       // REQUIRED
	AccountID       string     `bigquery:"account_id"`     // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"`
	TransactionTS   time.Time  `bigquery:"transaction_ts"`
	Amount          *big.Rat   `bigquery:"amount"` // NUMERIC, never negative
	TransactionType string     `bigquery:"transaction_type"`
	CategoryName    string     `bigquery:"category_name"`
	Description     string     `bigquery:"description"`
	CreatedTS       time.Time  `bigquery:"created_ts"`
	UpdatedTS       time.Time  `bigquery:"updated_ts"`
}

func ratOf(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func decimalOf(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, numericScale)
}

// NewAccountRow maps a domain account to its row.
func NewAccountRow(a *domain.Account) *AccountRow {
	return &AccountRow{
		AccountID:      a.ID,
		OwnerID:        a.OwnerID,
		AccountName:    a.Name,
		AccountType:    string(a.Type),
		InitialBalance: ratOf(a.InitialBalance),
		CurrentBalance: ratOf(a.CurrentBalance),
		CreatedTS:      a.CreatedAt,
		UpdatedTS:      a.UpdatedAt,
	}
}

// Account maps the row back to a domain account.
func (r *AccountRow) Account() *domain.Account {
	return &domain.Account{
		ID:             r.AccountID,
		OwnerID:        r.OwnerID,
		Name:           r.AccountName,
		Type:           domain.AccountType(r.AccountType),
		InitialBalance: decimalOf(r.InitialBalance),
		CurrentBalance: decimalOf(r.CurrentBalance),
		CreatedAt:      r.CreatedTS.UTC(),
		UpdatedAt:      r.UpdatedTS.UTC(),
	}
}

// NewTransactionRow maps a domain transaction to its row.
func NewTransactionRow(t *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:   t.ID,
		OwnerID:         t.OwnerID,
		AccountID:       t.AccountID,
		TransactionDate: civil.DateOf(t.Date),
		TransactionTS:   t.Date,
		Amount:          ratOf(t.Amount),
		TransactionType: string(t.Type),
		CategoryName:    t.Category,
		Description:     t.Description,
		CreatedTS:       t.CreatedAt,
		UpdatedTS:       t.UpdatedAt,
	}
}

// Transaction maps the row back to a domain transaction.
func (r *TransactionRow) Transaction() *domain.Transaction {
	return &domain.Transaction{
		ID:          r.TransactionID,
		OwnerID:     r.OwnerID,
		AccountID:   r.AccountID,
		Date:        r.TransactionTS.UTC(),
		Amount:      decimalOf(r.Amount),
		Type:        domain.TransactionType(r.TransactionType),
		Category:    r.CategoryName,
		Description: r.Description,
		CreatedAt:   r.CreatedTS.UTC(),
		UpdatedAt:   r.UpdatedTS.UTC(),
	}
}
