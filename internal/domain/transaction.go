package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType decides the sign of a transaction's balance effect.
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "Income"
	TransactionTypeExpense  TransactionType = "Expense"
	TransactionTypeTransfer TransactionType = "Transfer"
)

// Transaction is a single ledger entry. Amount is never negative; the
// sign of its effect on the account comes from Type.
type Transaction struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"ownerId"`
	AccountID   string          `json:"accountId"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Clone returns a copy of t.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// NewTransaction carries the client-supplied fields for transaction creation.
type NewTransaction struct {
	AccountID   string          `json:"accountId" validate:"notblank"`
	Date        time.Time       `json:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"nonnegative_decimal,decimal_scale=4"`
	Type        TransactionType `json:"type" validate:"oneof=Income Expense Transfer"`
	Category    string          `json:"category" validate:"notblank"`
	Description string          `json:"description"`
}

// TransactionPatch is a partial update. A nil field keeps the stored value,
// so an explicit zero amount is distinguishable from an omitted one.
type TransactionPatch struct {
	AccountID   *string          `json:"accountId,omitempty" validate:"omitempty,notblank"`
	Date        *time.Time       `json:"date,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty" validate:"omitempty,nonnegative_decimal,decimal_scale=4"`
	Type        *TransactionType `json:"type,omitempty" validate:"omitempty,oneof=Income Expense Transfer"`
	Category    *string          `json:"category,omitempty" validate:"omitempty,notblank"`
	Description *string          `json:"description,omitempty"`
}

// ApplyTo copies the supplied fields onto t.
func (p TransactionPatch) ApplyTo(t *Transaction) {
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
}

// TransactionFilter selects transactions. All set fields must match.
// From and To are inclusive.
type TransactionFilter struct {
	OwnerID   string
	AccountID string
	Category  string
	From      *time.Time
	To        *time.Time
}

// Matches reports whether t satisfies every set condition of f.
func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.OwnerID != "" && t.OwnerID != f.OwnerID {
		return false
	}
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.From != nil && t.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Date.After(*f.To) {
		return false
	}
	return true
}

// TransactionView is a transaction annotated with its account for display.
type TransactionView struct {
	*Transaction
	AccountName string      `json:"accountName"`
	AccountType AccountType `json:"accountType"`
}

// SortByDateDesc orders transactions newest first, breaking ties on creation time.
func SortByDateDesc(txs []*Transaction) {
	slices.SortStableFunc(txs, compareDateDesc)
}

func compareDateDesc(a, b *Transaction) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}
