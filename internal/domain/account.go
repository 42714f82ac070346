package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the kind of financial account.
type AccountType string

const (
	AccountTypeChecking   AccountType = "Checking"
	AccountTypeSavings    AccountType = "Savings"
	AccountTypeCreditCard AccountType = "Credit Card"
	AccountTypeCash       AccountType = "Cash"
	AccountTypeInvestment AccountType = "Investment"
	AccountTypeOther      AccountType = "Other"
)

// AccountTypes lists every accepted account type in display order.
var AccountTypes = []AccountType{
	AccountTypeChecking,
	AccountTypeSavings,
	AccountTypeCreditCard,
	AccountTypeCash,
	AccountTypeInvestment,
	AccountTypeOther,
}

// Account is a user's financial account.
// CurrentBalance is only ever changed by the balance reconciler; clients can
// set InitialBalance once, at creation.
type Account struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"ownerId"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Clone returns a copy that shares no mutable state with a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// NewAccount carries the client-supplied fields for account creation.
type NewAccount struct {
	Name           string          `json:"name" validate:"notblank"`
	Type           AccountType     `json:"type" validate:"oneof=Checking Savings 'Credit Card' Cash Investment Other"`
	InitialBalance decimal.Decimal `json:"initialBalance" validate:"decimal_scale=4"`
}

// AccountPatch holds the mutable account fields. Nil means "keep".
type AccountPatch struct {
	Name *string      `json:"name,omitempty" validate:"omitempty,notblank"`
	Type *AccountType `json:"type,omitempty" validate:"omitempty,oneof=Checking Savings 'Credit Card' Cash Investment Other"`
}

// ApplyTo copies the supplied fields onto a.
func (p AccountPatch) ApplyTo(a *Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool {
	return p.Name == nil && p.Type == nil
}
