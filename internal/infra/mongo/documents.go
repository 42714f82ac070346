package mongo

import (
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field names match the web app's collections, but references are stored
// as strings and amounts as Decimal128. Documents holding ObjectId
// references or double amounts have to be migrated before this store can
// query and decode them.

type accountDoc struct {
	ID             string               `bson:"_id"`
	User           string               `bson:"user"`
	Name           string               `bson:"name"`
	Type           string               `bson:"type"`
	InitialBalance primitive.Decimal128 `bson:"initialBalance"`
	CurrentBalance primitive.Decimal128 `bson:"currentBalance"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

type transactionDoc struct {
	ID          string               `bson:"_id"`
	User        string               `bson:"user"`
	Account     string               `bson:"account"`
	Date        time.Time            `bson:"date"`
	Amount      primitive.Decimal128 `bson:"amount"`
	Type        string               `bson:"type"`
	Category    string               `bson:"category"`
	Description string               `bson:"description"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %s: %w", v, err)
	}
	return d, nil
}

func newAccountDoc(a *domain.Account) (*accountDoc, error) {
	initial, err := toDecimal128(a.InitialBalance)
	if err != nil {
		return nil, err
	}
	current, err := toDecimal128(a.CurrentBalance)
	if err != nil {
		return nil, err
	}
	return &accountDoc{
		ID:             a.ID,
		User:           a.OwnerID,
		Name:           a.Name,
		Type:           string(a.Type),
		InitialBalance: initial,
		CurrentBalance: current,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}, nil
}

func (d *accountDoc) toDomain() (*domain.Account, error) {
	initial, err := fromDecimal128(d.InitialBalance)
	if err != nil {
		return nil, err
	}
	current, err := fromDecimal128(d.CurrentBalance)
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		ID:             d.ID,
		OwnerID:        d.User,
		Name:           d.Name,
		Type:           domain.AccountType(d.Type),
		InitialBalance: initial,
		CurrentBalance: current,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

func newTransactionDoc(t *domain.Transaction) (*transactionDoc, error) {
	amount, err := toDecimal128(t.Amount)
	if err != nil {
		return nil, err
	}
	return &transactionDoc{
		ID:          t.ID,
		User:        t.OwnerID,
		Account:     t.AccountID,
		Date:        t.Date,
		Amount:      amount,
		Type:        string(t.Type),
		Category:    t.Category,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}, nil
}

func (d *transactionDoc) toDomain() (*domain.Transaction, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	return &domain.Transaction{
		ID:          d.ID,
		OwnerID:     d.User,
		AccountID:   d.Account,
		Date:        d.Date.UTC(),
		Amount:      amount,
		Type:        domain.TransactionType(d.Type),
		Category:    d.Category,
		Description: d.Description,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}
