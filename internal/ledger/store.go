// Package ledger defines the persistence and locking contracts the
// balance-keeping services depend on.
package ledger

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// AccountRepository provides account persistence primitives.
type AccountRepository interface {
	// CreateAccount inserts a new account.
	CreateAccount(ctx context.Context, acc *domain.Account) error

	// GetAccount loads an account by id. It returns domain.ErrAccountNotFound
	// when no such account exists.
	GetAccount(ctx context.Context, id string) (*domain.Account, error)

	// ListAccounts returns every account owned by ownerID, oldest first.
	ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error)

	// SaveAccount overwrites a stored account.
	SaveAccount(ctx context.Context, acc *domain.Account) error

	// DeleteAccount removes an account by id.
	DeleteAccount(ctx context.Context, id string) error
}

// TransactionRepository provides transaction persistence primitives.
type TransactionRepository interface {
	// CreateTransaction inserts a new transaction.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error

	// GetTransaction loads a transaction by id. It returns
	// domain.ErrTransactionNotFound when no such transaction exists.
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	// SaveTransaction overwrites a stored transaction.
	SaveTransaction(ctx context.Context, tx *domain.Transaction) error

	// DeleteTransaction removes a transaction by id.
	DeleteTransaction(ctx context.Context, id string) error

	// ListTransactions returns the transactions matching filter, newest first.
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)

	// CountTransactions returns how many transactions reference accountID.
	CountTransactions(ctx context.Context, accountID string) (int, error)
}

// Store is the full ledger persistence layer.
type Store interface {
	AccountRepository
	TransactionRepository
}

// Transactor is implemented by stores that can commit several writes
// atomically. fn receives a Store bound to the open transaction; returning
// an error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error
}
