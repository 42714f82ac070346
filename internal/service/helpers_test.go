package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/memory"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/lock"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

var errStoreDown = errors.New("store unavailable")

// faultyStore fails the named write operations.
type faultyStore struct {
	*memory.Store
	failSaveAccount     int // fail the n-th SaveAccount call (1-based), 0 = never
	failSaveTransaction bool
	failCreateTx        bool
	failDeleteTx        bool
	saveAccountCalls    int
}

func (f *faultyStore) SaveAccount(ctx context.Context, acc *domain.Account) error {
	f.saveAccountCalls++
	if f.failSaveAccount != 0 && f.saveAccountCalls == f.failSaveAccount {
		return errStoreDown
	}
	return f.Store.SaveAccount(ctx, acc)
}

func (f *faultyStore) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if f.failSaveTransaction {
		return errStoreDown
	}
	return f.Store.SaveTransaction(ctx, tx)
}

func (f *faultyStore) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if f.failCreateTx {
		return errStoreDown
	}
	return f.Store.CreateTransaction(ctx, tx)
}

func (f *faultyStore) DeleteTransaction(ctx context.Context, id string) error {
	if f.failDeleteTx {
		return errStoreDown
	}
	return f.Store.DeleteTransaction(ctx, id)
}

type fixture struct {
	store        ledger.Store
	accounts     *AccountService
	transactions *TransactionService
}

func newFixture(t *testing.T, store ledger.Store) *fixture {
	t.Helper()
	if store == nil {
		store = memory.NewStore()
	}
	locker := lock.NewLocalLocker()
	log := zerolog.Nop()
	return &fixture{
		store:        store,
		accounts:     NewAccountService(store, locker, log),
		transactions: NewTransactionService(store, locker, log),
	}
}

func (f *fixture) account(t *testing.T, owner string, initial string) *domain.Account {
	t.Helper()
	acc, err := f.accounts.Create(context.Background(), owner, domain.NewAccount{
		Name:           "Account " + initial,
		Type:           domain.AccountTypeChecking,
		InitialBalance: dec(initial),
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) txn(t *testing.T, owner, accountID string, typ domain.TransactionType, amount string) *domain.Transaction {
	t.Helper()
	tx, err := f.transactions.Create(context.Background(), owner, domain.NewTransaction{
		AccountID: accountID,
		Date:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:    dec(amount),
		Type:      typ,
		Category:  "Groceries",
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	acc, err := f.store.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return acc.CurrentBalance
}

func requireBalance(t *testing.T, f *fixture, accountID, want string) {
	t.Helper()
	got := f.balance(t, accountID)
	require.Truef(t, got.Equal(dec(want)), "balance: want %s, got %s", want, got)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

// txStore adds ledger.Transactor to faultyStore. Writes made inside
// WithinTx are buffered and reach the underlying store only on commit.
type txStore struct {
	*faultyStore
	commits   int
	rollbacks int
}

func (s *txStore) WithinTx(ctx context.Context, fn func(ctx context.Context, st ledger.Store) error) error {
	tx := &bufferedTx{faultyStore: s.faultyStore, accounts: make(map[string]*domain.Account)}
	if err := fn(ctx, tx); err != nil {
		s.rollbacks++
		return err
	}
	for _, apply := range tx.pending {
		if err := apply(ctx); err != nil {
			return err
		}
	}
	s.commits++
	return nil
}

type bufferedTx struct {
	*faultyStore
	accounts map[string]*domain.Account
	pending  []func(ctx context.Context) error
}

func (b *bufferedTx) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if acc, ok := b.accounts[id]; ok {
		return acc.Clone(), nil
	}
	return b.faultyStore.GetAccount(ctx, id)
}

func (b *bufferedTx) SaveAccount(ctx context.Context, acc *domain.Account) error {
	b.saveAccountCalls++
	if b.failSaveAccount != 0 && b.saveAccountCalls == b.failSaveAccount {
		return errStoreDown
	}
	c := acc.Clone()
	b.accounts[c.ID] = c
	b.pending = append(b.pending, func(ctx context.Context) error { return b.Store.SaveAccount(ctx, c) })
	return nil
}

func (b *bufferedTx) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if b.failSaveTransaction {
		return errStoreDown
	}
	c := tx.Clone()
	b.pending = append(b.pending, func(ctx context.Context) error { return b.Store.SaveTransaction(ctx, c) })
	return nil
}

func (b *bufferedTx) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if b.failCreateTx {
		return errStoreDown
	}
	c := tx.Clone()
	b.pending = append(b.pending, func(ctx context.Context) error { return b.Store.CreateTransaction(ctx, c) })
	return nil
}

func (b *bufferedTx) DeleteTransaction(ctx context.Context, id string) error {
	if b.failDeleteTx {
		return errStoreDown
	}
	b.pending = append(b.pending, func(ctx context.Context) error { return b.Store.DeleteTransaction(ctx, id) })
	return nil
}
