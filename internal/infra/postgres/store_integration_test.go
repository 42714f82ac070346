//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/lock"
	"github.com/dvloznov/finance-ledger/internal/service"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile("../../../migrations/postgres/0001_create_ledger.sql")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, string(schema))
	require.NoError(t, err)

	return NewStore(db)
}

func TestIntegration_Postgres_BalanceLifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	locker := lock.NewLocalLocker()
	accounts := service.NewAccountService(store, locker, zerolog.Nop())
	transactions := service.NewTransactionService(store, locker, zerolog.Nop())

	x, err := accounts.Create(ctx, "u1", domain.NewAccount{Name: "X", Type: domain.AccountTypeChecking, InitialBalance: decimal.NewFromInt(100)})
	require.NoError(t, err)
	y, err := accounts.Create(ctx, "u1", domain.NewAccount{Name: "Y", Type: domain.AccountTypeCash})
	require.NoError(t, err)

	tx, err := transactions.Create(ctx, "u1", domain.NewTransaction{
		AccountID: x.ID, Date: time.Now().UTC(), Amount: decimal.NewFromInt(30),
		Type: domain.TransactionTypeExpense, Category: "Food",
	})
	require.NoError(t, err)

	amount := decimal.NewFromInt(50)
	_, err = transactions.Update(ctx, "u1", tx.ID, domain.TransactionPatch{AccountID: &y.ID, Amount: &amount})
	require.NoError(t, err)

	gotX, err := store.GetAccount(ctx, x.ID)
	require.NoError(t, err)
	gotY, err := store.GetAccount(ctx, y.ID)
	require.NoError(t, err)
	assert.True(t, gotX.CurrentBalance.Equal(decimal.NewFromInt(100)))
	assert.True(t, gotY.CurrentBalance.Equal(decimal.NewFromInt(-50)))

	views, err := transactions.List(ctx, "u1", domain.TransactionFilter{Category: "Food"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Y", views[0].AccountName)

	require.NoError(t, transactions.Delete(ctx, "u1", tx.ID))
	gotY, err = store.GetAccount(ctx, y.ID)
	require.NoError(t, err)
	assert.True(t, gotY.CurrentBalance.IsZero())
}

func TestIntegration_Postgres_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	now := time.Now().UTC()

	acc := &domain.Account{ID: "a1", OwnerID: "u1", Name: "A", Type: domain.AccountTypeCash, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.CreateAccount(ctx, acc))

	err := store.WithinTx(ctx, func(ctx context.Context, st ledger.Store) error {
		acc.CurrentBalance = decimal.NewFromInt(999)
		require.NoError(t, st.SaveAccount(ctx, acc))
		return st.SaveTransaction(ctx, &domain.Transaction{ID: "missing"})
	})
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)

	got, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.IsZero())
}
