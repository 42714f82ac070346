package memory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	acc := &domain.Account{ID: "a1", OwnerID: "u1", CurrentBalance: decimal.NewFromInt(10)}
	require.NoError(t, s.CreateAccount(ctx, acc))
	acc.CurrentBalance = decimal.NewFromInt(999)

	got, err := s.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(decimal.NewFromInt(10)))

	got.Name = "changed"
	again, err := s.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, again.Name)
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.GetAccount(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.ErrorIs(t, s.SaveAccount(ctx, &domain.Account{ID: "x"}), domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAccount(ctx, "x"), domain.ErrNotFound)

	_, err = s.GetTransaction(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.ErrorIs(t, s.SaveTransaction(ctx, &domain.Transaction{ID: "x"}), domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "x"), domain.ErrNotFound)
}

func TestStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.CreateAccount(ctx, &domain.Account{ID: "a"}))
	assert.Error(t, s.CreateAccount(ctx, &domain.Account{ID: "a"}))
	assert.Error(t, s.CreateAccount(ctx, &domain.Account{}))

	require.NoError(t, s.CreateTransaction(ctx, &domain.Transaction{ID: "t"}))
	assert.Error(t, s.CreateTransaction(ctx, &domain.Transaction{ID: "t"}))
}

func TestListTransactionsFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	day := func(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }

	rows := []*domain.Transaction{
		{ID: "1", OwnerID: "u1", AccountID: "a", Category: "Food", Date: day(1)},
		{ID: "2", OwnerID: "u1", AccountID: "a", Category: "Rent", Date: day(10)},
		{ID: "3", OwnerID: "u1", AccountID: "b", Category: "Food", Date: day(5)},
		{ID: "4", OwnerID: "u2", AccountID: "c", Category: "Food", Date: day(7)},
		{ID: "5", OwnerID: "u1", AccountID: "a", Category: "Food", Date: day(5), CreatedAt: day(20)},
	}
	for _, r := range rows {
		require.NoError(t, s.CreateTransaction(ctx, r))
	}

	ids := func(txs []*domain.Transaction) []string {
		out := make([]string, 0, len(txs))
		for _, tx := range txs {
			out = append(out, tx.ID)
		}
		return out
	}

	from, to := day(2), day(9)
	tests := []struct {
		name   string
		filter domain.TransactionFilter
		want   []string
	}{
		{"owner only", domain.TransactionFilter{OwnerID: "u1"}, []string{"2", "5", "3", "1"}},
		{"account", domain.TransactionFilter{OwnerID: "u1", AccountID: "a"}, []string{"2", "5", "1"}},
		{"category", domain.TransactionFilter{OwnerID: "u1", Category: "Food"}, []string{"5", "3", "1"}},
		{"date range", domain.TransactionFilter{OwnerID: "u1", From: &from, To: &to}, []string{"5", "3"}},
		{"all conditions", domain.TransactionFilter{OwnerID: "u1", AccountID: "b", Category: "Food", From: &from, To: &to}, []string{"3"}},
		{"nothing", domain.TransactionFilter{OwnerID: "u3"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	n, err := s.CountTransactions(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
