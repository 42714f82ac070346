package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/memory"
	"github.com/dvloznov/finance-ledger/internal/reconciler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	// 1. Expense of 30 on an account opened with 100.
	x := f.account(t, alice, "100")
	requireBalance(t, f, x.ID, "100")
	tx := f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "30")
	requireBalance(t, f, x.ID, "70")

	// 2. Amount 30 -> 50 on the same account.
	_, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{Amount: ptr(dec("50"))})
	require.NoError(t, err)
	requireBalance(t, f, x.ID, "50")

	// 3. Move it to a new account Y.
	y := f.account(t, alice, "0")
	moved, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{AccountID: ptr(y.ID)})
	require.NoError(t, err)
	assert.Equal(t, y.ID, moved.AccountID)
	requireBalance(t, f, x.ID, "100")
	requireBalance(t, f, y.ID, "-50")

	// 4. Delete it.
	require.NoError(t, f.transactions.Delete(ctx, alice, tx.ID))
	requireBalance(t, f, y.ID, "0")
	requireBalance(t, f, x.ID, "100")

	_, err = f.store.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateByNonOwnerIsForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "100")
	y := f.account(t, alice, "0")
	tx := f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "30")

	_, err := f.transactions.Update(ctx, bob, tx.ID, domain.TransactionPatch{
		AccountID: ptr(y.ID),
		Amount:    ptr(dec("99")),
	})
	require.ErrorIs(t, err, domain.ErrForbidden)

	err = f.transactions.Delete(ctx, bob, tx.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	requireBalance(t, f, x.ID, "70")
	requireBalance(t, f, y.ID, "0")

	stored, err := f.store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(dec("30")))
	assert.Equal(t, x.ID, stored.AccountID)
}

func TestCreateRequiresOwnedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	x := f.account(t, alice, "100")

	tests := []struct {
		name      string
		owner     string
		accountID string
	}{
		{"missing account", alice, "does-not-exist"},
		{"foreign account", bob, x.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.transactions.Create(ctx, tt.owner, domain.NewTransaction{
				AccountID: tt.accountID,
				Date:      time.Now(),
				Amount:    dec("10"),
				Type:      domain.TransactionTypeIncome,
				Category:  "Salary",
			})
			require.ErrorIs(t, err, domain.ErrNotFound)
			assert.False(t, errors.Is(err, domain.ErrForbidden))
		})
	}

	requireBalance(t, f, x.ID, "100")
	txs, err := f.store.ListTransactions(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestUpdateAndDeleteMissingTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.transactions.Update(ctx, alice, "nope", domain.TransactionPatch{Amount: ptr(dec("1"))})
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = f.transactions.Delete(ctx, alice, "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateToForeignAccountChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "100")
	foreign := f.account(t, bob, "500")
	tx := f.txn(t, alice, x.ID, domain.TransactionTypeIncome, "20")

	for _, target := range []string{foreign.ID, "missing"} {
		_, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{AccountID: ptr(target)})
		require.ErrorIs(t, err, domain.ErrNotFound)
	}

	requireBalance(t, f, x.ID, "120")
	requireBalance(t, f, foreign.ID, "500")
}

func TestTransferNeverChangesBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "100")
	y := f.account(t, alice, "40")
	tx := f.txn(t, alice, x.ID, domain.TransactionTypeTransfer, "25")
	requireBalance(t, f, x.ID, "100")

	_, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{
		AccountID: ptr(y.ID),
		Amount:    ptr(dec("60")),
	})
	require.NoError(t, err)
	requireBalance(t, f, x.ID, "100")
	requireBalance(t, f, y.ID, "40")

	require.NoError(t, f.transactions.Delete(ctx, alice, tx.ID))
	requireBalance(t, f, y.ID, "40")
}

func TestUpdateChangesType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "100")
	tx := f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "30")

	_, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{Type: ptr(domain.TransactionTypeIncome)})
	require.NoError(t, err)
	requireBalance(t, f, x.ID, "130")

	_, err = f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{Type: ptr(domain.TransactionTypeTransfer)})
	require.NoError(t, err)
	requireBalance(t, f, x.ID, "100")
}

func TestUpdateCanSetAmountToZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "100")
	tx := f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "30")

	updated, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{Amount: ptr(dec("0"))})
	require.NoError(t, err)
	assert.True(t, updated.Amount.IsZero())
	requireBalance(t, f, x.ID, "100")
}

func TestUpdateKeepsOmittedFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "0")
	tx := f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "12.50")

	updated, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{Description: ptr("weekly shop")})
	require.NoError(t, err)
	assert.Equal(t, "weekly shop", updated.Description)
	assert.Equal(t, "Groceries", updated.Category)
	assert.True(t, updated.Amount.Equal(dec("12.50")))
	assert.Equal(t, tx.Date, updated.Date)
	requireBalance(t, f, x.ID, "-12.50")
}

func TestUpdateWhenPreviousAccountIsGone(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFixture(t, store)

	x := f.account(t, alice, "100")
	y := f.account(t, alice, "0")
	tx := f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "30")

	// Simulate a legacy orphan: the account vanished underneath the transaction.
	require.NoError(t, store.DeleteAccount(ctx, x.ID))

	_, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{Amount: ptr(dec("5"))})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{AccountID: ptr(y.ID)})
	require.NoError(t, err)
	requireBalance(t, f, y.ID, "-30")
}

func TestDeleteRestoresPreCreationBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "250.75")
	for _, typ := range []domain.TransactionType{domain.TransactionTypeIncome, domain.TransactionTypeExpense} {
		tx := f.txn(t, alice, x.ID, typ, "19.99")
		require.NoError(t, f.transactions.Delete(ctx, alice, tx.ID))
		requireBalance(t, f, x.ID, "250.75")
	}
}

func TestBalanceMatchesLedgerAfterMixedSequence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "1000")
	y := f.account(t, alice, "-50")

	var ids []string
	for i, typ := range []domain.TransactionType{
		domain.TransactionTypeIncome,
		domain.TransactionTypeExpense,
		domain.TransactionTypeExpense,
		domain.TransactionTypeTransfer,
		domain.TransactionTypeIncome,
	} {
		tx := f.txn(t, alice, x.ID, typ, fmt.Sprintf("%d.25", (i+1)*10))
		ids = append(ids, tx.ID)
	}

	_, err := f.transactions.Update(ctx, alice, ids[0], domain.TransactionPatch{AccountID: ptr(y.ID), Amount: ptr(dec("7"))})
	require.NoError(t, err)
	_, err = f.transactions.Update(ctx, alice, ids[1], domain.TransactionPatch{Type: ptr(domain.TransactionTypeIncome)})
	require.NoError(t, err)
	require.NoError(t, f.transactions.Delete(ctx, alice, ids[2]))
	_, err = f.transactions.Update(ctx, alice, ids[3], domain.TransactionPatch{Type: ptr(domain.TransactionTypeExpense), AccountID: ptr(y.ID)})
	require.NoError(t, err)

	for _, id := range []string{x.ID, y.ID} {
		acc, err := f.store.GetAccount(ctx, id)
		require.NoError(t, err)
		txs, err := f.store.ListTransactions(ctx, domain.TransactionFilter{OwnerID: alice, AccountID: id})
		require.NoError(t, err)
		expected := reconciler.ExpectedBalance(acc, txs)
		assert.Truef(t, acc.CurrentBalance.Equal(expected), "account %s: balance %s, ledger %s", acc.Name, acc.CurrentBalance, expected)
	}
}

func TestConcurrentMutationsOnOneAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "0")
	y := f.account(t, alice, "0")

	const n = 50
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := f.transactions.Create(ctx, alice, domain.NewTransaction{
				AccountID: x.ID,
				Date:      time.Now(),
				Amount:    dec("2"),
				Type:      domain.TransactionTypeIncome,
				Category:  "Gift",
			})
			if assert.NoError(t, err) {
				ids[i] = tx.ID
			}
		}(i)
	}
	wg.Wait()
	requireBalance(t, f, x.ID, "100")

	// Move half to Y while deleting the rest.
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := f.transactions.Update(ctx, alice, id, domain.TransactionPatch{AccountID: ptr(y.ID)})
				assert.NoError(t, err)
				return
			}
			assert.NoError(t, f.transactions.Delete(ctx, alice, id))
		}(i, id)
	}
	wg.Wait()

	requireBalance(t, f, x.ID, "0")
	requireBalance(t, f, y.ID, "50")
}

func TestPartialWriteIsReported(t *testing.T) {
	ctx := context.Background()

	t.Run("create fails before any write", func(t *testing.T) {
		store := &faultyStore{Store: memory.NewStore()}
		f := newFixture(t, store)
		x := f.account(t, alice, "100")

		store.failSaveAccount = store.saveAccountCalls + 1
		_, err := f.transactions.Create(ctx, alice, domain.NewTransaction{
			AccountID: x.ID, Date: time.Now(), Amount: dec("5"), Type: domain.TransactionTypeExpense, Category: "Fees",
		})
		require.ErrorIs(t, err, domain.ErrPersistence)
		var pw *domain.PartialWriteError
		assert.False(t, errors.As(err, &pw))
		requireBalance(t, f, x.ID, "100")
	})

	t.Run("create fails after account save", func(t *testing.T) {
		store := &faultyStore{Store: memory.NewStore(), failCreateTx: true}
		f := newFixture(t, store)
		x := f.account(t, alice, "100")

		_, err := f.transactions.Create(ctx, alice, domain.NewTransaction{
			AccountID: x.ID, Date: time.Now(), Amount: dec("5"), Type: domain.TransactionTypeExpense, Category: "Fees",
		})
		require.ErrorIs(t, err, domain.ErrPersistence)
		var pw *domain.PartialWriteError
		require.ErrorAs(t, err, &pw)
		assert.Equal(t, []string{"save account"}, pw.Persisted)
	})

	t.Run("update fails on transaction save", func(t *testing.T) {
		store := &faultyStore{Store: memory.NewStore()}
		f := newFixture(t, store)
		x := f.account(t, alice, "100")
		y := f.account(t, alice, "0")
		tx := f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "30")

		store.failSaveTransaction = true
		_, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{AccountID: ptr(y.ID)})
		var pw *domain.PartialWriteError
		require.ErrorAs(t, err, &pw)
		assert.Equal(t, []string{"save previous account", "save target account"}, pw.Persisted)
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})

	t.Run("delete fails on record removal", func(t *testing.T) {
		store := &faultyStore{Store: memory.NewStore()}
		f := newFixture(t, store)
		x := f.account(t, alice, "100")
		tx := f.txn(t, alice, x.ID, domain.TransactionTypeIncome, "30")

		store.failDeleteTx = true
		err := f.transactions.Delete(ctx, alice, tx.ID)
		var pw *domain.PartialWriteError
		require.ErrorAs(t, err, &pw)
		assert.Equal(t, []string{"save account"}, pw.Persisted)
	})
}

func TestListFiltersSortsAndAnnotates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	x := f.account(t, alice, "0")
	y := f.account(t, alice, "0")
	other := f.account(t, bob, "0")

	mk := func(owner, accountID, category string, day int) {
		_, err := f.transactions.Create(ctx, owner, domain.NewTransaction{
			AccountID: accountID,
			Date:      time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC),
			Amount:    dec("1"),
			Type:      domain.TransactionTypeExpense,
			Category:  category,
		})
		require.NoError(t, err)
	}
	mk(alice, x.ID, "Food", 1)
	mk(alice, x.ID, "Rent", 3)
	mk(alice, y.ID, "Food", 5)
	mk(alice, y.ID, "Food", 2)
	mk(bob, other.ID, "Food", 4)

	all, err := f.transactions.List(ctx, alice, domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Date.After(all[i-1].Date), "not sorted by date desc")
	}
	assert.Equal(t, y.Name, all[0].AccountName)
	assert.Equal(t, domain.AccountTypeChecking, all[0].AccountType)

	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	food, err := f.transactions.List(ctx, alice, domain.TransactionFilter{
		AccountID: y.ID,
		Category:  "Food",
		From:      &from,
		To:        &to,
	})
	require.NoError(t, err)
	require.Len(t, food, 2)
	assert.Equal(t, 5, food[0].Date.Day())
	assert.Equal(t, 2, food[1].Date.Day())

	// The owner filter cannot be overridden by the caller.
	none, err := f.transactions.List(ctx, alice, domain.TransactionFilter{OwnerID: bob, AccountID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCategoriesAreDistinct(t *testing.T) {
	f := newFixture(t, nil)
	x := f.account(t, alice, "0")
	f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "1")
	f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "2")

	cats, err := f.transactions.Categories(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Groceries"}, cats)
}

func TestTransactorRollsBackFailedWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("update moving accounts", func(t *testing.T) {
		store := &txStore{faultyStore: &faultyStore{Store: memory.NewStore()}}
		f := newFixture(t, store)
		x := f.account(t, alice, "100")
		y := f.account(t, alice, "0")
		tx := f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "30")
		require.Equal(t, 0, store.rollbacks)

		store.failSaveTransaction = true
		_, err := f.transactions.Update(ctx, alice, tx.ID, domain.TransactionPatch{AccountID: ptr(y.ID)})
		require.ErrorIs(t, err, domain.ErrPersistence)
		var pw *domain.PartialWriteError
		assert.False(t, errors.As(err, &pw))
		assert.Equal(t, 1, store.rollbacks)

		requireBalance(t, f, x.ID, "70")
		requireBalance(t, f, y.ID, "0")
		stored, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, x.ID, stored.AccountID)
	})

	t.Run("create", func(t *testing.T) {
		store := &txStore{faultyStore: &faultyStore{Store: memory.NewStore(), failCreateTx: true}}
		f := newFixture(t, store)
		x := f.account(t, alice, "100")

		_, err := f.transactions.Create(ctx, alice, domain.NewTransaction{
			AccountID: x.ID, Date: time.Now(), Amount: dec("5"), Type: domain.TransactionTypeExpense, Category: "Fees",
		})
		require.ErrorIs(t, err, domain.ErrPersistence)
		var pw *domain.PartialWriteError
		assert.False(t, errors.As(err, &pw))
		requireBalance(t, f, x.ID, "100")
	})

	t.Run("delete", func(t *testing.T) {
		store := &txStore{faultyStore: &faultyStore{Store: memory.NewStore()}}
		f := newFixture(t, store)
		x := f.account(t, alice, "100")
		tx := f.txn(t, alice, x.ID, domain.TransactionTypeIncome, "30")

		store.failDeleteTx = true
		err := f.transactions.Delete(ctx, alice, tx.ID)
		require.ErrorIs(t, err, domain.ErrPersistence)
		var pw *domain.PartialWriteError
		assert.False(t, errors.As(err, &pw))
		requireBalance(t, f, x.ID, "130")
		_, err = store.GetTransaction(ctx, tx.ID)
		assert.NoError(t, err)
	})
}

func TestTransactorCommitsSameAccountUpdate(t *testing.T) {
	store := &txStore{faultyStore: &faultyStore{Store: memory.NewStore()}}
	f := newFixture(t, store)
	x := f.account(t, alice, "100")
	tx := f.txn(t, alice, x.ID, domain.TransactionTypeExpense, "30")
	commits := store.commits

	updated, err := f.transactions.Update(context.Background(), alice, tx.ID, domain.TransactionPatch{
		Amount: ptr(dec("45")),
		Type:   ptr(domain.TransactionTypeIncome),
	})
	require.NoError(t, err)
	assert.Equal(t, commits+1, store.commits)
	assert.True(t, updated.Amount.Equal(dec("45")))
	requireBalance(t, f, x.ID, "145")
}
