package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/reconciler"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxRelock bounds how often a mutation re-takes its locks when the
// transaction moved to another account while it waited.
const maxRelock = 3

// TransactionService creates, edits, deletes and lists transactions while
// keeping account balances equal to their ledgers.
type TransactionService struct {
	store  ledger.Store
	locker ledger.Locker
	log    zerolog.Logger
	now    func() time.Time
}

// NewTransactionService creates a TransactionService.
func NewTransactionService(store ledger.Store, locker ledger.Locker, log zerolog.Logger) *TransactionService {
	return &TransactionService{
		store:  store,
		locker: locker,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create records a transaction and applies its effect to the account.
// An account that is missing or owned by someone else yields ErrAccountNotFound.
func (s *TransactionService) Create(ctx context.Context, ownerID string, in domain.NewTransaction) (*domain.Transaction, error) {
	unlock, err := s.locker.Lock(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("Create: lock account: %w", err)
	}
	defer unlock()

	acc, err := ownedAccount(ctx, s.store, ownerID, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	now := s.now()
	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		AccountID:   acc.ID,
		Date:        in.Date,
		Amount:      in.Amount,
		Type:        in.Type,
		Category:    in.Category,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	reconciler.ApplyEffect(acc, tx.Type, tx.Amount)
	acc.UpdatedAt = now

	err = runWrites(ctx, s.store, s.log, "Create", func(ctx context.Context, w *writer) error {
		if err := w.step("save account", w.store.SaveAccount(ctx, acc)); err != nil {
			return err
		}
		return w.step("create transaction", w.store.CreateTransaction(ctx, tx))
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("transaction_id", tx.ID).
		Str("account_id", acc.ID).
		Str("balance", acc.CurrentBalance.String()).
		Msg("Transaction created")

	return tx, nil
}

// Get returns one of the caller's transactions.
func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (*domain.Transaction, error) {
	return s.ownedTransaction(ctx, ownerID, id)
}

// Update applies patch to a transaction. The old type and amount are
// reverted on the old account before the new ones are applied to the
// target account, which may differ.
func (s *TransactionService) Update(ctx context.Context, ownerID, id string, patch domain.TransactionPatch) (*domain.Transaction, error) {
	var target string
	if patch.AccountID != nil {
		target = *patch.AccountID
	}

	current, unlock, err := s.lockTransaction(ctx, ownerID, id, target)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	defer unlock()

	updated := current.Clone()
	patch.ApplyTo(updated)
	updated.UpdatedAt = s.now()

	// Every lookup happens before the first write.
	previous, err := s.store.GetAccount(ctx, current.AccountID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn().
			Str("transaction_id", id).
			Str("account_id", current.AccountID).
			Msg("Previous account no longer exists, skipping revert")
		previous = nil
	case err != nil:
		return nil, domain.Persistence("Update: load previous account", err)
	}

	var next *domain.Account
	if previous != nil && updated.AccountID == previous.ID {
		next = previous
	} else {
		next, err = ownedAccount(ctx, s.store, ownerID, updated.AccountID)
		if err != nil {
			return nil, fmt.Errorf("Update: %w", err)
		}
	}

	err = runWrites(ctx, s.store, s.log, "Update", func(ctx context.Context, w *writer) error {
		if previous != nil {
			reconciler.RevertEffect(previous, current.Type, current.Amount)
			previous.UpdatedAt = updated.UpdatedAt
			if err := w.step("save previous account", w.store.SaveAccount(ctx, previous)); err != nil {
				return err
			}
		}

		reconciler.ApplyEffect(next, updated.Type, updated.Amount)
		next.UpdatedAt = updated.UpdatedAt
		if err := w.step("save target account", w.store.SaveAccount(ctx, next)); err != nil {
			return err
		}

		return w.step("save transaction", w.store.SaveTransaction(ctx, updated))
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("transaction_id", id).
		Str("from_account_id", current.AccountID).
		Str("to_account_id", updated.AccountID).
		Msg("Transaction updated")

	return updated, nil
}

// Delete removes a transaction and reverts its effect.
func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	current, unlock, err := s.lockTransaction(ctx, ownerID, id, "")
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	defer unlock()

	acc, err := s.store.GetAccount(ctx, current.AccountID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn().
			Str("transaction_id", id).
			Str("account_id", current.AccountID).
			Msg("Account no longer exists, skipping revert")
		acc = nil
	case err != nil:
		return domain.Persistence("Delete: load account", err)
	}

	err = runWrites(ctx, s.store, s.log, "Delete", func(ctx context.Context, w *writer) error {
		if acc != nil {
			reconciler.RevertEffect(acc, current.Type, current.Amount)
			acc.UpdatedAt = s.now()
			if err := w.step("save account", w.store.SaveAccount(ctx, acc)); err != nil {
				return err
			}
		}
		return w.step("delete transaction", w.store.DeleteTransaction(ctx, id))
	})
	if err != nil {
		return err
	}

	s.log.Debug().
		Str("transaction_id", id).
		Str("account_id", current.AccountID).
		Msg("Transaction deleted")

	return nil
}

// List returns the caller's transactions matching filter, newest first,
// each annotated with its account's name and type.
func (s *TransactionService) List(ctx context.Context, ownerID string, filter domain.TransactionFilter) ([]domain.TransactionView, error) {
	filter.OwnerID = ownerID

	txs, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, domain.Persistence("List: transactions", err)
	}

	accounts, err := s.store.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, domain.Persistence("List: accounts", err)
	}
	byID := make(map[string]*domain.Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}

	domain.SortByDateDesc(txs)

	views := make([]domain.TransactionView, 0, len(txs))
	for _, tx := range txs {
		v := domain.TransactionView{Transaction: tx}
		if acc, ok := byID[tx.AccountID]; ok {
			v.AccountName = acc.Name
			v.AccountType = acc.Type
		}
		views = append(views, v)
	}
	return views, nil
}

// Categories returns the distinct categories the caller has used.
func (s *TransactionService) Categories(ctx context.Context, ownerID string) ([]string, error) {
	txs, err := s.store.ListTransactions(ctx, domain.TransactionFilter{OwnerID: ownerID})
	if err != nil {
		return nil, domain.Persistence("Categories", err)
	}

	seen := make(map[string]bool)
	var out []string
	for _, tx := range txs {
		if !seen[tx.Category] {
			seen[tx.Category] = true
			out = append(out, tx.Category)
		}
	}
	return out, nil
}

func (s *TransactionService) ownedTransaction(ctx context.Context, ownerID, id string) (*domain.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, domain.Persistence("load transaction "+id, err)
	}
	if tx.OwnerID != ownerID {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrForbidden)
	}
	return tx, nil
}

// lockTransaction locks the transaction's account plus extra, then reloads
// the transaction under the lock. If it moved meanwhile the locks are
// re-taken for its new account.
func (s *TransactionService) lockTransaction(ctx context.Context, ownerID, id, extra string) (*domain.Transaction, ledger.Unlock, error) {
	tx, err := s.ownedTransaction(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	for range maxRelock {
		unlock, err := s.locker.Lock(ctx, tx.AccountID, extra)
		if err != nil {
			return nil, nil, fmt.Errorf("lock accounts: %w", err)
		}

		locked, err := s.ownedTransaction(ctx, ownerID, id)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if locked.AccountID == tx.AccountID {
			return locked, unlock, nil
		}

		unlock()
		tx = locked
	}

	return nil, nil, fmt.Errorf("transaction %s kept moving between accounts: %w", id, domain.ErrConflict)
}
