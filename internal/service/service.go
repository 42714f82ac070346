// Package service implements the account and transaction operations exposed
// to the API. Every balance change goes through the reconciler while the
// affected accounts are locked.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/rs/zerolog"
)

// ownedAccount loads an account and hides it from callers who do not own it.
func ownedAccount(ctx context.Context, store ledger.AccountRepository, ownerID, id string) (*domain.Account, error) {
	acc, err := store.GetAccount(ctx, id)
	if err != nil {
		return nil, domain.Persistence("load account "+id, err)
	}
	if acc.OwnerID != ownerID {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
	}
	return acc, nil
}

// writer runs the persistence steps of one mutation and remembers which of
// them already succeeded.
type writer struct {
	op        string
	store     ledger.Store
	persisted []string
}

// step records the outcome of a single write. A failure after an earlier
// successful write becomes a PartialWriteError.
func (w *writer) step(name string, err error) error {
	if err == nil {
		w.persisted = append(w.persisted, name)
		return nil
	}
	perr := domain.Persistence(w.op+": "+name, err)
	if len(w.persisted) == 0 {
		return perr
	}
	return &domain.PartialWriteError{Op: w.op, Persisted: slices.Clone(w.persisted), Err: perr}
}

// runWrites executes fn, inside a store transaction when the store supports
// one. Without it a failure midway leaves the earlier writes in place and
// is reported as a PartialWriteError.
func runWrites(ctx context.Context, store ledger.Store, log zerolog.Logger, op string, fn func(ctx context.Context, w *writer) error) error {
	if tx, ok := store.(ledger.Transactor); ok {
		err := tx.WithinTx(ctx, func(ctx context.Context, st ledger.Store) error {
			return fn(ctx, &writer{op: op, store: st})
		})
		var pw *domain.PartialWriteError
		if errors.As(err, &pw) {
			err = pw.Err
		}
		return domain.Persistence(op+": commit", err)
	}

	err := fn(ctx, &writer{op: op, store: store})
	var pw *domain.PartialWriteError
	if errors.As(err, &pw) {
		log.Error().
			Err(pw.Err).
			Str("op", pw.Op).
			Strs("persisted", pw.Persisted).
			Msg("Partial write, account balances need an audit")
	}
	return err
}
