package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountService manages accounts. Balances are never client-settable after
// creation.
type AccountService struct {
	store  ledger.Store
	locker ledger.Locker
	log    zerolog.Logger
	now    func() time.Time
}

// NewAccountService creates an AccountService.
func NewAccountService(store ledger.Store, locker ledger.Locker, log zerolog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		locker: locker,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create opens an account with its current balance equal to the initial one.
func (s *AccountService) Create(ctx context.Context, ownerID string, in domain.NewAccount) (*domain.Account, error) {
	now := s.now()
	acc := &domain.Account{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Name:           in.Name,
		Type:           in.Type,
		InitialBalance: in.InitialBalance,
		CurrentBalance: in.InitialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateAccount(ctx, acc); err != nil {
		return nil, domain.Persistence("CreateAccount", err)
	}

	s.log.Debug().Str("account_id", acc.ID).Str("owner_id", ownerID).Msg("Account created")
	return acc, nil
}

// List returns the caller's accounts.
func (s *AccountService) List(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, domain.Persistence("ListAccounts", err)
	}
	return accounts, nil
}

// Get returns one of the caller's accounts.
func (s *AccountService) Get(ctx context.Context, ownerID, id string) (*domain.Account, error) {
	return s.owned(ctx, ownerID, id)
}

// Update renames or retypes an account.
func (s *AccountService) Update(ctx context.Context, ownerID, id string, patch domain.AccountPatch) (*domain.Account, error) {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateAccount: lock account: %w", err)
	}
	defer unlock()

	acc, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}
	if patch.Empty() {
		return acc, nil
	}

	patch.ApplyTo(acc)
	acc.UpdatedAt = s.now()
	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return nil, domain.Persistence("UpdateAccount", err)
	}
	return acc, nil
}

// Delete removes an account. Accounts that still carry transactions are
// kept and ErrConflict is returned.
func (s *AccountService) Delete(ctx context.Context, ownerID, id string) error {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("DeleteAccount: lock account: %w", err)
	}
	defer unlock()

	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}

	n, err := s.store.CountTransactions(ctx, id)
	if err != nil {
		return domain.Persistence("DeleteAccount: count transactions", err)
	}
	if n > 0 {
		return fmt.Errorf("DeleteAccount: account %s has %d transactions: %w", id, n, domain.ErrAccountInUse)
	}

	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return domain.Persistence("DeleteAccount", err)
	}

	s.log.Debug().Str("account_id", id).Msg("Account deleted")
	return nil
}

func (s *AccountService) owned(ctx context.Context, ownerID, id string) (*domain.Account, error) {
	acc, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, domain.Persistence("load account "+id, err)
	}
	if acc.OwnerID != ownerID {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrForbidden)
	}
	return acc, nil
}
