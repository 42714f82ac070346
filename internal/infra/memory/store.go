// Package memory is an in-memory ledger store. Data is lost on restart; it
// backs local development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
)

// Store keeps accounts and transactions in maps. Records are copied on the
// way in and out so callers never share memory with the store.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
	}
}

// CreateAccount implements ledger.AccountRepository.
func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	if acc.ID == "" {
		return fmt.Errorf("CreateAccount: account ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acc.ID]; exists {
		return fmt.Errorf("CreateAccount: account %s already exists", acc.ID)
	}
	s.accounts[acc.ID] = acc.Clone()
	return nil
}

// GetAccount implements ledger.AccountRepository.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

// ListAccounts implements ledger.AccountRepository.
func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Account, 0)
	for _, acc := range s.accounts {
		if acc.OwnerID == ownerID {
			result = append(result, acc.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *domain.Account) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

// SaveAccount implements ledger.AccountRepository.
func (s *Store) SaveAccount(ctx context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	s.accounts[acc.ID] = acc.Clone()
	return nil
}

// DeleteAccount implements ledger.AccountRepository.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

// CreateTransaction implements ledger.TransactionRepository.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("CreateTransaction: transaction ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; exists {
		return fmt.Errorf("CreateTransaction: transaction %s already exists", tx.ID)
	}
	s.transactions[tx.ID] = tx.Clone()
	return nil
}

// GetTransaction implements ledger.TransactionRepository.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

// SaveTransaction implements ledger.TransactionRepository.
func (s *Store) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[tx.ID]; !ok {
		return domain.ErrTransactionNotFound
	}
	s.transactions[tx.ID] = tx.Clone()
	return nil
}

// DeleteTransaction implements ledger.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return domain.ErrTransactionNotFound
	}
	delete(s.transactions, id)
	return nil
}

// ListTransactions implements ledger.TransactionRepository.
func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Transaction, 0)
	for _, tx := range s.transactions {
		if filter.Matches(tx) {
			result = append(result, tx.Clone())
		}
	}
	domain.SortByDateDesc(result)
	return result, nil
}

// CountTransactions implements ledger.TransactionRepository.
func (s *Store) CountTransactions(ctx context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

var _ ledger.Store = (*Store)(nil)
