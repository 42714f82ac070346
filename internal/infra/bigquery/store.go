// Package bigquery implements the ledger store on BigQuery tables using
// DML statements.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
)

// Store is a ledger.Store backed by BigQuery. It holds a shared client to
// avoid creating a new connection for each operation. BigQuery DML offers
// no multi-statement transactions here, so Store does not implement
// ledger.Transactor.
type Store struct {
	client *bigquery.Client
	tables Tables
}

// NewStore creates a BigQuery client for projectID and returns a store over
// datasetID.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, Tables{ProjectID: projectID, DatasetID: datasetID}), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *bigquery.Client, tables Tables) *Store {
	return &Store{client: client, tables: tables}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	return InsertAccountWithClient(ctx, s.client, s.tables, NewAccountRow(acc))
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row, err := GetAccountWithClient(ctx, s.client, s.tables, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrAccountNotFound
	}
	return row.Account(), nil
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	rows, err := ListAccountsWithClient(ctx, s.client, s.tables, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Account())
	}
	return out, nil
}

func (s *Store) SaveAccount(ctx context.Context, acc *domain.Account) error {
	n, err := UpdateAccountWithClient(ctx, s.client, s.tables, NewAccountRow(acc))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	n, err := DeleteAccountWithClient(ctx, s.client, s.tables, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	return InsertTransactionWithClient(ctx, s.client, s.tables, NewTransactionRow(tx))
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row, err := GetTransactionWithClient(ctx, s.client, s.tables, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrTransactionNotFound
	}
	return row.Transaction(), nil
}

func (s *Store) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	n, err := UpdateTransactionWithClient(ctx, s.client, s.tables, NewTransactionRow(tx))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	n, err := DeleteTransactionWithClient(ctx, s.client, s.tables, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	rows, err := ListTransactionsWithClient(ctx, s.client, s.tables, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Transaction())
	}
	return out, nil
}

func (s *Store) CountTransactions(ctx context.Context, accountID string) (int, error) {
	return CountTransactionsWithClient(ctx, s.client, s.tables, accountID)
}

var _ ledger.Store = (*Store)(nil)
