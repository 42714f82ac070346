package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store implements ledger.Store and ledger.Transactor.
type Store struct {
	db *sql.DB
	q  querier
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTx implements ledger.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st ledger.Store) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("WithinTx: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &Store{db: s.db, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("WithinTx: commit: %w", err)
	}
	return nil
}

const accountColumns = `id, owner_id, name, account_type, initial_balance, current_balance, created_at, updated_at`

func scanAccount(row scanner) (*domain.Account, error) {
	var a domain.Account
	var typ string
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &typ, &a.InitialBalance, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(typ)
	return &a, nil
}

// CreateAccount implements ledger.AccountRepository.
func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	const q = `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.q.ExecContext(ctx, q,
		acc.ID, acc.OwnerID, acc.Name, string(acc.Type),
		acc.InitialBalance, acc.CurrentBalance, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}

// GetAccount implements ledger.AccountRepository.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	acc, err := scanAccount(s.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return acc, nil
}

// ListAccounts implements ledger.AccountRepository.
func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY created_at`
	rows, err := s.q.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: scan: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return accounts, nil
}

// SaveAccount implements ledger.AccountRepository.
func (s *Store) SaveAccount(ctx context.Context, acc *domain.Account) error {
	const q = `UPDATE accounts
		SET name = $2, account_type = $3, initial_balance = $4, current_balance = $5, updated_at = $6
		WHERE id = $1`
	res, err := s.q.ExecContext(ctx, q,
		acc.ID, acc.Name, string(acc.Type), acc.InitialBalance, acc.CurrentBalance, acc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("SaveAccount: %w", err)
	}
	return expectRow(res, domain.ErrAccountNotFound)
}

// DeleteAccount implements ledger.AccountRepository.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	return expectRow(res, domain.ErrAccountNotFound)
}

const transactionColumns = `id, owner_id, account_id, txn_date, amount, txn_type, category, description, created_at, updated_at`

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var typ string
	if err := row.Scan(&t.ID, &t.OwnerID, &t.AccountID, &t.Date, &t.Amount, &typ, &t.Category, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(typ)
	return &t, nil
}

// CreateTransaction implements ledger.TransactionRepository.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	const q = `INSERT INTO transactions (` + transactionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.q.ExecContext(ctx, q,
		tx.ID, tx.OwnerID, tx.AccountID, tx.Date, tx.Amount, string(tx.Type),
		tx.Category, tx.Description, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return nil
}

// GetTransaction implements ledger.TransactionRepository.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(s.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return tx, nil
}

// SaveTransaction implements ledger.TransactionRepository.
func (s *Store) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	const q = `UPDATE transactions
		SET account_id = $2, txn_date = $3, amount = $4, txn_type = $5,
		    category = $6, description = $7, updated_at = $8
		WHERE id = $1`
	res, err := s.q.ExecContext(ctx, q,
		tx.ID, tx.AccountID, tx.Date, tx.Amount, string(tx.Type),
		tx.Category, tx.Description, tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("SaveTransaction: %w", err)
	}
	return expectRow(res, domain.ErrTransactionNotFound)
}

// DeleteTransaction implements ledger.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return expectRow(res, domain.ErrTransactionNotFound)
}

// ListTransactions implements ledger.TransactionRepository.
func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	where, args := buildFilter(filter)
	q := `SELECT ` + transactionColumns + ` FROM transactions` + where + ` ORDER BY txn_date DESC, created_at DESC`

	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txs, nil
}

// CountTransactions implements ledger.TransactionRepository.
func (s *Store) CountTransactions(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return n, nil
}

// buildFilter turns a filter into a WHERE clause with positional arguments.
func buildFilter(f domain.TransactionFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.OwnerID != "" {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.AccountID != "" {
		add("account_id = $%d", f.AccountID)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.From != nil {
		add("txn_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("txn_date <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var (
	_ ledger.Store      = (*Store)(nil)
	_ ledger.Transactor = (*Store)(nil)
)
