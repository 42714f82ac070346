package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"google.golang.org/api/iterator"
)

const transactionColumns = `
			transaction_id,
			owner_id,
			account_id,
			transaction_date,
			transaction_ts,
			amount,
			transaction_type,
			category_name,
			description,
			created_ts,
			updated_ts`

// InsertTransactionWithClient inserts a transaction row using the provided BigQuery client.
func InsertTransactionWithClient(ctx context.Context, client *bigquery.Client, t Tables, row *TransactionRow) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (@transaction_id, @owner_id, @account_id, @transaction_date,
			@transaction_ts, @amount, @transaction_type, @category_name,
			@description, @created_ts, @updated_ts)
	`, t.Name(transactionsTable), transactionColumns)

	if _, err := runDML(ctx, client, query, transactionParams(row)); err != nil {
		return fmt.Errorf("InsertTransactionWithClient: %w", err)
	}
	return nil
}

// GetTransactionWithClient loads one transaction row. It returns nil when
// the transaction does not exist.
func GetTransactionWithClient(ctx context.Context, client *bigquery.Client, t Tables, transactionID string) (*TransactionRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE transaction_id = @transaction_id
		LIMIT 1
	`, transactionColumns, t.Name(transactionsTable))

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
	}

	rows, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionWithClient: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateTransactionWithClient overwrites a transaction row and returns the
// number of rows it touched.
func UpdateTransactionWithClient(ctx context.Context, client *bigquery.Client, t Tables, row *TransactionRow) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET account_id = @account_id,
			transaction_date = @transaction_date,
			transaction_ts = @transaction_ts,
			amount = @amount,
			transaction_type = @transaction_type,
			category_name = @category_name,
			description = @description,
			updated_ts = @updated_ts
		WHERE transaction_id = @transaction_id
	`, t.Name(transactionsTable))

	n, err := runDML(ctx, client, query, transactionParams(row))
	if err != nil {
		return 0, fmt.Errorf("UpdateTransactionWithClient: %w", err)
	}
	return n, nil
}

// DeleteTransactionWithClient removes a transaction and returns the number
// of rows it touched.
func DeleteTransactionWithClient(ctx context.Context, client *bigquery.Client, t Tables, transactionID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE transaction_id = @transaction_id`, t.Name(transactionsTable))

	n, err := runDML(ctx, client, query, []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
	})
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactionWithClient: %w", err)
	}
	return n, nil
}

// ListTransactionsWithClient retrieves the transactions matching filter,
// newest first.
func ListTransactionsWithClient(ctx context.Context, client *bigquery.Client, t Tables, filter domain.TransactionFilter) ([]*TransactionRow, error) {
	where, params := buildFilter(filter)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY transaction_ts DESC, created_ts DESC
	`, transactionColumns, t.Name(transactionsTable), where)

	q := client.Query(query)
	q.Parameters = params

	rows, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsWithClient: %w", err)
	}
	return rows, nil
}

// CountTransactionsWithClient counts the transactions booked against accountID.
func CountTransactionsWithClient(ctx context.Context, client *bigquery.Client, t Tables, accountID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE account_id = @account_id
	`, t.Name(transactionsTable))

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountTransactionsWithClient: reading query: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("CountTransactionsWithClient: iterating rows: %w", err)
	}
	return int(row.N), nil
}

// buildFilter renders the WHERE clause and named parameters for filter.
func buildFilter(f domain.TransactionFilter) (string, []bigquery.QueryParameter) {
	var (
		conds  []string
		params []bigquery.QueryParameter
	)
	add := func(cond, name string, value any) {
		conds = append(conds, cond)
		params = append(params, bigquery.QueryParameter{Name: name, Value: value})
	}

	if f.OwnerID != "" {
		add("owner_id = @owner_id", "owner_id", f.OwnerID)
	}
	if f.AccountID != "" {
		add("account_id = @account_id", "account_id", f.AccountID)
	}
	if f.Category != "" {
		add("category_name = @category_name", "category_name", f.Category)
	}
	if f.From != nil {
		add("transaction_ts >= @from_ts", "from_ts", *f.From)
	}
	if f.To != nil {
		add("transaction_ts <= @to_ts", "to_ts", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), params
}

func transactionParams(row *TransactionRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "owner_id", Value: row.OwnerID},
		{Name: "account_id", Value: row.AccountID},
		{Name: "transaction_date", Value: row.TransactionDate},
		{Name: "transaction_ts", Value: row.TransactionTS},
		{Name: "amount", Value: row.Amount},
		{Name: "transaction_type", Value: row.TransactionType},
		{Name: "category_name", Value: row.CategoryName},
		{Name: "description", Value: row.Description},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
}

func readTransactions(ctx context.Context, q *bigquery.Query) ([]*TransactionRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}

	var transactions []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating rows: %w", err)
		}
		transactions = append(transactions, &row)
	}
	return transactions, nil
}
