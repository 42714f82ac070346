package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const accountColumns = `
			account_id,
			owner_id,
			account_name,
			account_type,
			initial_balance,
			current_balance,
			created_ts,
			updated_ts`

// InsertAccountWithClient inserts an account row using the provided BigQuery client.
func InsertAccountWithClient(ctx context.Context, client *bigquery.Client, t Tables, row *AccountRow) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (@account_id, @owner_id, @account_name, @account_type,
			@initial_balance, @current_balance, @created_ts, @updated_ts)
	`, t.Name(accountsTable), accountColumns)

	if _, err := runDML(ctx, client, query, accountParams(row)); err != nil {
		return fmt.Errorf("InsertAccountWithClient: %w", err)
	}
	return nil
}

// GetAccountWithClient loads one account row. It returns nil when the
// account does not exist.
func GetAccountWithClient(ctx context.Context, client *bigquery.Client, t Tables, accountID string) (*AccountRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE account_id = @account_id
		LIMIT 1
	`, accountColumns, t.Name(accountsTable))

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
	}

	rows, err := readAccounts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetAccountWithClient: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListAccountsWithClient retrieves every account owned by ownerID, oldest first.
func ListAccountsWithClient(ctx context.Context, client *bigquery.Client, t Tables, ownerID string) ([]*AccountRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = @owner_id
		ORDER BY created_ts ASC, account_id ASC
	`, accountColumns, t.Name(accountsTable))

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	rows, err := readAccounts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListAccountsWithClient: %w", err)
	}
	return rows, nil
}

// UpdateAccountWithClient overwrites the mutable columns of an account and
// returns the number of rows it touched.
func UpdateAccountWithClient(ctx context.Context, client *bigquery.Client, t Tables, row *AccountRow) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET account_name = @account_name,
			account_type = @account_type,
			initial_balance = @initial_balance,
			current_balance = @current_balance,
			updated_ts = @updated_ts
		WHERE account_id = @account_id
	`, t.Name(accountsTable))

	n, err := runDML(ctx, client, query, accountParams(row))
	if err != nil {
		return 0, fmt.Errorf("UpdateAccountWithClient: %w", err)
	}
	return n, nil
}

// DeleteAccountWithClient removes an account and returns the number of rows
// it touched.
func DeleteAccountWithClient(ctx context.Context, client *bigquery.Client, t Tables, accountID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE account_id = @account_id`, t.Name(accountsTable))

	n, err := runDML(ctx, client, query, []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
	})
	if err != nil {
		return 0, fmt.Errorf("DeleteAccountWithClient: %w", err)
	}
	return n, nil
}

func accountParams(row *AccountRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "account_id", Value: row.AccountID},
		{Name: "owner_id", Value: row.OwnerID},
		{Name: "account_name", Value: row.AccountName},
		{Name: "account_type", Value: row.AccountType},
		{Name: "initial_balance", Value: row.InitialBalance},
		{Name: "current_balance", Value: row.CurrentBalance},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
}

func readAccounts(ctx context.Context, q *bigquery.Query) ([]*AccountRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}

	var accounts []*AccountRow
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating rows: %w", err)
		}
		accounts = append(accounts, &row)
	}
	return accounts, nil
}
