package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// Tables resolves fully qualified table names in one dataset.
type Tables struct {
	ProjectID string
	DatasetID string
}

// Name returns the backquoted `project.dataset.table` identifier.
func (t Tables) Name(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.DatasetID, table)
}

const (
	accountsTable     = "accounts"
	transactionsTable = "transactions"
)

// runDML runs a DML statement, waits for it and returns the number of
// affected rows.
func runDML(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) (int64, error) {
	q := client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}
