package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finchat/internal/domain"
	"google.golang.org/api/iterator"
)

const transactionsTable = "transactions"

// InsertTransactionsWithClient streams rows into <project>.<dataset>.transactions.
// The transaction ID is used as insert ID so retried batches are deduplicated
// on a best-effort basis.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	savers := make([]*bigquery.StructSaver, 0, len(rows))
	for _, r := range rows {
		savers = append(savers, &bigquery.StructSaver{Struct: r, InsertID: r.TransactionID})
	}

	table := client.DatasetInProject(projectID, datasetID).Table(transactionsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// QueryTransactionsSinceWithClient returns mirrored rows of accountID dated on
// or after since, oldest first. An empty txType matches both types.
func QueryTransactionsSinceWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, accountID string, txType domain.TransactionType, since time.Time) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			account_id,
			account_name,
			category_id,
			category_name,
			type,
			transaction_date,
			amount,
			currency,
			description,
			source,
			created_ts,
			mirrored_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE account_id = @account_id
		  AND transaction_date >= @since
		  AND (@type = '' OR type = @type)
		ORDER BY transaction_date, created_ts
	`, projectID, datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "since", Value: civil.DateOf(since)},
		{Name: "type", Value: string(txType)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsSince: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsSince: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
