package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finchat/internal/domain"
)

// TransactionMirror is the analytics copy of the transaction ledger.
type TransactionMirror interface {
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error
	QueryTransactionsSince(ctx context.Context, accountID string, since time.Time) ([]*TransactionRow, error)
	QueryExpensesSince(ctx context.Context, accountID string, since time.Time) ([]domain.Transaction, error)
}

// Mirror is the BigQuery implementation of TransactionMirror. It holds a
// shared client for all operations.
type Mirror struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

var _ TransactionMirror = (*Mirror)(nil)

// NewMirror creates a Mirror with its own BigQuery client.
func NewMirror(ctx context.Context, projectID, datasetID string) (*Mirror, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewMirror: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewMirror: creating client: %w", err)
	}
	return NewMirrorWithClient(client, projectID, datasetID), nil
}

// NewMirrorWithClient wraps an existing client.
func NewMirrorWithClient(client *bigquery.Client, projectID, datasetID string) *Mirror {
	return &Mirror{client: client, projectID: projectID, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (m *Mirror) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// InsertTransactions streams rows into the mirror table.
func (m *Mirror) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, m.client, m.projectID, m.datasetID, rows)
}

// QueryTransactionsSince lists mirrored rows of an account since a date.
func (m *Mirror) QueryTransactionsSince(ctx context.Context, accountID string, since time.Time) ([]*TransactionRow, error) {
	return QueryTransactionsSinceWithClient(ctx, m.client, m.projectID, m.datasetID, accountID, "", since)
}

// QueryExpensesSince lists mirrored expenses of an account since a date.
func (m *Mirror) QueryExpensesSince(ctx context.Context, accountID string, since time.Time) ([]domain.Transaction, error) {
	rows, err := QueryTransactionsSinceWithClient(ctx, m.client, m.projectID, m.datasetID, accountID, domain.TransactionTypeExpense, since)
	if err != nil {
		return nil, err
	}
	return RowsToTransactions(rows)
}

// RowsToTransactions converts mirror rows into domain transactions.
func RowsToTransactions(rows []*TransactionRow) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.Transaction()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
