package notionsync

import (
	"context"
	"time"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/jomei/notionapi"
)

// NotionService defines the interface for interacting with Notion API.
// This interface enables mocking and testing of Notion operations.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates an existing Notion page with the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// ArchivePage moves a page to the trash.
	ArchivePage(ctx context.Context, pageID string) error
}

// Source is the read side of the store the sync needs.
type Source interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error)
}

var _ NotionService = (*NotionClient)(nil)
