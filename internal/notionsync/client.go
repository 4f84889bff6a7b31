package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
)

// DefaultRequestTimeout bounds a single Notion API call.
const DefaultRequestTimeout = 30 * time.Second

// NotionClient implements NotionService over the Notion SDK.
type NotionClient struct {
	client  *notionapi.Client
	timeout time.Duration
}

// ClientOption configures a NotionClient.
type ClientOption func(*NotionClient)

// WithRequestTimeout overrides DefaultRequestTimeout. Zero disables it.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(n *NotionClient) { n.timeout = d }
}

// NewNotionClient creates a client authenticated with an integration token.
func NewNotionClient(token string, opts ...ClientOption) *NotionClient {
	n := &NotionClient{
		client:  notionapi.NewClient(notionapi.Token(token)),
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *NotionClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, n.timeout)
}

// CreatePage adds a row to databaseID.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: database %s: %w", databaseID, err)
	}
	return page, nil
}

// UpdatePage overwrites the given properties of a row; others are untouched.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return n.updatePage(ctx, "UpdatePage", pageID, &notionapi.PageUpdateRequest{Properties: properties})
}

// ArchivePage moves a row to the trash. Notion has no hard delete.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	_, err := n.updatePage(ctx, "ArchivePage", pageID, &notionapi.PageUpdateRequest{Archived: true})
	return err
}

func (n *NotionClient) updatePage(ctx context.Context, op, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
	if err != nil {
		return nil, fmt.Errorf("%s: page %s: %w", op, pageID, err)
	}
	return page, nil
}

// QueryDatabase fetches one page of rows. Callers follow NextCursor.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: database %s: %w", databaseID, err)
	}
	return resp, nil
}
