package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finchat/internal/logger"
	"github.com/jomei/notionapi"
)

// pageSize is the Notion query page size.
const pageSize = 100

// Stats summarises one sync run.
type Stats struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}

// Syncer pushes transactions of an account into a Notion database.
type Syncer struct {
	notion     NotionService
	databaseID string
	src        Source
}

// NewSyncer creates a Syncer writing to databaseID.
func NewSyncer(notion NotionService, databaseID string, src Source) *Syncer {
	return &Syncer{notion: notion, databaseID: databaseID, src: src}
}

// SyncTransactions makes the Notion database mirror the account's
// transactions dated from <= date < to (zero bounds are open):
//  1. pages of the account in the range are queried, following pagination;
//  2. pages whose transaction no longer exists are archived;
//  3. existing pages are updated and missing ones created.
//
// Individual page failures are logged and counted; they do not abort the run.
func (s *Syncer) SyncTransactions(ctx context.Context, accountID string, from, to time.Time, dryRun bool) (Stats, error) {
	log := logger.FromContext(ctx).With().
		Str("account_id", accountID).
		Bool("dry_run", dryRun).
		Logger()

	account, err := s.src.GetAccount(ctx, accountID)
	if err != nil {
		return Stats{}, fmt.Errorf("SyncTransactions: loading account: %w", err)
	}
	categories, err := s.src.ListCategories(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("SyncTransactions: loading categories: %w", err)
	}
	categoryNames := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	transactions, err := s.src.ListTransactions(ctx, accountID, from, to)
	if err != nil {
		return Stats{}, fmt.Errorf("SyncTransactions: loading transactions: %w", err)
	}
	stats := Stats{Total: len(transactions)}
	log.Info().Int("transaction_count", len(transactions)).Msg("Starting transaction sync to Notion")

	pages, err := queryAllNotionPages(ctx, s.notion, s.databaseID)
	if err != nil {
		return stats, fmt.Errorf("SyncTransactions: %w", err)
	}

	valid := make(map[string]bool, len(transactions))
	for _, tx := range transactions {
		valid[tx.ID] = true
	}

	existing := make(map[string]string)
	for _, page := range pages {
		if !inScope(page, accountID, from, to) {
			continue
		}
		txID := extractText(page, PropTransactionID)
		if txID != "" && valid[txID] {
			existing[txID] = string(page.ID)
			continue
		}

		if dryRun {
			log.Info().Str("transaction_id", txID).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := s.notion.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	for _, tx := range transactions {
		props := TransactionToNotionProperties(tx, *account, categoryNames[tx.CategoryID])
		pageID, found := existing[tx.ID]

		if dryRun {
			if found {
				stats.Updated++
			} else {
				log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create Notion page")
				stats.Created++
			}
			continue
		}

		if found {
			if _, err := s.notion.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
			continue
		}

		page, err := s.notion.CreatePage(ctx, s.databaseID, props)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().Str("transaction_id", tx.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Transaction sync completed")

	return stats, nil
}

// inScope reports whether page belongs to accountID and, when it carries
// a date, falls inside [from, to).
func inScope(page notionapi.Page, accountID string, from, to time.Time) bool {
	if extractText(page, PropAccountID) != accountID {
		return false
	}
	d, ok := extractDate(page, PropDate)
	if !ok {
		return true
	}
	if !from.IsZero() && d.Before(dateOf(from)) {
		return false
	}
	if !to.IsZero() && !d.Before(dateOf(to)) {
		return false
	}
	return true
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// queryAllNotionPages queries all pages from a Notion database, following
// pagination cursors.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var (
		allPages []notionapi.Page
		cursor   notionapi.Cursor
	)

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: pageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
