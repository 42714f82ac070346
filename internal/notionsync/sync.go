// Package notionsync mirrors a user's ledger transactions into a Notion
// database.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of transactions to process in a single batch
	BatchSize = 100
	pageSize  = 100
)

// Result counts what a sync did, or would do in dry-run mode.
type Result struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Archived  int `json:"archived"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

func (r Result) String() string {
	return fmt.Sprintf("created=%d updated=%d archived=%d unchanged=%d failed=%d",
		r.Created, r.Updated, r.Archived, r.Unchanged, r.Failed)
}

// Syncer mirrors transactions into one Notion database shared by all users.
// Pages are matched to transactions through the "Transaction ID" property
// and scoped to a user through "Owner".
type Syncer struct {
	notion     NotionService
	databaseID string
	source     TransactionLister
}

// NewSyncer creates a Syncer.
func NewSyncer(notion NotionService, databaseID string, source TransactionLister) *Syncer {
	return &Syncer{notion: notion, databaseID: databaseID, source: source}
}

// Sync makes the owner's pages dated within [from, to] match their
// transactions: missing pages are created, changed ones updated, and pages
// whose transaction is gone are archived. A nil bound is open. Per-page
// failures are counted and the sync continues; Sync then reports an error
// so the job is retried.
func (s *Syncer) Sync(ctx context.Context, ownerID string, from, to *time.Time, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)
	var res Result

	log.Info().
		Str("owner_id", ownerID).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	views, err := s.source.List(ctx, ownerID, domain.TransactionFilter{From: from, To: to})
	if err != nil {
		return res, fmt.Errorf("failed to query transactions: %w", err)
	}

	pages, err := queryAllNotionPages(ctx, s.notion, s.databaseID, ownerID)
	if err != nil {
		return res, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().
		Int("transaction_count", len(views)).
		Int("notion_page_count", len(pages)).
		Msg("Loaded transactions and Notion pages")

	valid := make(map[string]bool, len(views))
	for _, v := range views {
		valid[v.ID] = true
	}

	// Archive pages whose transaction no longer exists, and duplicates.
	existing := make(map[string]notionapi.Page)
	for _, page := range pages {
		if d, ok := extractDate(page); ok && !inRange(d, from, to) {
			continue
		}

		txID := extractTransactionID(page)
		_, dup := existing[txID]
		if txID != "" && valid[txID] && !dup {
			existing[txID] = page
			continue
		}

		if dryRun {
			log.Info().Str("transaction_id", txID).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := s.notion.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("transaction_id", txID).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for i := 0; i < len(views); i += BatchSize {
		end := min(i+BatchSize, len(views))
		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Processing batch")

		for _, v := range views[i:end] {
			s.syncOne(ctx, v, existing, dryRun, &res)
		}
	}

	log.Info().
		Str("owner_id", ownerID).
		Str("result", res.String()).
		Msg("Transaction sync completed")

	if res.Failed > 0 {
		return res, fmt.Errorf("notion sync: %d page operations failed", res.Failed)
	}
	return res, nil
}

func (s *Syncer) syncOne(ctx context.Context, v domain.TransactionView, existing map[string]notionapi.Page, dryRun bool, res *Result) {
	log := logger.FromContext(ctx)

	page, found := existing[v.ID]
	if found && extractLastModified(page) == lastModified(v) {
		res.Unchanged++
		return
	}

	if dryRun {
		if found {
			log.Info().Str("transaction_id", v.ID).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would update existing Notion page")
			res.Updated++
		} else {
			log.Info().Str("transaction_id", v.ID).Msg("[DRY RUN] Would create new Notion page")
			res.Created++
		}
		return
	}

	props := TransactionToNotionProperties(v)

	if found {
		if _, err := s.notion.UpdatePage(ctx, string(page.ID), props); err != nil {
			log.Warn().Err(err).Str("transaction_id", v.ID).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
			res.Failed++
			return
		}
		res.Updated++
		return
	}

	created, err := s.notion.CreatePage(ctx, s.databaseID, props)
	if err != nil {
		log.Warn().Err(err).Str("transaction_id", v.ID).Msg("Failed to create Notion page")
		res.Failed++
		return
	}
	log.Debug().Str("transaction_id", v.ID).Str("page_id", string(created.ID)).Msg("Created Notion page")
	res.Created++
}

func inRange(d time.Time, from, to *time.Time) bool {
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

// queryAllNotionPages queries all of the owner's pages from a Notion
// database. Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID, ownerID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: propOwner,
				RichText: &notionapi.TextFilterCondition{Equals: ownerID},
			},
			PageSize: pageSize,
		}

		// Only set StartCursor if we have a cursor value
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
