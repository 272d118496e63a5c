package notionsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/bank-recon/internal/logger"
	"github.com/dvloznov/bank-recon/internal/recon"
	"github.com/jomei/notionapi"
)

// PublishExceptions pushes the unmatched records of one reconciliation run
// to a Notion database, so reviewers can annotate and chase them there.
// This function:
// 1. Queries all existing Notion exception pages
// 2. Deletes stale pages from earlier syncs of the same run
// 3. Creates pages for exceptions not yet in Notion
// The Exception ID title property carries run ID, source and row number,
// which keeps re-syncs idempotent.
func PublishExceptions(ctx context.Context, notionClient NotionService, notionDBID, runID string, result recon.MatchResult, dryRun bool) error {
	log := logger.FromContext(ctx)

	exceptions := make([]recon.CanonicalRecord, 0, len(result.CashbookRemaining)+len(result.BankRemaining))
	exceptions = append(exceptions, result.CashbookRemaining...)
	exceptions = append(exceptions, result.BankRemaining...)

	log.Info().
		Str("run_id", runID).
		Int("exception_count", len(exceptions)).
		Bool("dry_run", dryRun).
		Msg("Starting exception sync to Notion")

	// Build set of valid exception IDs for this run
	validIDs := make(map[string]bool, len(exceptions))
	for _, rec := range exceptions {
		validIDs[ExceptionID(runID, rec)] = true
	}

	// Query all existing exception pages from Notion
	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	// Build map of existing exception IDs in Notion (for deduplication)
	existingIDs := make(map[string]bool)
	for _, page := range notionPages {
		id := extractExceptionID(page)
		if id != "" {
			existingIDs[id] = true
		}
	}

	// Delete stale pages that belong to this run but are no longer in the
	// exception set. Pages from other runs stay untouched.
	var deleted int
	for _, page := range notionPages {
		id := extractExceptionID(page)
		if id == "" || !strings.HasPrefix(id, runID+":") || validIDs[id] {
			continue
		}

		if dryRun {
			log.Info().
				Str("exception_id", id).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would delete stale Notion page")
			deleted++
			continue
		}

		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("exception_id", id).
				Str("page_id", string(page.ID)).
				Msg("Failed to delete stale Notion page")
			continue
		}
		log.Info().
			Str("exception_id", id).
			Str("page_id", string(page.ID)).
			Msg("Deleted stale Notion page")
		deleted++
	}

	// Create pages for new exceptions
	var created, skipped int
	for _, rec := range exceptions {
		id := ExceptionID(runID, rec)

		if existingIDs[id] {
			skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("exception_id", id).
				Msg("[DRY RUN] Would create Notion page for exception")
			created++
			continue
		}

		props := ExceptionToNotionProperties(runID, rec)

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("exception_id", id).
				Msg("Failed to create Notion page for exception")
			// Continue processing other exceptions
			continue
		}

		log.Info().
			Str("exception_id", id).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page for exception")
		created++
	}

	log.Info().
		Int("created", created).
		Int("deleted", deleted).
		Int("skipped", skipped).
		Int("total", len(exceptions)).
		Msg("Exception sync completed")

	return nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
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

// extractExceptionID extracts the exception ID from a Notion page's properties.
// Returns empty string if not found.
func extractExceptionID(page notionapi.Page) string {
	if prop, ok := page.Properties["Exception ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
