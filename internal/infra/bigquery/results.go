package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// InsertResults streams a batch of ResultRow into recon.reconciliation_results.
func InsertResults(ctx context.Context, rows []*ResultRow) error {
	client, err := bigquery.NewClient(ctx, ProjectID())
	if err != nil {
		return fmt.Errorf("InsertResults: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertResultsWithClient(ctx, client, rows)
}

// InsertResultsWithClient streams a batch of ResultRow using the provided
// BigQuery client.
func InsertResultsWithClient(ctx context.Context, client *bigquery.Client, rows []*ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	table := client.DatasetInProject(ProjectID(), datasetID).Table(resultsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertResults: inserting rows: %w", err)
	}

	return nil
}

// ListRuns returns the most recent reconciliation runs, newest first.
func ListRuns(ctx context.Context, limit int) ([]*RunRow, error) {
	client, err := bigquery.NewClient(ctx, ProjectID())
	if err != nil {
		return nil, fmt.Errorf("ListRuns: bigquery client: %w", err)
	}
	defer client.Close()

	return ListRunsWithClient(ctx, client, limit)
}

// ListRunsWithClient returns the most recent runs using the provided client.
func ListRunsWithClient(ctx context.Context, client *bigquery.Client, limit int) ([]*RunRow, error) {
	if limit <= 0 {
		limit = 50
	}

	q := client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: reading query: %w", err)
	}

	var runs []*RunRow
	for {
		var row RunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRuns: iterating rows: %w", err)
		}
		runs = append(runs, &row)
	}

	return runs, nil
}
