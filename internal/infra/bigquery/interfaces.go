package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// RunRepository is the warehouse surface the pipeline depends on. Keeping
// it an interface lets tests run the pipeline without a BigQuery project.
type RunRepository interface {
	StartRun(ctx context.Context, cashbookURI, bankURI string) (string, error)
	MarkRunFailed(ctx context.Context, runID string, runErr error)
	MarkRunSucceeded(ctx context.Context, runID string, totalCashbook, totalBank, matched int) error
	InsertResults(ctx context.Context, rows []*ResultRow) error
	ListRuns(ctx context.Context, limit int) ([]*RunRow, error)
}

// BigQueryRunRepository is the concrete RunRepository. It holds a shared
// BigQuery client to avoid creating a new connection for each operation.
type BigQueryRunRepository struct {
	client *bigquery.Client
}

// NewBigQueryRunRepository creates a repository with a shared client.
func NewBigQueryRunRepository(ctx context.Context) (*BigQueryRunRepository, error) {
	client, err := bigquery.NewClient(ctx, ProjectID())
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRunRepository: creating client: %w", err)
	}
	return &BigQueryRunRepository{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartRun delegates to StartRunWithClient with the shared client.
func (r *BigQueryRunRepository) StartRun(ctx context.Context, cashbookURI, bankURI string) (string, error) {
	return StartRunWithClient(ctx, r.client, cashbookURI, bankURI)
}

// MarkRunFailed delegates to MarkRunFailedWithClient with the shared client.
func (r *BigQueryRunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, runID, runErr)
}

// MarkRunSucceeded delegates to MarkRunSucceededWithClient with the shared client.
func (r *BigQueryRunRepository) MarkRunSucceeded(ctx context.Context, runID string, totalCashbook, totalBank, matched int) error {
	return MarkRunSucceededWithClient(ctx, r.client, runID, totalCashbook, totalBank, matched)
}

// InsertResults delegates to InsertResultsWithClient with the shared client.
func (r *BigQueryRunRepository) InsertResults(ctx context.Context, rows []*ResultRow) error {
	return InsertResultsWithClient(ctx, r.client, rows)
}

// ListRuns delegates to ListRunsWithClient with the shared client.
func (r *BigQueryRunRepository) ListRuns(ctx context.Context, limit int) ([]*RunRow, error) {
	return ListRunsWithClient(ctx, r.client, limit)
}

var _ RunRepository = (*BigQueryRunRepository)(nil)
