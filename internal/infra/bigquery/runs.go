package bigquery

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bank-recon/internal/logger"
	"github.com/google/uuid"
)

const (
	defaultProjectID = "studious-union-470122-v7"
	datasetID        = "recon"
	runsTable        = "reconciliation_runs"
	resultsTable     = "reconciliation_results"

	// EngineVersion is stamped on every run row so results can be tied to
	// the matching rule that produced them.
	EngineVersion = "v1"
)

// ProjectID returns the BigQuery project, overridable via RECON_BQ_PROJECT.
func ProjectID() string {
	if p := os.Getenv("RECON_BQ_PROJECT"); p != "" {
		return p
	}
	return defaultProjectID
}

// StartRun inserts a reconciliation_runs row with status=RUNNING and
// returns the generated run_id.
func StartRun(ctx context.Context, cashbookURI, bankURI string) (string, error) {
	client, err := bigquery.NewClient(ctx, ProjectID())
	if err != nil {
		return "", fmt.Errorf("StartRun: bigquery client: %w", err)
	}
	defer client.Close()

	return StartRunWithClient(ctx, client, cashbookURI, bankURI)
}

// StartRunWithClient inserts a reconciliation_runs row with status=RUNNING
// using the provided BigQuery client.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, cashbookURI, bankURI string) (string, error) {
	runID := uuid.NewString()
	started := time.Now()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			cashbook_uri,
			bank_uri,
			started_ts,
			engine_version,
			status
		)
		VALUES (
			@run_id,
			@cashbook_uri,
			@bank_uri,
			@started_ts,
			@engine_version,
			@status
		)
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "cashbook_uri", Value: cashbookURI},
		{Name: "bank_uri", Value: bankURI},
		{Name: "started_ts", Value: started},
		{Name: "engine_version", Value: EngineVersion},
		{Name: "status", Value: "RUNNING"},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("StartRun: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("StartRun: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("StartRun: job error: %w", err)
	}

	return runID, nil
}

// MarkRunFailed sets status=FAILED, finished_ts and error_message. Failures
// here are logged, not returned; the original error is what the caller
// cares about.
func MarkRunFailed(ctx context.Context, runID string, runErr error) {
	log := logger.FromContext(ctx)

	client, err := bigquery.NewClient(ctx, ProjectID())
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: bigquery client error")
		return
	}
	defer client.Close()

	MarkRunFailedWithClient(ctx, client, runID, runErr)
}

// MarkRunFailedWithClient sets status=FAILED, finished_ts and error_message
// using the provided BigQuery client.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, runID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "FAILED"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("MarkRunFailed: running update query")
		return
	}

	status, err := job.Wait(ctx)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("MarkRunFailed: waiting for job")
		return
	}
	if err := status.Err(); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("MarkRunFailed: job completed with error")
	}
}

// MarkRunSucceeded sets status=SUCCESS, finished_ts and the headline
// counters.
func MarkRunSucceeded(ctx context.Context, runID string, totalCashbook, totalBank, matched int) error {
	client, err := bigquery.NewClient(ctx, ProjectID())
	if err != nil {
		return fmt.Errorf("MarkRunSucceeded: bigquery client: %w", err)
	}
	defer client.Close()

	return MarkRunSucceededWithClient(ctx, client, runID, totalCashbook, totalBank, matched)
}

// MarkRunSucceededWithClient sets status=SUCCESS using the provided client.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, runID string, totalCashbook, totalBank, matched int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    total_cashbook = @total_cashbook,
		    total_bank = @total_bank,
		    matched_count = @matched_count
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "SUCCESS"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "total_cashbook", Value: totalCashbook},
		{Name: "total_bank", Value: totalBank},
		{Name: "matched_count", Value: matched},
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("MarkRunSucceeded: running update query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("MarkRunSucceeded: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("MarkRunSucceeded: job error: %w", err)
	}

	return nil
}
