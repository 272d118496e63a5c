package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bank-recon/internal/recon"
)

// Result buckets as stored in recon.reconciliation_results.
const (
	BucketMatched           = "MATCHED"
	BucketCashbookRemaining = "CASHBOOK_REMAINING"
	BucketBankRemaining     = "BANK_REMAINING"
)

// RunRow is one row of recon.reconciliation_runs.
type RunRow struct {
	RunID string `bigquery:"run_id"`

	CashbookURI string `bigquery:"cashbook_uri"`
	BankURI     string `bigquery:"bank_uri"`

	StartedAt  time.Time              `bigquery:"started_ts"`
	FinishedAt bigquery.NullTimestamp `bigquery:"finished_ts"`

	EngineVersion string `bigquery:"engine_version"`

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`

	TotalCashbook bigquery.NullInt64 `bigquery:"total_cashbook"`
	TotalBank     bigquery.NullInt64 `bigquery:"total_bank"`
	MatchedCount  bigquery.NullInt64 `bigquery:"matched_count"`
}

// ResultRow is one row of recon.reconciliation_results: a single canonical
// record in its output bucket. Matched records carry the 1-based source row
// of their counterpart.
type ResultRow struct {
	RunID  string `bigquery:"run_id"`
	Bucket string `bigquery:"bucket"`
	Source string `bigquery:"source"`

	RowNo int64 `bigquery:"row_no"` // 1-based source row

	Date bigquery.NullDate `bigquery:"transaction_date"`

	Amount      *big.Rat `bigquery:"amount"` // NUMERIC, NULL when undefined
	Description string   `bigquery:"description"`
	Reference   string   `bigquery:"reference"`

	CounterpartRowNo bigquery.NullInt64 `bigquery:"counterpart_row_no"`

	Issues []string `bigquery:"issues"` // REPEATED STRING

	CreatedTS time.Time `bigquery:"created_ts"`
}

// BuildResultRows flattens a match result into warehouse rows, one per
// canonical record, timestamped at now.
func BuildResultRows(runID string, result recon.MatchResult, now time.Time) []*ResultRow {
	rows := make([]*ResultRow, 0, 2*len(result.Matched)+len(result.CashbookRemaining)+len(result.BankRemaining))

	for _, pair := range result.Matched {
		cb := recordRow(runID, BucketMatched, pair.Cashbook, now)
		cb.CounterpartRowNo = bigquery.NullInt64{Int64: int64(pair.Bank.RawIndex + 1), Valid: true}
		rows = append(rows, cb)

		bk := recordRow(runID, BucketMatched, pair.Bank, now)
		bk.CounterpartRowNo = bigquery.NullInt64{Int64: int64(pair.Cashbook.RawIndex + 1), Valid: true}
		rows = append(rows, bk)
	}
	for _, rec := range result.CashbookRemaining {
		rows = append(rows, recordRow(runID, BucketCashbookRemaining, rec, now))
	}
	for _, rec := range result.BankRemaining {
		rows = append(rows, recordRow(runID, BucketBankRemaining, rec, now))
	}

	return rows
}

func recordRow(runID, bucket string, rec recon.CanonicalRecord, now time.Time) *ResultRow {
	row := &ResultRow{
		RunID:       runID,
		Bucket:      bucket,
		Source:      string(rec.Source),
		RowNo:       int64(rec.RawIndex + 1),
		Description: rec.Description,
		Reference:   rec.ReferenceKey,
		CreatedTS:   now,
	}
	if rec.DateValid {
		row.Date = bigquery.NullDate{Date: rec.Date, Valid: true}
	}
	if rec.AmountValid {
		row.Amount = rec.Amount.Rat()
	}
	for _, i := range rec.Issues {
		row.Issues = append(row.Issues, string(i))
	}
	return row
}
