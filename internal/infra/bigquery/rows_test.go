package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bank-recon/internal/recon"
	"github.com/shopspring/decimal"
)

func rec(t *testing.T, source recon.Source, amount string, index int) recon.CanonicalRecord {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("decimal.NewFromString(%q): %v", amount, err)
	}
	return recon.CanonicalRecord{
		Source:       source,
		Date:         civil.Date{Year: 2024, Month: time.May, Day: 1},
		DateValid:    true,
		Amount:       amt,
		AmountValid:  true,
		ReferenceKey: "4471",
		RawIndex:     index,
	}
}

func TestBuildResultRows(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	result := recon.MatchResult{
		Matched: []recon.MatchedPair{
			{Cashbook: rec(t, recon.SourceCashbook, "-450.00", 0), Bank: rec(t, recon.SourceBank, "-450.00", 4)},
		},
		CashbookRemaining: []recon.CanonicalRecord{
			{Source: recon.SourceCashbook, RawIndex: 2, Issues: []recon.Issue{recon.IssueNotANumber}},
		},
		BankRemaining: []recon.CanonicalRecord{rec(t, recon.SourceBank, "12.50", 1)},
	}

	rows := BuildResultRows("run-1", result, now)

	if len(rows) != 4 {
		t.Fatalf("len(rows) = %d, want 4", len(rows))
	}

	cb := rows[0]
	if cb.Bucket != BucketMatched || cb.Source != string(recon.SourceCashbook) {
		t.Errorf("first row = (%s, %s), want matched cashbook", cb.Bucket, cb.Source)
	}
	if cb.RowNo != 1 {
		t.Errorf("RowNo = %d, want 1", cb.RowNo)
	}
	if !cb.CounterpartRowNo.Valid || cb.CounterpartRowNo.Int64 != 5 {
		t.Errorf("CounterpartRowNo = %+v, want 5", cb.CounterpartRowNo)
	}

	bk := rows[1]
	if !bk.CounterpartRowNo.Valid || bk.CounterpartRowNo.Int64 != 1 {
		t.Errorf("bank CounterpartRowNo = %+v, want 1", bk.CounterpartRowNo)
	}

	remaining := rows[2]
	if remaining.Bucket != BucketCashbookRemaining {
		t.Errorf("bucket = %s, want %s", remaining.Bucket, BucketCashbookRemaining)
	}
	if remaining.Amount != nil {
		t.Errorf("invalid amount must map to NULL, got %v", remaining.Amount)
	}
	if remaining.Date.Valid {
		t.Error("invalid date must map to NULL")
	}
	if len(remaining.Issues) != 1 || remaining.Issues[0] != string(recon.IssueNotANumber) {
		t.Errorf("issues = %v, want [%s]", remaining.Issues, recon.IssueNotANumber)
	}
	if remaining.CounterpartRowNo.Valid {
		t.Error("remaining record must have no counterpart")
	}

	if rows[3].Bucket != BucketBankRemaining {
		t.Errorf("last bucket = %s, want %s", rows[3].Bucket, BucketBankRemaining)
	}
	if rows[3].Amount == nil {
		t.Error("valid amount must map to NUMERIC, got NULL")
	}

	for i, row := range rows {
		if row.RunID != "run-1" {
			t.Errorf("rows[%d].RunID = %q", i, row.RunID)
		}
		if !row.CreatedTS.Equal(now) {
			t.Errorf("rows[%d].CreatedTS = %v, want %v", i, row.CreatedTS, now)
		}
	}
}
