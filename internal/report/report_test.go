package report

import (
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bank-recon/internal/recon"
	"github.com/shopspring/decimal"
)

func sampleResult(t *testing.T) recon.MatchResult {
	t.Helper()

	amt := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatalf("bad amount %q: %v", s, err)
		}
		return d
	}

	return recon.MatchResult{
		Matched: []recon.MatchedPair{
			{
				Cashbook: recon.CanonicalRecord{
					Source: recon.SourceCashbook, Description: "CHQ 4471 PAYMENT TO ACME",
					ReferenceKey: "4471", Amount: amt("-200.00"), AmountValid: true,
					Date: civil.Date{Year: 2024, Month: 3, Day: 1}, DateValid: true,
				},
				Bank: recon.CanonicalRecord{
					Source: recon.SourceBank, Description: "CHEQUE 4471",
					ReferenceKey: "4471", Amount: amt("-200.00"), AmountValid: true,
					Date: civil.Date{Year: 2024, Month: 3, Day: 3}, DateValid: true, RawIndex: 2,
				},
			},
		},
		CashbookRemaining: []recon.CanonicalRecord{
			{
				Source: recon.SourceCashbook, Description: "UNBANKED RECEIPT",
				Amount: amt("150.00"), AmountValid: true, ReferenceKey: "881", RawIndex: 1,
			},
			{
				Source: recon.SourceCashbook, Description: "BAD ROW",
				Issues: []recon.Issue{recon.IssueNotANumber, recon.IssueInvalidDate}, RawIndex: 2,
			},
		},
		BankRemaining: []recon.CanonicalRecord{
			{
				Source: recon.SourceBank, Description: "BANK CHARGES",
				Amount: amt("-12.50"), AmountValid: true, RawIndex: 0,
			},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResult(t))

	if s.TotalCashbook != 3 || s.TotalBank != 2 {
		t.Errorf("totals = (%d, %d), want (3, 2)", s.TotalCashbook, s.TotalBank)
	}
	if s.MatchedCount != 1 {
		t.Errorf("matched count = %d, want 1", s.MatchedCount)
	}
	if s.MatchedPct < 33.3 || s.MatchedPct > 33.4 {
		t.Errorf("matched pct = %f, want about 33.3", s.MatchedPct)
	}
	if s.CashbookUnmatchedAmount != "150.00" {
		t.Errorf("cashbook unmatched amount = %s, want 150.00", s.CashbookUnmatchedAmount)
	}
	if s.BankUnmatchedAmount != "-12.50" {
		t.Errorf("bank unmatched amount = %s, want -12.50", s.BankUnmatchedAmount)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(recon.MatchResult{})
	if s.MatchedPct != 0 {
		t.Errorf("matched pct on empty result = %f, want 0", s.MatchedPct)
	}
}

func TestMatchedCSV(t *testing.T) {
	data, err := MatchedCSV(sampleResult(t))
	if err != nil {
		t.Fatalf("MatchedCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header plus 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "cashbook_row,") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "4471") || !strings.Contains(lines[1], "-200.00") {
		t.Errorf("matched row = %q, want reference and amount present", lines[1])
	}
	if !strings.Contains(lines[1], "2024-03-01") || !strings.Contains(lines[1], "2024-03-03") {
		t.Errorf("matched row = %q, want both canonical dates", lines[1])
	}
}

func TestRemainingCSVCarriesIssues(t *testing.T) {
	result := sampleResult(t)
	data, err := RemainingCSV(result.CashbookRemaining)
	if err != nil {
		t.Fatalf("RemainingCSV: %v", err)
	}

	out := string(data)
	if !strings.Contains(out, "NOT_A_NUMBER;INVALID_DATE") {
		t.Errorf("output should carry the issue metadata, got:\n%s", out)
	}
	if !strings.Contains(out, "UNBANKED RECEIPT") {
		t.Errorf("output should carry descriptions, got:\n%s", out)
	}
}

func TestBuildReport(t *testing.T) {
	rep := Build(sampleResult(t))

	if len(rep.Matched) != 1 || len(rep.CashbookRemaining) != 2 || len(rep.BankRemaining) != 1 {
		t.Fatalf("report sizes = (%d, %d, %d), want (1, 2, 1)",
			len(rep.Matched), len(rep.CashbookRemaining), len(rep.BankRemaining))
	}
	if rep.Matched[0].Reference != "4471" {
		t.Errorf("matched reference = %q, want 4471", rep.Matched[0].Reference)
	}
	if rep.CashbookRemaining[1].Amount != "" {
		t.Errorf("invalid-amount row should have empty amount, got %q", rep.CashbookRemaining[1].Amount)
	}
	if len(rep.CashbookRemaining[1].Issues) != 2 {
		t.Errorf("issues = %v, want both carried through", rep.CashbookRemaining[1].Issues)
	}
	// Rows are 1-based for the humans reading the report.
	if rep.BankRemaining[0].Row != 1 {
		t.Errorf("bank remaining row = %d, want 1", rep.BankRemaining[0].Row)
	}
}
