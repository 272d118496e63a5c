// Package report renders a reconciliation result into the three tabular
// views a reviewer works from: matched pairs, cashbook-only rows, and
// bank-only rows, plus headline figures.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/dvloznov/bank-recon/internal/recon"
	"github.com/shopspring/decimal"
)

// Summary holds the headline figures for one reconciliation run.
type Summary struct {
	TotalCashbook     int `json:"total_cashbook"`
	TotalBank         int `json:"total_bank"`
	MatchedCount      int `json:"matched_count"`
	CashbookRemaining int `json:"cashbook_remaining"`
	BankRemaining     int `json:"bank_remaining"`

	// MatchedPct is matched cashbook rows over total cashbook rows.
	MatchedPct float64 `json:"matched_pct"`

	// Unexplained totals, summed over each remaining set.
	CashbookUnmatchedAmount string `json:"cashbook_unmatched_amount"`
	BankUnmatchedAmount     string `json:"bank_unmatched_amount"`
}

// Summarize computes the headline figures from a match result.
func Summarize(result recon.MatchResult) Summary {
	s := Summary{
		TotalCashbook:     len(result.Matched) + len(result.CashbookRemaining),
		TotalBank:         len(result.Matched) + len(result.BankRemaining),
		MatchedCount:      len(result.Matched),
		CashbookRemaining: len(result.CashbookRemaining),
		BankRemaining:     len(result.BankRemaining),
	}

	if s.TotalCashbook > 0 {
		s.MatchedPct = float64(s.MatchedCount) / float64(s.TotalCashbook) * 100
	}

	s.CashbookUnmatchedAmount = sumAmounts(result.CashbookRemaining).StringFixed(2)
	s.BankUnmatchedAmount = sumAmounts(result.BankRemaining).StringFixed(2)

	return s
}

func sumAmounts(records []recon.CanonicalRecord) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		if rec.AmountValid {
			total = total.Add(rec.Amount)
		}
	}
	return total
}

// MatchedCSV renders the matched pairs table, one row per pair, cashbook
// columns first.
func MatchedCSV(result recon.MatchResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"cashbook_row", "cashbook_date", "cashbook_description",
		"bank_row", "bank_date", "bank_description",
		"reference", "amount",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("MatchedCSV: %w", err)
	}

	for _, pair := range result.Matched {
		row := []string{
			fmt.Sprintf("%d", pair.Cashbook.RawIndex+1),
			dateString(pair.Cashbook),
			pair.Cashbook.Description,
			fmt.Sprintf("%d", pair.Bank.RawIndex+1),
			dateString(pair.Bank),
			pair.Bank.Description,
			pair.Cashbook.ReferenceKey,
			pair.Cashbook.Amount.StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("MatchedCSV: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("MatchedCSV: %w", err)
	}
	return buf.Bytes(), nil
}

// RemainingCSV renders one remaining set. Every row keeps enough context to
// trace back to its source line, including why it stayed unmatched.
func RemainingCSV(records []recon.CanonicalRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"row", "source", "date", "description", "reference", "amount", "issues"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("RemainingCSV: %w", err)
	}

	for _, rec := range records {
		amount := ""
		if rec.AmountValid {
			amount = rec.Amount.StringFixed(2)
		}
		row := []string{
			fmt.Sprintf("%d", rec.RawIndex+1),
			string(rec.Source),
			dateString(rec),
			rec.Description,
			rec.ReferenceKey,
			amount,
			issueList(rec.Issues),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("RemainingCSV: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("RemainingCSV: %w", err)
	}
	return buf.Bytes(), nil
}

func dateString(rec recon.CanonicalRecord) string {
	if !rec.DateValid {
		return ""
	}
	return rec.Date.String()
}

func issueList(issues []recon.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	parts := make([]string, 0, len(issues))
	for _, i := range issues {
		parts = append(parts, string(i))
	}
	return strings.Join(parts, ";")
}

// Report bundles everything the API returns for one run.
type Report struct {
	Summary           Summary                  `json:"summary"`
	Matched           []MatchedRow             `json:"matched"`
	CashbookRemaining []RemainingRow           `json:"cashbook_remaining"`
	BankRemaining     []RemainingRow           `json:"bank_remaining"`
}

// MatchedRow is one matched pair in the JSON report.
type MatchedRow struct {
	CashbookRow         int    `json:"cashbook_row"`
	CashbookDate        string `json:"cashbook_date,omitempty"`
	CashbookDescription string `json:"cashbook_description"`
	BankRow             int    `json:"bank_row"`
	BankDate            string `json:"bank_date,omitempty"`
	BankDescription     string `json:"bank_description"`
	Reference           string `json:"reference"`
	Amount              string `json:"amount"`
}

// RemainingRow is one unexplained record in the JSON report.
type RemainingRow struct {
	Row         int      `json:"row"`
	Source      string   `json:"source"`
	Date        string   `json:"date,omitempty"`
	Description string   `json:"description"`
	Reference   string   `json:"reference,omitempty"`
	Amount      string   `json:"amount,omitempty"`
	Issues      []string `json:"issues,omitempty"`
}

// Build assembles the full JSON report from a match result.
func Build(result recon.MatchResult) Report {
	rep := Report{
		Summary:           Summarize(result),
		Matched:           make([]MatchedRow, 0, len(result.Matched)),
		CashbookRemaining: make([]RemainingRow, 0, len(result.CashbookRemaining)),
		BankRemaining:     make([]RemainingRow, 0, len(result.BankRemaining)),
	}

	for _, pair := range result.Matched {
		rep.Matched = append(rep.Matched, MatchedRow{
			CashbookRow:         pair.Cashbook.RawIndex + 1,
			CashbookDate:        dateString(pair.Cashbook),
			CashbookDescription: pair.Cashbook.Description,
			BankRow:             pair.Bank.RawIndex + 1,
			BankDate:            dateString(pair.Bank),
			BankDescription:     pair.Bank.Description,
			Reference:           pair.Cashbook.ReferenceKey,
			Amount:              pair.Cashbook.Amount.StringFixed(2),
		})
	}

	rep.CashbookRemaining = remainingRows(result.CashbookRemaining)
	rep.BankRemaining = remainingRows(result.BankRemaining)

	return rep
}

func remainingRows(records []recon.CanonicalRecord) []RemainingRow {
	rows := make([]RemainingRow, 0, len(records))
	for _, rec := range records {
		row := RemainingRow{
			Row:         rec.RawIndex + 1,
			Source:      string(rec.Source),
			Date:        dateString(rec),
			Description: rec.Description,
			Reference:   rec.ReferenceKey,
		}
		if rec.AmountValid {
			row.Amount = rec.Amount.StringFixed(2)
		}
		for _, i := range rec.Issues {
			row.Issues = append(row.Issues, string(i))
		}
		rows = append(rows, row)
	}
	return rows
}
