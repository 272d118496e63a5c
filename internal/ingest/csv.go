package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dvloznov/bank-recon/internal/recon"
)

// ColumnMapping names the CSV headers that carry each logical field.
// Header matching is case-insensitive and ignores surrounding whitespace.
// Leave a name empty when the export has no such column.
type ColumnMapping struct {
	Description string
	Date        string
	Amount      string
	Receipt     string
	Payment     string
	Debit       string
	Credit      string
	Reference   string
}

// DefaultCashbookMapping matches the usual cashbook export headers.
func DefaultCashbookMapping() ColumnMapping {
	return ColumnMapping{
		Description: "details",
		Date:        "date",
		Amount:      "amount",
		Receipt:     "receipt",
		Payment:     "payment",
		Reference:   "reference",
	}
}

// DefaultBankMapping matches the usual bank statement export headers.
func DefaultBankMapping() ColumnMapping {
	return ColumnMapping{
		Description: "details",
		Date:        "date",
		Debit:       "debit",
		Credit:      "credit",
		Reference:   "reference",
	}
}

// hasAmountColumn reports whether the mapping names at least one amount
// carrying column. A mapping without one can never produce matchable rows,
// which is a structural error, not a row-local one.
func (m ColumnMapping) hasAmountColumn() bool {
	return m.Amount != "" || m.Receipt != "" || m.Payment != "" || m.Debit != "" || m.Credit != ""
}

// ReadLedgerFile reads one ledger CSV from disk into raw records.
func ReadLedgerFile(path string, mapping ColumnMapping) ([]recon.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadLedgerFile: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadLedger(f, mapping)
	if err != nil {
		return nil, fmt.Errorf("ReadLedgerFile: %s: %w", path, err)
	}
	return records, nil
}

// ReadLedgerBytes reads one ledger CSV from memory into raw records.
func ReadLedgerBytes(data []byte, mapping ColumnMapping) ([]recon.RawRecord, error) {
	return ReadLedger(bytes.NewReader(data), mapping)
}

// ReadLedger reads a header-first CSV stream into raw records, one per data
// row, applying the column mapping. Cell values pass through untouched; all
// cleaning belongs to the normalizer. Only structural problems (unreadable
// CSV, missing header, no amount column) fail the read.
func ReadLedger(r io.Reader, mapping ColumnMapping) ([]recon.RawRecord, error) {
	if !mapping.hasAmountColumn() {
		return nil, errors.New("ReadLedger: column mapping names no amount column")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("ReadLedger: empty input, expected a header row")
	}
	if err != nil {
		return nil, fmt.Errorf("ReadLedger: reading header: %w", err)
	}

	idx := headerIndex(header)
	cols := columnIndexes{
		description: lookup(idx, mapping.Description),
		date:        lookup(idx, mapping.Date),
		amount:      lookup(idx, mapping.Amount),
		receipt:     lookup(idx, mapping.Receipt),
		payment:     lookup(idx, mapping.Payment),
		debit:       lookup(idx, mapping.Debit),
		credit:      lookup(idx, mapping.Credit),
		reference:   lookup(idx, mapping.Reference),
	}
	if cols.amount < 0 && cols.receipt < 0 && cols.payment < 0 && cols.debit < 0 && cols.credit < 0 {
		return nil, fmt.Errorf("ReadLedger: none of the mapped amount columns found in header %v", header)
	}

	var records []recon.RawRecord
	rowNo := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadLedger: reading row %d: %w", rowNo, err)
		}

		records = append(records, recon.RawRecord{
			Description: cellValue(row, cols.description),
			Date:        cellValue(row, cols.date),
			Amount:      cellPtr(row, cols.amount),
			Receipt:     cellPtr(row, cols.receipt),
			Payment:     cellPtr(row, cols.payment),
			Debit:       cellPtr(row, cols.debit),
			Credit:      cellPtr(row, cols.credit),
			Reference:   cellValue(row, cols.reference),
		})
		rowNo++
	}

	return records, nil
}

type columnIndexes struct {
	description int
	date        int
	amount      int
	receipt     int
	payment     int
	debit       int
	credit      int
	reference   int
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

func lookup(idx map[string]int, name string) int {
	if name == "" {
		return -1
	}
	if i, ok := idx[strings.ToLower(strings.TrimSpace(name))]; ok {
		return i
	}
	return -1
}

// cellValue returns the cell text, or "" when the column is unmapped or the
// row is short.
func cellValue(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// cellPtr distinguishes an absent column (nil) from a present cell, empty
// or not. The normalizer relies on that distinction for the amount columns.
func cellPtr(row []string, col int) *string {
	if col < 0 || col >= len(row) {
		return nil
	}
	v := row[col]
	return &v
}
