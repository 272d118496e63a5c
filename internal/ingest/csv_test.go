package ingest

import (
	"strings"
	"testing"
)

func TestReadLedgerCashbook(t *testing.T) {
	input := strings.Join([]string{
		"Date,Details,Receipt,Payment,Reference",
		`01/03/2024,"Chq 4471 payment to Acme",,200.00,`,
		`02/03/2024,"Customer deposit",1000,,INV-552`,
	}, "\n")

	records, err := ReadLedger(strings.NewReader(input), DefaultCashbookMapping())
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.Description != "Chq 4471 payment to Acme" {
		t.Errorf("description = %q", first.Description)
	}
	if first.Date != "01/03/2024" {
		t.Errorf("date = %q", first.Date)
	}
	if first.Receipt == nil || *first.Receipt != "" {
		t.Errorf("receipt cell should be present and empty, got %v", first.Receipt)
	}
	if first.Payment == nil || *first.Payment != "200.00" {
		t.Errorf("payment = %v, want 200.00", first.Payment)
	}
	if first.Amount != nil {
		t.Errorf("amount column is unmapped in this file, got %v", first.Amount)
	}

	second := records[1]
	if second.Reference != "INV-552" {
		t.Errorf("reference = %q, want INV-552", second.Reference)
	}
}

func TestReadLedgerBank(t *testing.T) {
	input := strings.Join([]string{
		"date,details,debit,credit",
		"03/03/2024,CHEQUE 4471,200.00,",
	}, "\n")

	records, err := ReadLedger(strings.NewReader(input), DefaultBankMapping())
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Debit == nil || *records[0].Debit != "200.00" {
		t.Errorf("debit = %v, want 200.00", records[0].Debit)
	}
	if records[0].Reference != "" {
		t.Errorf("reference = %q, want empty (column absent)", records[0].Reference)
	}
}

func TestReadLedgerHeaderMatchingIsCaseInsensitive(t *testing.T) {
	input := strings.Join([]string{
		" DATE , DETAILS , AMOUNT ",
		"01/01/2024,opening,5.00",
	}, "\n")

	mapping := ColumnMapping{Description: "details", Date: "date", Amount: "amount"}
	records, err := ReadLedger(strings.NewReader(input), mapping)
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if records[0].Amount == nil || *records[0].Amount != "5.00" {
		t.Errorf("amount = %v, want 5.00", records[0].Amount)
	}
}

func TestReadLedgerShortRows(t *testing.T) {
	input := strings.Join([]string{
		"date,details,debit,credit",
		"03/03/2024,truncated line",
	}, "\n")

	records, err := ReadLedger(strings.NewReader(input), DefaultBankMapping())
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if records[0].Debit != nil || records[0].Credit != nil {
		t.Errorf("short row should have nil amount cells, got %v / %v",
			records[0].Debit, records[0].Credit)
	}
}

func TestReadLedgerStructuralFailures(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		mapping ColumnMapping
	}{
		{
			name:    "empty input",
			input:   "",
			mapping: DefaultBankMapping(),
		},
		{
			name:    "mapping without amount column",
			input:   "date,details\n01/01/2024,x",
			mapping: ColumnMapping{Description: "details", Date: "date"},
		},
		{
			name:    "no mapped amount column in header",
			input:   "date,details,value\n01/01/2024,x,5",
			mapping: DefaultBankMapping(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadLedger(strings.NewReader(tt.input), tt.mapping); err == nil {
				t.Errorf("ReadLedger succeeded, want structural error")
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already clean", `[{"date":"01/03/2024"}]`, `[{"date":"01/03/2024"}]`},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
		{"bare fence", "```\n[1]\n```", "[1]"},
		{"surrounding prose", "Here you go: [1,2] done", "[1,2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.input); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
