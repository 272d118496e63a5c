package recon

import (
	"testing"

	"github.com/shopspring/decimal"
)

// canon builds a matchable canonical record directly, bypassing the
// normalizer, for matcher-only tests.
func canon(t *testing.T, source Source, ref, amount string, index int) CanonicalRecord {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("bad test amount %q: %v", amount, err)
	}
	return CanonicalRecord{
		Source:       source,
		Amount:       amt,
		AmountValid:  true,
		ReferenceKey: ref,
		RawIndex:     index,
	}
}

func TestReconcileExactKeyMatch(t *testing.T) {
	cashbook := []CanonicalRecord{
		canon(t, SourceCashbook, "4471", "-200.00", 0),
		canon(t, SourceCashbook, "5000", "75.00", 1),
	}
	bank := []CanonicalRecord{
		canon(t, SourceBank, "9999", "-10.00", 0),
		canon(t, SourceBank, "4471", "-200.00", 1),
	}

	result := Reconcile(cashbook, bank)

	if len(result.Matched) != 1 {
		t.Fatalf("matched = %d pairs, want 1", len(result.Matched))
	}
	pair := result.Matched[0]
	if pair.Cashbook.ReferenceKey != "4471" || pair.Bank.RawIndex != 1 {
		t.Errorf("matched pair = (%s, bank idx %d), want (4471, 1)", pair.Cashbook.ReferenceKey, pair.Bank.RawIndex)
	}
	if len(result.CashbookRemaining) != 1 || result.CashbookRemaining[0].ReferenceKey != "5000" {
		t.Errorf("cashbook remaining = %v, want the 5000 record", result.CashbookRemaining)
	}
	if len(result.BankRemaining) != 1 || result.BankRemaining[0].ReferenceKey != "9999" {
		t.Errorf("bank remaining = %v, want the 9999 record", result.BankRemaining)
	}
}

// Same reference but different signed amount is not a match.
func TestReconcileAmountMustAgree(t *testing.T) {
	cashbook := []CanonicalRecord{canon(t, SourceCashbook, "4471", "-200.00", 0)}
	bank := []CanonicalRecord{canon(t, SourceBank, "4471", "200.00", 0)}

	result := Reconcile(cashbook, bank)
	if len(result.Matched) != 0 {
		t.Errorf("matched = %d pairs, want 0 (sign differs)", len(result.Matched))
	}
}

// Duplicate keys match greedily one-to-one in input order: first seen wins.
func TestReconcileDuplicateKeyGreedyOrder(t *testing.T) {
	a := canon(t, SourceCashbook, "123", "50.00", 0)
	b := canon(t, SourceCashbook, "123", "50.00", 1)
	x := canon(t, SourceBank, "123", "50.00", 0)

	result := Reconcile([]CanonicalRecord{a, b}, []CanonicalRecord{x})

	if len(result.Matched) != 1 {
		t.Fatalf("matched = %d pairs, want 1", len(result.Matched))
	}
	if result.Matched[0].Cashbook.RawIndex != 0 {
		t.Errorf("matched cashbook RawIndex = %d, want 0 (first seen)", result.Matched[0].Cashbook.RawIndex)
	}
	if len(result.CashbookRemaining) != 1 || result.CashbookRemaining[0].RawIndex != 1 {
		t.Errorf("cashbook remaining = %v, want record B", result.CashbookRemaining)
	}
}

// Two bank duplicates are consumed earliest-first.
func TestReconcileDuplicateBankConsumptionOrder(t *testing.T) {
	cashbook := []CanonicalRecord{
		canon(t, SourceCashbook, "77", "10.00", 0),
		canon(t, SourceCashbook, "77", "10.00", 1),
	}
	bank := []CanonicalRecord{
		canon(t, SourceBank, "77", "10.00", 0),
		canon(t, SourceBank, "77", "10.00", 1),
		canon(t, SourceBank, "77", "10.00", 2),
	}

	result := Reconcile(cashbook, bank)

	if len(result.Matched) != 2 {
		t.Fatalf("matched = %d pairs, want 2", len(result.Matched))
	}
	if result.Matched[0].Bank.RawIndex != 0 || result.Matched[1].Bank.RawIndex != 1 {
		t.Errorf("bank consumption order = [%d %d], want [0 1]",
			result.Matched[0].Bank.RawIndex, result.Matched[1].Bank.RawIndex)
	}
	if len(result.BankRemaining) != 1 || result.BankRemaining[0].RawIndex != 2 {
		t.Errorf("bank remaining = %v, want the third duplicate", result.BankRemaining)
	}
}

// Records with empty reference keys never match, even with equal amounts.
func TestReconcileEmptyKeyNeverMatches(t *testing.T) {
	cb := canon(t, SourceCashbook, "", "100.00", 0)
	bk := canon(t, SourceBank, "", "100.00", 0)

	result := Reconcile([]CanonicalRecord{cb}, []CanonicalRecord{bk})

	if len(result.Matched) != 0 {
		t.Fatalf("matched = %d pairs, want 0", len(result.Matched))
	}
	if len(result.CashbookRemaining) != 1 || len(result.BankRemaining) != 1 {
		t.Errorf("remaining = (%d, %d), want (1, 1)",
			len(result.CashbookRemaining), len(result.BankRemaining))
	}
}

// Records with undefined amounts are ineligible and land in remaining.
func TestReconcileInvalidAmountIneligible(t *testing.T) {
	cb := CanonicalRecord{
		Source:       SourceCashbook,
		ReferenceKey: "4471",
		Issues:       []Issue{IssueNotANumber},
	}
	bank := []CanonicalRecord{canon(t, SourceBank, "4471", "0.00", 0)}

	result := Reconcile([]CanonicalRecord{cb}, bank)

	if len(result.Matched) != 0 {
		t.Errorf("matched = %d pairs, want 0", len(result.Matched))
	}
	if len(result.CashbookRemaining) != 1 {
		t.Errorf("cashbook remaining = %d, want 1", len(result.CashbookRemaining))
	}
}

// Partition invariant: every input record appears in exactly one bucket.
func TestReconcilePartitionInvariant(t *testing.T) {
	cashbook := []CanonicalRecord{
		canon(t, SourceCashbook, "1", "10.00", 0),
		canon(t, SourceCashbook, "2", "-20.00", 1),
		canon(t, SourceCashbook, "", "30.00", 2),
		canon(t, SourceCashbook, "2", "-20.00", 3),
		{Source: SourceCashbook, RawIndex: 4, Issues: []Issue{IssueMissingAmount}},
	}
	bank := []CanonicalRecord{
		canon(t, SourceBank, "2", "-20.00", 0),
		canon(t, SourceBank, "8", "80.00", 1),
		canon(t, SourceBank, "1", "10.00", 2),
	}

	result := Reconcile(cashbook, bank)

	total := 2*len(result.Matched) + len(result.CashbookRemaining) + len(result.BankRemaining)
	if total != len(cashbook)+len(bank) {
		t.Fatalf("partition count = %d, want %d", total, len(cashbook)+len(bank))
	}

	seenCB := make(map[int]int)
	for _, p := range result.Matched {
		seenCB[p.Cashbook.RawIndex]++
	}
	for _, r := range result.CashbookRemaining {
		seenCB[r.RawIndex]++
	}
	for i := range cashbook {
		if seenCB[i] != 1 {
			t.Errorf("cashbook record %d appears %d times, want exactly once", i, seenCB[i])
		}
	}

	seenBank := make(map[int]int)
	for _, p := range result.Matched {
		seenBank[p.Bank.RawIndex]++
	}
	for _, r := range result.BankRemaining {
		seenBank[r.RawIndex]++
	}
	for i := range bank {
		if seenBank[i] != 1 {
			t.Errorf("bank record %d appears %d times, want exactly once", i, seenBank[i])
		}
	}
}

// Output ordering: matched follows cashbook input order, each remaining set
// follows its ledger's input order.
func TestReconcileOutputOrdering(t *testing.T) {
	cashbook := []CanonicalRecord{
		canon(t, SourceCashbook, "900", "9.00", 0),
		canon(t, SourceCashbook, "100", "1.00", 1),
		canon(t, SourceCashbook, "200", "2.00", 2),
		canon(t, SourceCashbook, "901", "9.00", 3),
	}
	bank := []CanonicalRecord{
		canon(t, SourceBank, "200", "2.00", 0),
		canon(t, SourceBank, "300", "3.00", 1),
		canon(t, SourceBank, "100", "1.00", 2),
		canon(t, SourceBank, "400", "4.00", 3),
	}

	result := Reconcile(cashbook, bank)

	if len(result.Matched) != 2 {
		t.Fatalf("matched = %d pairs, want 2", len(result.Matched))
	}
	if result.Matched[0].Cashbook.ReferenceKey != "100" || result.Matched[1].Cashbook.ReferenceKey != "200" {
		t.Errorf("matched order = [%s %s], want cashbook input order [100 200]",
			result.Matched[0].Cashbook.ReferenceKey, result.Matched[1].Cashbook.ReferenceKey)
	}
	if result.CashbookRemaining[0].RawIndex != 0 || result.CashbookRemaining[1].RawIndex != 3 {
		t.Errorf("cashbook remaining order = [%d %d], want [0 3]",
			result.CashbookRemaining[0].RawIndex, result.CashbookRemaining[1].RawIndex)
	}
	if result.BankRemaining[0].RawIndex != 1 || result.BankRemaining[1].RawIndex != 3 {
		t.Errorf("bank remaining order = [%d %d], want [1 3]",
			result.BankRemaining[0].RawIndex, result.BankRemaining[1].RawIndex)
	}
}

// End to end: raw cashbook and bank rows with different date formats and a
// reference buried in free text reconcile into one matched pair.
func TestNormalizeAndReconcileEndToEnd(t *testing.T) {
	n := NewNormalizer(DefaultConfig())

	cashbook := n.Normalize([]RawRecord{
		{Description: "Chq 4471 payment to Acme", Date: "01/03/2024", Amount: strPtr("-200.00")},
	}, SourceCashbook)

	bank := n.Normalize([]RawRecord{
		{Description: "CHEQUE 4471", Date: "03/03/2024", Debit: strPtr("200.00"), Credit: strPtr("0")},
	}, SourceBank)

	if cashbook[0].ReferenceKey != "4471" || bank[0].ReferenceKey != "4471" {
		t.Fatalf("reference keys = (%q, %q), want both 4471",
			cashbook[0].ReferenceKey, bank[0].ReferenceKey)
	}
	if cashbook[0].Amount.StringFixed(2) != "-200.00" || bank[0].Amount.StringFixed(2) != "-200.00" {
		t.Fatalf("amounts = (%s, %s), want both -200.00",
			cashbook[0].Amount.StringFixed(2), bank[0].Amount.StringFixed(2))
	}

	result := Reconcile(cashbook, bank)
	if len(result.Matched) != 1 {
		t.Fatalf("matched = %d pairs, want 1", len(result.Matched))
	}
	if len(result.CashbookRemaining) != 0 || len(result.BankRemaining) != 0 {
		t.Errorf("remaining = (%d, %d), want (0, 0)",
			len(result.CashbookRemaining), len(result.BankRemaining))
	}
}
