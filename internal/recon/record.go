package recon

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Source identifies which ledger a record came from.
type Source string

const (
	// SourceCashbook marks records from the internal cashbook ledger.
	SourceCashbook Source = "CASHBOOK"
	// SourceBank marks records from the external bank statement.
	SourceBank Source = "BANK"
)

// Issue is a row-local normalization problem. Issues never abort a run;
// they are carried on the canonical record so the report can explain why
// a row stayed unmatched.
type Issue string

const (
	// IssueNotANumber means an amount field could not be parsed as a number.
	IssueNotANumber Issue = "NOT_A_NUMBER"
	// IssueInvalidDate means the date field matched none of the accepted layouts.
	IssueInvalidDate Issue = "INVALID_DATE"
	// IssueConflictingAmount means both receipt and payment columns were
	// populated on one cashbook row, so the sign cannot be derived safely.
	IssueConflictingAmount Issue = "CONFLICTING_AMOUNT"
	// IssueMissingAmount means the row carried no amount field at all.
	IssueMissingAmount Issue = "MISSING_AMOUNT"
)

// RawRecord is one ledger line exactly as ingested. All values are the
// untouched source cell text; nil pointers mean the column was absent on
// this row (distinct from present-but-empty). No invariants hold yet.
type RawRecord struct {
	Description string
	Date        string

	// Cashbook exports carry either a single signed Amount or separate
	// Receipt/Payment columns. Bank statements carry Debit/Credit columns.
	Amount  *string
	Receipt *string
	Payment *string
	Debit   *string
	Credit  *string

	// Reference is the optional dedicated reference column. Many exports
	// have none and bury the reference inside Description instead.
	Reference string
}

// CanonicalRecord is the comparable form of one RawRecord. It is produced
// exactly once by the Normalizer and never mutated afterwards.
type CanonicalRecord struct {
	Source Source

	// Date is the normalized calendar date. DateValid is false when the raw
	// value was unparseable; the record is kept either way because matching
	// keys on reference and amount, not date.
	Date      civil.Date
	DateValid bool

	// Amount is the unified signed amount: receipts and credits positive,
	// payments and debits negative, rounded half-to-even to 2dp.
	// AmountValid is false when the amount could not be derived, which makes
	// the record ineligible for matching.
	Amount      decimal.Decimal
	AmountValid bool

	// Description is the cleaned free-text description.
	Description string

	// ReferenceKey is the normalized reference extracted from the reference
	// column or the description. Empty means no reference was found; empty
	// keys never match each other.
	ReferenceKey string

	// RawIndex points back at the originating RawRecord in its input slice.
	// Used for audit output only, never for matching.
	RawIndex int

	// Issues lists the row-local problems found while normalizing.
	Issues []Issue
}

// Matchable reports whether the record can take part in key matching:
// it needs a defined amount and a non-empty reference key.
func (r CanonicalRecord) Matchable() bool {
	return r.AmountValid && r.ReferenceKey != ""
}

// HasIssue reports whether the record carries the given issue.
func (r CanonicalRecord) HasIssue(issue Issue) bool {
	for _, i := range r.Issues {
		if i == issue {
			return true
		}
	}
	return false
}

// MatchedPair is one cashbook record paired with its bank counterpart.
type MatchedPair struct {
	Cashbook CanonicalRecord
	Bank     CanonicalRecord
}

// MatchResult partitions the two canonical record sets. Every cashbook
// record appears in exactly one of Matched/CashbookRemaining, every bank
// record in exactly one of Matched/BankRemaining, and no record is consumed
// twice.
type MatchResult struct {
	// Matched preserves cashbook input order.
	Matched []MatchedPair
	// CashbookRemaining preserves cashbook input order.
	CashbookRemaining []CanonicalRecord
	// BankRemaining preserves bank input order.
	BankRemaining []CanonicalRecord
}
