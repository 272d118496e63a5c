package recon

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Sentinel errors for the row-local issue taxonomy. Callers translate these
// into Issues on the canonical record; they never abort a batch.
var (
	ErrNotANumber        = errors.New("recon: value is not a number")
	ErrInvalidDate       = errors.New("recon: value is not a recognized date")
	ErrConflictingAmount = errors.New("recon: both receipt and payment are populated")
	ErrMissingAmount     = errors.New("recon: row has no amount field")
)

// Config controls normalization behavior. The zero value is not useful;
// start from DefaultConfig.
type Config struct {
	// Uppercase folds cleaned text to upper case.
	Uppercase bool
	// CollapseWhitespace reduces internal whitespace runs to one space.
	CollapseWhitespace bool
	// DropPunctuation strips characters that are not letters, digits or spaces.
	DropPunctuation bool
	// DayFirst resolves ambiguous numeric dates as day/month/year. Applied
	// uniformly to every row; this is policy, not per-row guessing.
	DayFirst bool
	// MinReferenceDigits is the shortest digit run accepted as a reference.
	MinReferenceDigits int
}

// DefaultConfig returns the standard cleaning configuration.
func DefaultConfig() Config {
	return Config{
		Uppercase:          true,
		CollapseWhitespace: true,
		DropPunctuation:    true,
		DayFirst:           true,
		MinReferenceDigits: 3,
	}
}

// CanonicalDateLayout is the single output format for normalized dates.
// It is also the first accepted input layout, which makes date
// normalization idempotent.
const CanonicalDateLayout = "2006-01-02"

// dayFirstLayouts are tried in order; first match wins.
var dayFirstLayouts = []string{
	CanonicalDateLayout,
	"2/1/2006",
	"2-1-2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"2 January 2006",
	"Jan 2 2006",
	"January 2 2006",
}

// monthFirstLayouts replace the ambiguous numeric forms only.
var monthFirstLayouts = []string{
	CanonicalDateLayout,
	"1/2/2006",
	"1-2-2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"2 January 2006",
	"Jan 2 2006",
	"January 2 2006",
}

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	punctRe    = regexp.MustCompile(`[^0-9A-Za-z ]+`)
	currencyRe = regexp.MustCompile("[$£€,_ ]")
)

// Normalizer converts raw ledger field values into canonical typed values.
// Every operation is pure and total: malformed input degrades to a typed
// error, never a panic, and never drops the row.
type Normalizer struct {
	cfg         Config
	layouts     []string
	labeledRef  *regexp.Regexp
	bareRef     *regexp.Regexp
}

// NewNormalizer creates a normalizer with the given configuration.
func NewNormalizer(cfg Config) *Normalizer {
	if cfg.MinReferenceDigits < 1 {
		cfg.MinReferenceDigits = 1
	}

	layouts := dayFirstLayouts
	if !cfg.DayFirst {
		layouts = monthFirstLayouts
	}

	// A reference is a digit run of minimum length, preferably introduced by
	// a known label (cheque/transaction/reference markers).
	labeled := fmt.Sprintf(
		`(?i)\b(?:CHQ|CHEQUE|CHECK|TXN|TRN|TRANSACTION|REF|REFERENCE)\b[ ]*(?:NO|NUM|NUMBER)?[ #]*([0-9]{%d,})`,
		cfg.MinReferenceDigits,
	)
	bare := fmt.Sprintf(`[0-9]{%d,}`, cfg.MinReferenceDigits)

	return &Normalizer{
		cfg:        cfg,
		layouts:    layouts,
		labeledRef: regexp.MustCompile(labeled),
		bareRef:    regexp.MustCompile(bare),
	}
}

// NormalizeText cleans free-form text: trim, case-fold, collapse whitespace,
// strip punctuation. Empty or missing input yields the empty string so
// downstream joins never see a null.
func (n *Normalizer) NormalizeText(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}

	if n.cfg.Uppercase {
		s = strings.ToUpper(s)
	}
	if n.cfg.CollapseWhitespace {
		s = spaceRe.ReplaceAllString(s, " ")
	}
	if n.cfg.DropPunctuation {
		s = punctRe.ReplaceAllString(s, " ")
		s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	}

	return s
}

// NormalizeAmount parses a raw amount cell into a decimal rounded
// half-to-even to two places. Currency symbols, thousands separators and
// underscores are stripped; "(123.45)" reads as -123.45. Non-numeric input
// returns ErrNotANumber.
func (n *Normalizer) NormalizeAmount(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.Decimal{}, ErrNotANumber
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	s = currencyRe.ReplaceAllString(s, "")
	if s == "" {
		return decimal.Decimal{}, ErrNotANumber
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrNotANumber
	}
	if neg {
		d = d.Neg()
	}

	return d.RoundBank(2), nil
}

// NormalizeDate parses a raw date cell against the accepted layouts; the
// first matching layout wins. Ambiguous numeric forms follow the configured
// day-first policy. Unrecognized input returns ErrInvalidDate; the caller
// keeps the row with a null date.
func (n *Normalizer) NormalizeDate(value string) (civil.Date, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return civil.Date{}, ErrInvalidDate
	}

	for _, layout := range n.layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return civil.DateOf(t), nil
	}

	return civil.Date{}, ErrInvalidDate
}

// ExtractReference scans cleaned text for a reference number. A digit run
// introduced by a known label (CHQ, TXN, REF, ...) is preferred; otherwise
// the first bare digit run of minimum length is taken. Leading zeros are
// trimmed so "0123" and "123" produce the same key. Returns "" when no
// reference is found.
func (n *Normalizer) ExtractReference(description string) string {
	s := n.NormalizeText(description)
	if s == "" {
		return ""
	}

	if m := n.labeledRef.FindStringSubmatch(s); m != nil {
		return trimLeadingZeros(m[1])
	}
	if m := n.bareRef.FindString(s); m != "" {
		return trimLeadingZeros(m)
	}

	return ""
}

func trimLeadingZeros(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// Normalize converts a full raw record slice into canonical records.
// Total and order-preserving: exactly one output per input, malformed rows
// included, with their problems recorded as Issues.
func (n *Normalizer) Normalize(raws []RawRecord, source Source) []CanonicalRecord {
	out := make([]CanonicalRecord, 0, len(raws))
	for i, raw := range raws {
		out = append(out, n.normalizeOne(raw, source, i))
	}
	return out
}

func (n *Normalizer) normalizeOne(raw RawRecord, source Source, index int) CanonicalRecord {
	rec := CanonicalRecord{
		Source:      source,
		Description: n.NormalizeText(raw.Description),
		RawIndex:    index,
	}

	if date, err := n.NormalizeDate(raw.Date); err == nil {
		rec.Date = date
		rec.DateValid = true
	} else {
		rec.Issues = append(rec.Issues, IssueInvalidDate)
	}

	amount, err := n.deriveSignedAmount(raw, source)
	switch {
	case err == nil:
		rec.Amount = amount
		rec.AmountValid = true
	case errors.Is(err, ErrNotANumber):
		rec.Issues = append(rec.Issues, IssueNotANumber)
	case errors.Is(err, ErrConflictingAmount):
		rec.Issues = append(rec.Issues, IssueConflictingAmount)
	case errors.Is(err, ErrMissingAmount):
		rec.Issues = append(rec.Issues, IssueMissingAmount)
	}

	// A dedicated reference column wins over whatever is buried in the
	// description, but both go through the same extraction rule.
	if ref := n.ExtractReference(raw.Reference); ref != "" {
		rec.ReferenceKey = ref
	} else {
		rec.ReferenceKey = n.ExtractReference(raw.Description)
	}

	return rec
}

// deriveSignedAmount unifies the ledgers' column layouts onto one sign
// convention: money in positive, money out negative. A single signed Amount
// column passes through as-is; receipt/payment (cashbook) and credit/debit
// (bank) pairs subtract the outgoing column from the incoming one.
func (n *Normalizer) deriveSignedAmount(raw RawRecord, source Source) (decimal.Decimal, error) {
	if raw.Amount != nil {
		return n.NormalizeAmount(*raw.Amount)
	}

	in, outCol := raw.Receipt, raw.Payment
	if source == SourceBank {
		in, outCol = raw.Credit, raw.Debit
	}
	if in == nil && outCol == nil {
		// Fall back to the other layout's pair. PDF transcripts always
		// carry debit/credit columns, whichever ledger they came from.
		in, outCol = raw.Credit, raw.Debit
		if source == SourceBank {
			in, outCol = raw.Receipt, raw.Payment
		}
	}
	if in == nil && outCol == nil {
		return decimal.Decimal{}, ErrMissingAmount
	}

	inAmt, err := n.normalizeColumn(in)
	if err != nil {
		return decimal.Decimal{}, err
	}
	outAmt, err := n.normalizeColumn(outCol)
	if err != nil {
		return decimal.Decimal{}, err
	}

	// Exactly one side of the pair should carry the value. When both do,
	// the sign cannot be derived safely, so the row is surfaced instead of
	// guessed at.
	if !inAmt.IsZero() && !outAmt.IsZero() {
		return decimal.Decimal{}, ErrConflictingAmount
	}

	return inAmt.Sub(outAmt), nil
}

// normalizeColumn treats an absent or blank dual-layout cell as zero;
// present garbage is still NotANumber.
func (n *Normalizer) normalizeColumn(cell *string) (decimal.Decimal, error) {
	if cell == nil || strings.TrimSpace(*cell) == "" {
		return decimal.Zero, nil
	}
	return n.NormalizeAmount(*cell)
}
