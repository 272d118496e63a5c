package recon

// matchKey is the exact-match join key: normalized reference plus the signed
// amount at fixed two-decimal precision. Records without both parts never
// get a key.
type matchKey struct {
	reference string
	amount    string
}

func keyFor(rec CanonicalRecord) matchKey {
	return matchKey{
		reference: rec.ReferenceKey,
		amount:    rec.Amount.StringFixed(2),
	}
}

// Reconcile partitions the two canonical record sets into matched pairs and
// two remainders under the exact-key rule.
//
// Bank records are grouped by key in input order; each eligible cashbook
// record, in input order, consumes the earliest not-yet-consumed bank record
// sharing its key. Duplicate keys therefore match greedily one-to-one,
// first seen wins, which keeps the output reproducible. Records with an
// empty reference key or an undefined amount are ineligible and go straight
// to their ledger's remaining set.
//
// Consumption of bank records is the only shared state here, so the whole
// pass runs sequentially.
func Reconcile(cashbook, bank []CanonicalRecord) MatchResult {
	// Group eligible bank records by key, preserving input order within
	// each group.
	groups := make(map[matchKey][]int)
	for i, rec := range bank {
		if !rec.Matchable() {
			continue
		}
		k := keyFor(rec)
		groups[k] = append(groups[k], i)
	}

	result := MatchResult{}
	consumed := make([]bool, len(bank))

	for _, cb := range cashbook {
		if !cb.Matchable() {
			result.CashbookRemaining = append(result.CashbookRemaining, cb)
			continue
		}

		k := keyFor(cb)
		candidates := groups[k]
		if len(candidates) == 0 {
			result.CashbookRemaining = append(result.CashbookRemaining, cb)
			continue
		}

		// Pop the earliest-appearing unconsumed bank record for this key.
		bankIdx := candidates[0]
		groups[k] = candidates[1:]
		consumed[bankIdx] = true

		result.Matched = append(result.Matched, MatchedPair{
			Cashbook: cb,
			Bank:     bank[bankIdx],
		})
	}

	for i, rec := range bank {
		if !consumed[i] {
			result.BankRemaining = append(result.BankRemaining, rec)
		}
	}

	return result
}
