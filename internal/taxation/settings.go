package taxation

// Settings is the immutable configuration snapshot consulted during a
// computation pass. It is resolved once per recompute by the caller
// (see internal/refdata) and never mutated by the engine.
type Settings struct {
	// CompanyCurrency is the ledger currency all base_* fields are stated in.
	CompanyCurrency string
	// RoundOffApplicableAccounts lists ledger accounts whose tax amounts are
	// rounded to whole units.
	RoundOffApplicableAccounts []string
	// RoundRowWiseTax rounds each item's tax contribution before
	// accumulating instead of rounding the accumulated row amount only.
	RoundRowWiseTax bool
	// DisableRoundedTotal suppresses the rounded-total computation globally;
	// a document-level flag has the same effect.
	DisableRoundedTotal bool
	// AddTaxesFromItemTaxTemplate auto-adds tax rows for item tax template
	// accounts that have no row yet.
	AddTaxesFromItemTaxTemplate bool
	// DisableDefaultMOP suppresses defaulting the outstanding total onto the
	// default mode of payment for POS documents.
	DisableDefaultMOP bool
	// SmallestCurrencyFraction maps a currency code to its smallest cash
	// denomination (0.05 for CHF). Currencies without an entry round to the
	// nearest whole unit.
	SmallestCurrencyFraction map[string]float64
}

func (s Settings) roundOffApplicable(accountHead string) bool {
	for _, account := range s.RoundOffApplicableAccounts {
		if account == accountHead {
			return true
		}
	}
	return false
}

// PaymentContext carries per-document payment lookups that the engine cannot
// resolve itself: whether a recompute should overwrite the paid amount, and
// the modes of payment used on the invoice a return was created against.
type PaymentContext struct {
	UpdatePaidAmount bool
	ReturnModes      []string
}
