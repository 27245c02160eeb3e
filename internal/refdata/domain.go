// Package refdata serves the slow-moving reference data the computation
// engine depends on: company profiles, currency metadata, exchange rates,
// tax charge templates and payment modes. Reads go through Redis with
// PostgreSQL as the source of truth.
package refdata

import "time"

// CompanyProfile carries the per-company accounting settings that shape a
// computation.
type CompanyProfile struct {
	Name                        string   `json:"name"`
	DefaultCurrency             string   `json:"default_currency"`
	RoundOffApplicableAccounts  []string `json:"round_off_applicable_accounts"`
	RoundRowWiseTax             bool     `json:"round_row_wise_tax"`
	DisableRoundedTotal         bool     `json:"disable_rounded_total"`
	AddTaxesFromItemTaxTemplate bool     `json:"add_taxes_from_item_tax_template"`
	DisableDefaultMOP           bool     `json:"disable_default_mop"`
}

// Currency is the formatting metadata for one ISO 4217 code. A zero
// SmallestFraction means the currency rounds to whole units.
type Currency struct {
	Code             string  `json:"code"`
	Precision        int     `json:"precision"`
	SmallestFraction float64 `json:"smallest_fraction"`
}

// ExchangeRate is a dated conversion quote between two currencies.
type ExchangeRate struct {
	FromCurrency string    `json:"from_currency"`
	ToCurrency   string    `json:"to_currency"`
	Rate         float64   `json:"rate"`
	ValidFrom    time.Time `json:"valid_from"`
}

// TaxTemplateRow is one charge row of a sales or purchase tax template.
type TaxTemplateRow struct {
	Idx                 int     `json:"idx"`
	ChargeType          string  `json:"charge_type"`
	AccountHead         string  `json:"account_head"`
	Rate                float64 `json:"rate"`
	RowID               int     `json:"row_id"`
	IncludedInPrintRate bool    `json:"included_in_print_rate"`
	AddDeductTax        string  `json:"add_deduct_tax"`
	Category            string  `json:"category"`
}

// TaxTemplate is a named set of default charge rows for a company.
type TaxTemplate struct {
	Name    string           `json:"name"`
	Company string           `json:"company"`
	Rows    []TaxTemplateRow `json:"rows"`
}

// PaymentMode is one configured mode of payment for a company.
type PaymentMode struct {
	Mode      string `json:"mode"`
	Type      string `json:"type"`
	IsDefault bool   `json:"is_default"`
	InReturn  bool   `json:"in_return"`
}
