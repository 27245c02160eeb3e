// Package taxation implements the tax-and-totals computation for
// transactional documents: item valuation, cascading inclusive/exclusive
// taxes, discount distribution, currency conversion, rounding and payment
// reconciliation. The engine is deterministic and side-effect free apart
// from mutating the document it is given.
package taxation

// ============================================================================
// ENUMS
// ============================================================================

// Doctype identifies the transactional document variant.
type Doctype string

const (
	DoctypeQuotation       Doctype = "Quotation"
	DoctypeSalesOrder      Doctype = "Sales Order"
	DoctypeDeliveryNote    Doctype = "Delivery Note"
	DoctypeSalesInvoice    Doctype = "Sales Invoice"
	DoctypePOSInvoice      Doctype = "POS Invoice"
	DoctypePurchaseOrder   Doctype = "Purchase Order"
	DoctypePurchaseReceipt Doctype = "Purchase Receipt"
	DoctypePurchaseInvoice Doctype = "Purchase Invoice"
)

// IsSales reports whether the doctype belongs to the selling cycle.
func (d Doctype) IsSales() bool {
	switch d {
	case DoctypeQuotation, DoctypeSalesOrder, DoctypeDeliveryNote, DoctypeSalesInvoice, DoctypePOSInvoice:
		return true
	}
	return false
}

// IsInvoice reports whether the doctype carries payment fields.
func (d Doctype) IsInvoice() bool {
	switch d {
	case DoctypeSalesInvoice, DoctypePOSInvoice, DoctypePurchaseInvoice:
		return true
	}
	return false
}

// ChargeType determines how a tax row's amount is derived.
type ChargeType string

const (
	ChargeActual             ChargeType = "Actual"
	ChargeOnNetTotal         ChargeType = "On Net Total"
	ChargeOnPreviousRowAmount ChargeType = "On Previous Row Amount"
	ChargeOnPreviousRowTotal  ChargeType = "On Previous Row Total"
	ChargeOnItemQuantity      ChargeType = "On Item Quantity"
)

// OnPreviousRow reports whether the charge type references an earlier row.
func (c ChargeType) OnPreviousRow() bool {
	return c == ChargeOnPreviousRowAmount || c == ChargeOnPreviousRowTotal
}

// AddDeduct controls the sign with which a tax row enters the running total.
type AddDeduct string

const (
	AddTax    AddDeduct = "Add"
	DeductTax AddDeduct = "Deduct"
)

// TaxCategory determines whether a purchase-side tax contributes to item
// valuation, to the document total, or to both.
type TaxCategory string

const (
	CategoryValuation         TaxCategory = "Valuation"
	CategoryTotal             TaxCategory = "Total"
	CategoryValuationAndTotal TaxCategory = "Valuation and Total"
)

// ApplyDiscountOn selects the base for the document-level discount.
type ApplyDiscountOn string

const (
	DiscountOnNetTotal   ApplyDiscountOn = "Net Total"
	DiscountOnGrandTotal ApplyDiscountOn = "Grand Total"
)

// MarginType selects how a pricing-rule margin is applied.
type MarginType string

const (
	MarginPercentage MarginType = "Percentage"
	MarginAmount     MarginType = "Amount"
)

// PaymentTypeCash marks a mode of payment eligible for change calculation.
const PaymentTypeCash = "Cash"

// ============================================================================
// DOCUMENT
// ============================================================================

// Document is the in-memory transactional record the engine computes over.
// Recompute overwrites every derived field in place; input fields are left
// untouched except where the reference behavior normalizes them (quantity
// defaults, derived item discount percentage).
type Document struct {
	Doctype           Doctype `json:"doctype"`
	Company           string  `json:"company,omitempty"`
	RepresentsCompany string  `json:"represents_company,omitempty"`

	Currency             string  `json:"currency"`
	ConversionRate       float64 `json:"conversion_rate"`
	PartyAccountCurrency string  `json:"party_account_currency,omitempty"`

	IsReturn    bool   `json:"is_return,omitempty"`
	IsDebitNote bool   `json:"is_debit_note,omitempty"`
	IsPOS       bool   `json:"is_pos,omitempty"`
	Docstatus   int    `json:"docstatus,omitempty"`
	ReturnAgainst string `json:"return_against,omitempty"`

	Items []*Item   `json:"items"`
	Taxes []*TaxRow `json:"taxes,omitempty"`

	ApplyDiscountOn              ApplyDiscountOn `json:"apply_discount_on,omitempty"`
	DiscountAmount               float64         `json:"discount_amount,omitempty"`
	BaseDiscountAmount           float64         `json:"base_discount_amount,omitempty"`
	AdditionalDiscountPercentage float64         `json:"additional_discount_percentage,omitempty"`
	IsCashOrNonTradeDiscount     bool            `json:"is_cash_or_non_trade_discount,omitempty"`

	DisableRoundedTotal                    bool `json:"disable_rounded_total,omitempty"`
	WriteOffOutstandingAmountAutomatically bool `json:"write_off_outstanding_amount_automatically,omitempty"`

	Payments []*Payment `json:"payments,omitempty"`
	Advances []*Advance `json:"advances,omitempty"`

	// Derived totals.
	TotalQty                 float64 `json:"total_qty"`
	Total                    float64 `json:"total"`
	BaseTotal                float64 `json:"base_total"`
	NetTotal                 float64 `json:"net_total"`
	BaseNetTotal             float64 `json:"base_net_total"`
	TotalTaxesAndCharges     float64 `json:"total_taxes_and_charges"`
	BaseTotalTaxesAndCharges float64 `json:"base_total_taxes_and_charges"`
	TaxesAndChargesAdded     float64 `json:"taxes_and_charges_added,omitempty"`
	BaseTaxesAndChargesAdded float64 `json:"base_taxes_and_charges_added,omitempty"`
	TaxesAndChargesDeducted  float64 `json:"taxes_and_charges_deducted,omitempty"`
	BaseTaxesAndChargesDeducted float64 `json:"base_taxes_and_charges_deducted,omitempty"`
	GrandTotal               float64 `json:"grand_total"`
	BaseGrandTotal           float64 `json:"base_grand_total"`
	RoundingAdjustment       float64 `json:"rounding_adjustment"`
	BaseRoundingAdjustment   float64 `json:"base_rounding_adjustment"`
	RoundedTotal             float64 `json:"rounded_total"`
	BaseRoundedTotal         float64 `json:"base_rounded_total"`

	// Derived payment figures.
	TotalAdvance       float64 `json:"total_advance,omitempty"`
	OutstandingAmount  float64 `json:"outstanding_amount,omitempty"`
	PaidAmount         float64 `json:"paid_amount,omitempty"`
	BasePaidAmount     float64 `json:"base_paid_amount,omitempty"`
	ChangeAmount       float64 `json:"change_amount,omitempty"`
	BaseChangeAmount   float64 `json:"base_change_amount,omitempty"`
	WriteOffAmount     float64 `json:"write_off_amount,omitempty"`
	BaseWriteOffAmount float64 `json:"base_write_off_amount,omitempty"`
}

// isInternal reports whether the invoice is between two ledgers of the same
// company, in which case outstanding amounts are not maintained.
func (d *Document) isInternal() bool {
	if d.Doctype != DoctypeSalesInvoice && d.Doctype != DoctypePurchaseInvoice {
		return false
	}
	return d.Company != "" && d.Company == d.RepresentsCompany
}

// ============================================================================
// ITEM
// ============================================================================

// Item is a document line. Qty is a pointer so that an omitted quantity can
// be distinguished from an explicit zero; returns and debit notes default an
// omitted quantity to -1 / +1 respectively.
type Item struct {
	ItemCode string   `json:"item_code,omitempty"`
	ItemName string   `json:"item_name,omitempty"`
	Qty      *float64 `json:"qty,omitempty"`

	Rate             float64 `json:"rate"`
	PriceListRate    float64 `json:"price_list_rate,omitempty"`
	BlanketOrderRate float64 `json:"blanket_order_rate,omitempty"`

	MarginType         MarginType `json:"margin_type,omitempty"`
	MarginRateOrAmount float64    `json:"margin_rate_or_amount,omitempty"`
	RateWithMargin     float64    `json:"rate_with_margin,omitempty"`
	BaseRateWithMargin float64    `json:"base_rate_with_margin,omitempty"`

	DiscountPercentage float64 `json:"discount_percentage,omitempty"`
	DiscountAmount     float64 `json:"discount_amount,omitempty"`

	// Per-account tax rate overrides from the item's tax template.
	ItemTaxRate map[string]float64 `json:"item_tax_rate,omitempty"`

	IsAlternative bool `json:"is_alternative,omitempty"`

	// Derived values.
	Amount        float64 `json:"amount"`
	NetRate       float64 `json:"net_rate"`
	NetAmount     float64 `json:"net_amount"`
	BaseRate      float64 `json:"base_rate"`
	BasePriceListRate float64 `json:"base_price_list_rate,omitempty"`
	BaseAmount    float64 `json:"base_amount"`
	BaseNetRate   float64 `json:"base_net_rate"`
	BaseNetAmount float64 `json:"base_net_amount"`
}

// key identifies the item inside a tax row's item-wise breakdown.
func (i *Item) key() string {
	if i.ItemCode != "" {
		return i.ItemCode
	}
	return i.ItemName
}

func (i *Item) qty() float64 {
	if i.Qty == nil {
		return 0
	}
	return *i.Qty
}

// ============================================================================
// TAX ROW
// ============================================================================

// TaxRow is one row of the taxes-and-charges table. Rows are processed in
// ascending Idx order; RowID references the Idx of an earlier row when the
// charge type depends on it.
type TaxRow struct {
	Idx         int        `json:"idx"`
	ChargeType  ChargeType `json:"charge_type"`
	AccountHead string     `json:"account_head"`
	Description string     `json:"description,omitempty"`
	Rate        float64    `json:"rate"`
	RowID       int        `json:"row_id,omitempty"`

	IncludedInPrintRate  bool        `json:"included_in_print_rate,omitempty"`
	AddDeductTax         AddDeduct   `json:"add_deduct_tax,omitempty"`
	Category             TaxCategory `json:"category,omitempty"`
	DontRecomputeTax     bool        `json:"dont_recompute_tax,omitempty"`
	SetByItemTaxTemplate bool        `json:"set_by_item_tax_template,omitempty"`

	// Accumulators, rebuilt on every pass.
	TaxAmount                        float64 `json:"tax_amount"`
	TaxAmountAfterDiscountAmount     float64 `json:"tax_amount_after_discount_amount"`
	Total                            float64 `json:"total"`
	BaseTaxAmount                    float64 `json:"base_tax_amount"`
	BaseTaxAmountAfterDiscountAmount float64 `json:"base_tax_amount_after_discount_amount"`
	BaseTotal                        float64 `json:"base_total"`

	// Per-item breakdown, keyed by item code. Kept structured for the whole
	// computation; serialized only at the system boundary.
	ItemWiseTaxDetail map[string]ItemTaxDetail `json:"item_wise_tax_detail,omitempty"`
}

// ItemTaxDetail is the per-item contribution recorded on a tax row, stated in
// company currency.
type ItemTaxDetail struct {
	TaxRate   float64 `json:"tax_rate"`
	TaxAmount float64 `json:"tax_amount"`
	NetAmount float64 `json:"net_amount"`
}

// ============================================================================
// PAYMENTS / ADVANCES
// ============================================================================

// Payment is a POS mode-of-payment row.
type Payment struct {
	ModeOfPayment string  `json:"mode_of_payment"`
	Type          string  `json:"type,omitempty"`
	Amount        float64 `json:"amount"`
	BaseAmount    float64 `json:"base_amount"`
	Default       bool    `json:"default,omitempty"`
}

// Advance is a previously allocated advance payment.
type Advance struct {
	ReferenceName   string  `json:"reference_name,omitempty"`
	AllocatedAmount float64 `json:"allocated_amount"`
}
