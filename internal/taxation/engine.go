package taxation

import (
	"fmt"
	"math"
	"sort"
)

// Engine recomputes the derived numeric fields of a Document. It is safe for
// concurrent use as long as callers serialize recomputes per document; the
// engine itself holds only immutable configuration.
type Engine struct {
	settings Settings
	prec     Precisions
}

// NewEngine constructs an engine around an immutable settings snapshot.
func NewEngine(settings Settings, prec Precisions) *Engine {
	if prec == (Precisions{}) {
		prec = DefaultPrecisions()
	}
	return &Engine{settings: settings, prec: prec}
}

// Recompute runs the full computation with default payment behavior.
func (e *Engine) Recompute(doc *Document) error {
	return e.RecomputeWithPayments(doc, PaymentContext{UpdatePaidAmount: true})
}

// RecomputeWithPayments runs the full computation. The document is mutated in
// place; on error no further fields are written beyond what earlier stages
// already set, and the error is one of the package sentinel errors.
func (e *Engine) RecomputeWithPayments(doc *Document, pc PaymentContext) error {
	p := &pass{doc: doc, settings: e.settings, prec: e.prec, pc: pc}
	return p.execute()
}

// ============================================================================
// PASS STATE
// ============================================================================

// pass holds the state of a single recompute invocation. The engine runs at
// most two sub-passes: the undiscounted one and, if a discount amount gets
// redistributed onto items, a discount-applied rerun of the same stages.
type pass struct {
	doc      *Document
	settings Settings
	prec     Precisions
	pc       PaymentContext

	items []*Item // alternatives filtered out for quotations

	discountApplied       bool
	grandTotalDiff        float64
	grandTotalForDiscount float64

	// Transient per-item accumulators, parallel to doc.Taxes. They exist only
	// for the duration of a pass and never leak into the document.
	scratch []taxScratch
}

type taxScratch struct {
	taxFractionForCurrentItem        float64
	grandTotalFractionForCurrentItem float64
	taxAmountForCurrentItem          float64
	grandTotalForCurrentItem         float64
}

func (p *pass) execute() error {
	p.addTaxesFromItemTemplates()

	p.discountApplied = false
	if err := p.calculate(); err != nil {
		return err
	}
	if err := p.applyDiscountAmount(); err != nil {
		return err
	}

	// Cash and non-trade discounts come straight off the grand total instead
	// of being redistributed over items.
	if p.doc.ApplyDiscountOn == DiscountOnGrandTotal && p.doc.IsCashOrNonTradeDiscount {
		p.doc.GrandTotal -= p.doc.DiscountAmount
		p.doc.BaseGrandTotal -= p.doc.BaseDiscountAmount
		p.doc.RoundingAdjustment = 0
		p.doc.BaseRoundingAdjustment = 0
		p.setRoundedTotal()
	}

	if p.doc.Doctype.IsInvoice() && p.doc.Docstatus < 2 && !p.doc.IsReturn {
		p.calculateTotalAdvance()
	}

	if (p.doc.Doctype == DoctypeSalesInvoice || p.doc.Doctype == DoctypePOSInvoice) &&
		p.doc.IsPOS && p.doc.IsReturn {
		p.setTotalAmountToDefaultMOP()
		p.calculatePaidAmount()
	}

	if p.doc.Doctype == DoctypePurchaseInvoice && p.doc.IsReturn &&
		p.doc.GrandTotal > p.doc.PaidAmount {
		p.doc.PaidAmount = flt(p.doc.GrandTotal, p.prec.currency())
	}

	return nil
}

// calculate is one sub-pass over stages 1-9. It is re-entered exactly once
// when a discount amount is distributed; applyDiscountAmount is never called
// from here, so a third pass cannot occur.
func (p *pass) calculate() error {
	p.items = p.filteredItems()

	if err := p.validateConversionRate(); err != nil {
		return err
	}
	p.calculateItemValues()
	if err := p.initializeTaxes(); err != nil {
		return err
	}
	p.determineExclusiveRate()
	p.calculateNetTotal()
	p.calculateTaxes()
	p.adjustGrandTotalForInclusiveTax()
	p.calculateTotals()
	return nil
}

func (p *pass) filteredItems() []*Item {
	if p.doc.Doctype != DoctypeQuotation {
		return p.doc.Items
	}
	items := make([]*Item, 0, len(p.doc.Items))
	for _, item := range p.doc.Items {
		if !item.IsAlternative {
			items = append(items, item)
		}
	}
	return items
}

// ============================================================================
// STAGE 1: CONVERSION RATE
// ============================================================================

func (p *pass) validateConversionRate() error {
	doc := p.doc
	doc.ConversionRate = flt(doc.ConversionRate, p.prec.exchange())
	if doc.ConversionRate != 0 {
		return nil
	}
	if doc.Currency == "" || doc.Currency == p.settings.CompanyCurrency {
		doc.ConversionRate = 1
		return nil
	}
	return fmt.Errorf("%w (%s to %s)", ErrMissingConversionRate, doc.Currency, p.settings.CompanyCurrency)
}

// ============================================================================
// STAGE 2: ITEM VALUES
// ============================================================================

// applyPricingRule derives the item rate from the price list rate, pricing
// rule margin and discount. Items priced directly (no price list or blanket
// order rate) are left untouched.
func (p *pass) applyPricingRule(item *Item) {
	if item.PriceListRate == 0 && item.BlanketOrderRate == 0 {
		return
	}

	effectiveRate := item.PriceListRate
	if (p.doc.Doctype == DoctypeSalesOrder || p.doc.Doctype == DoctypeQuotation) && item.BlanketOrderRate != 0 {
		effectiveRate = item.BlanketOrderRate
	}

	if item.MarginType == MarginPercentage {
		item.RateWithMargin = effectiveRate + effectiveRate*item.MarginRateOrAmount/100
	} else {
		item.RateWithMargin = effectiveRate + item.MarginRateOrAmount
	}
	item.BaseRateWithMargin = item.RateWithMargin * p.doc.ConversionRate

	rate := flt(item.RateWithMargin, p.prec.rate())

	if item.DiscountPercentage != 0 && item.DiscountAmount == 0 {
		item.DiscountAmount = item.RateWithMargin * item.DiscountPercentage / 100
	}
	if item.DiscountAmount > 0 {
		rate = flt(item.RateWithMargin-item.DiscountAmount, p.prec.rate())
		item.DiscountPercentage = 100 * item.DiscountAmount / item.RateWithMargin
	}

	item.Rate = rate
}

func (p *pass) calculateItemValues() {
	if p.discountApplied {
		return
	}
	for _, item := range p.doc.Items {
		p.applyPricingRule(item)

		item.Rate = flt(item.Rate, p.prec.rate())
		item.PriceListRate = flt(item.PriceListRate, p.prec.rate())
		item.DiscountAmount = flt(item.DiscountAmount, p.prec.rate())
		item.NetRate = item.Rate

		if item.Qty == nil {
			qty := 1.0
			if p.doc.IsReturn {
				qty = -1
			}
			item.Qty = &qty
		} else {
			qty := flt(item.qty(), p.prec.qty())
			item.Qty = &qty
		}

		if !(p.doc.IsReturn || p.doc.IsDebitNote) {
			item.Amount = flt(item.Rate*item.qty(), p.prec.currency())
		} else {
			// Credit and debit notes allow a zero quantity, which counts as
			// one unit with the document's sign. Purchase receipts keep the
			// zero when every unit was rejected.
			qty := item.qty()
			if qty == 0 {
				qty = -1
				if p.doc.IsDebitNote {
					qty = 1
				}
				if p.doc.Doctype != DoctypePurchaseReceipt && p.doc.IsReturn {
					qty = item.qty()
				}
			}
			item.Amount = flt(item.Rate*qty, p.prec.currency())
		}
		item.NetAmount = item.Amount

		p.itemInCompanyCurrency(item)
	}
}

func (p *pass) baseValue(value float64, places int) float64 {
	return flt(flt(value, places)*p.doc.ConversionRate, places)
}

func (p *pass) itemInCompanyCurrency(item *Item) {
	item.BasePriceListRate = p.baseValue(item.PriceListRate, p.prec.rate())
	item.BaseRate = p.baseValue(item.Rate, p.prec.rate())
	item.BaseAmount = p.baseValue(item.Amount, p.prec.currency())
	p.itemNetInCompanyCurrency(item)
}

func (p *pass) itemNetInCompanyCurrency(item *Item) {
	item.BaseNetRate = p.baseValue(item.NetRate, p.prec.rate())
	item.BaseNetAmount = p.baseValue(item.NetAmount, p.prec.currency())
}

// ============================================================================
// STAGE 3: TAX INITIALIZATION
// ============================================================================

// addTaxesFromItemTemplates appends a zero-rated On Net Total row for every
// item tax template account that has no row yet, so the full row set exists
// before accumulation begins.
func (p *pass) addTaxesFromItemTemplates() {
	if !p.settings.AddTaxesFromItemTaxTemplate {
		return
	}
	var missing []string
	for _, item := range p.doc.Items {
		for head := range item.ItemTaxRate {
			if p.findTaxByAccount(head) == nil && !contains(missing, head) {
				missing = append(missing, head)
			}
		}
	}
	sort.Strings(missing)
	for _, head := range missing {
		p.doc.Taxes = append(p.doc.Taxes, &TaxRow{
			Idx:                  len(p.doc.Taxes) + 1,
			ChargeType:           ChargeOnNetTotal,
			AccountHead:          head,
			SetByItemTaxTemplate: true,
		})
	}
}

func (p *pass) findTaxByAccount(head string) *TaxRow {
	for _, tax := range p.doc.Taxes {
		if tax.AccountHead == head {
			return tax
		}
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func (p *pass) initializeTaxes() error {
	for i, tax := range p.doc.Taxes {
		if tax.Idx == 0 {
			tax.Idx = i + 1
		}
		if !tax.DontRecomputeTax {
			tax.ItemWiseTaxDetail = make(map[string]ItemTaxDetail)
		}

		tax.Total = 0
		tax.TaxAmountAfterDiscountAmount = 0
		tax.BaseTaxAmount = 0
		tax.BaseTaxAmountAfterDiscountAmount = 0
		tax.BaseTotal = 0
		if tax.ChargeType != ChargeActual &&
			!(p.discountApplied && p.doc.ApplyDiscountOn == DiscountOnGrandTotal) {
			tax.TaxAmount = 0
		}

		if !p.discountApplied {
			if err := p.validateTaxRow(i, tax); err != nil {
				return err
			}
		}
	}
	p.scratch = make([]taxScratch, len(p.doc.Taxes))
	return nil
}

// validateTaxRow enforces the construction-time invariants of the tax table:
// previous-row references must point strictly upward, and inclusive taxes are
// only meaningful for rate-based charge types.
func (p *pass) validateTaxRow(i int, tax *TaxRow) error {
	if tax.ChargeType.OnPreviousRow() {
		if i == 0 {
			return ErrPreviousRowOnFirst
		}
		if tax.RowID == 0 {
			tax.RowID = tax.Idx - 1
		}
		if tax.RowID < 1 || tax.RowID >= tax.Idx || tax.RowID > len(p.doc.Taxes) {
			return fmt.Errorf("%w (row %d references %d)", ErrBadRowReference, tax.Idx, tax.RowID)
		}
	}
	if tax.IncludedInPrintRate {
		if tax.ChargeType == ChargeActual {
			return fmt.Errorf("%w (row %d: %s)", ErrInvalidInclusiveTax, tax.Idx, tax.ChargeType)
		}
		if tax.ChargeType.OnPreviousRow() && !p.doc.Taxes[tax.RowID-1].IncludedInPrintRate {
			return fmt.Errorf("%w (row %d depends on an exclusive row)", ErrInvalidInclusiveTax, tax.Idx)
		}
	}
	return nil
}

// ============================================================================
// STAGE 4: EXCLUSIVE RATE
// ============================================================================

// determineExclusiveRate decomposes tax-inclusive item amounts into exclusive
// net amounts by accumulating each inclusive row's tax fraction of the item
// net amount.
func (p *pass) determineExclusiveRate() {
	hasInclusive := false
	for _, tax := range p.doc.Taxes {
		if tax.IncludedInPrintRate {
			hasInclusive = true
			break
		}
	}
	if !hasInclusive {
		return
	}

	for _, item := range p.doc.Items {
		cumulatedTaxFraction := 0.0
		totalInclusivePerQty := 0.0

		for i, tax := range p.doc.Taxes {
			fraction, perQty := p.currentTaxFraction(tax, item.ItemTaxRate)
			p.scratch[i].taxFractionForCurrentItem = fraction
			if i == 0 {
				p.scratch[i].grandTotalFractionForCurrentItem = 1 + fraction
			} else {
				p.scratch[i].grandTotalFractionForCurrentItem =
					p.scratch[i-1].grandTotalFractionForCurrentItem + fraction
			}
			cumulatedTaxFraction += fraction
			totalInclusivePerQty += perQty * item.qty()
		}

		if !p.discountApplied && item.qty() != 0 &&
			(totalInclusivePerQty != 0 || cumulatedTaxFraction != 0) {
			amount := item.Amount - totalInclusivePerQty
			item.NetAmount = flt(amount/(1+cumulatedTaxFraction), p.prec.currency())
			item.NetRate = flt(item.NetAmount/item.qty(), p.prec.rate())
			p.itemNetInCompanyCurrency(item)
		}
	}
}

// currentTaxFraction returns the fraction of the item's net amount the row
// contributes when inclusive, plus any flat inclusive amount per unit of
// quantity.
func (p *pass) currentTaxFraction(tax *TaxRow, itemTaxMap map[string]float64) (float64, float64) {
	var fraction, perQty float64

	if tax.IncludedInPrintRate {
		rate := p.taxRate(tax, itemTaxMap)
		switch tax.ChargeType {
		case ChargeOnNetTotal:
			fraction = rate / 100
		case ChargeOnPreviousRowAmount:
			fraction = rate / 100 * p.scratch[tax.RowID-1].taxFractionForCurrentItem
		case ChargeOnPreviousRowTotal:
			fraction = rate / 100 * p.scratch[tax.RowID-1].grandTotalFractionForCurrentItem
		case ChargeOnItemQuantity:
			perQty = rate
		}
	}

	if tax.AddDeductTax == DeductTax {
		fraction, perQty = -fraction, -perQty
	}
	return fraction, perQty
}

// taxRate resolves the row rate, honoring the item's tax template override.
func (p *pass) taxRate(tax *TaxRow, itemTaxMap map[string]float64) float64 {
	if rate, ok := itemTaxMap[tax.AccountHead]; ok {
		return flt(rate, p.prec.rate())
	}
	return tax.Rate
}

// ============================================================================
// STAGE 5: NET TOTAL
// ============================================================================

func (p *pass) calculateNetTotal() {
	doc := p.doc
	doc.TotalQty, doc.Total, doc.BaseTotal, doc.NetTotal, doc.BaseNetTotal = 0, 0, 0, 0, 0

	for _, item := range p.items {
		doc.Total += item.Amount
		doc.TotalQty += item.qty()
		doc.BaseTotal += item.BaseAmount
		doc.NetTotal += item.NetAmount
		doc.BaseNetTotal += item.BaseNetAmount
	}

	doc.Total = flt(doc.Total, p.prec.currency())
	doc.BaseTotal = flt(doc.BaseTotal, p.prec.currency())
	doc.NetTotal = flt(doc.NetTotal, p.prec.currency())
	doc.BaseNetTotal = flt(doc.BaseNetTotal, p.prec.currency())
}

// ============================================================================
// STAGE 6: TAX ACCUMULATION
// ============================================================================

func (p *pass) calculateTaxes() {
	doc := p.doc
	if len(doc.Taxes) == 0 {
		return
	}

	// Fixed-amount rows are distributed proportionally over items; the
	// remainder after rounding goes to the last item.
	actualTax := make(map[int]float64)
	for _, tax := range doc.Taxes {
		if tax.ChargeType == ChargeActual {
			actualTax[tax.Idx] = flt(tax.TaxAmount, p.prec.currency())
		}
	}

	for n, item := range p.items {
		for i, tax := range doc.Taxes {
			current := p.currentTaxAmount(item, tax, item.ItemTaxRate)
			if p.settings.RoundRowWiseTax {
				current = flt(current, p.prec.currency())
			}

			if tax.ChargeType == ChargeActual {
				actualTax[tax.Idx] -= current
				if n == len(p.items)-1 {
					current += actualTax[tax.Idx]
				}
			}

			if tax.ChargeType != ChargeActual &&
				!(p.discountApplied && doc.ApplyDiscountOn == DiscountOnGrandTotal) {
				tax.TaxAmount += current
			}

			// Kept for downstream "On Previous Row Amount" references.
			p.scratch[i].taxAmountForCurrentItem = current
			tax.TaxAmountAfterDiscountAmount += current

			if tax.Category != "" {
				if tax.Category == CategoryValuation {
					current = 0
				}
				if tax.AddDeductTax == DeductTax {
					current = -current
				}
			}

			// grandTotalForCurrentItem carries the item amount plus every tax
			// applied on it so far.
			if i == 0 {
				p.scratch[i].grandTotalForCurrentItem = item.NetAmount + current
			} else {
				p.scratch[i].grandTotalForCurrentItem =
					p.scratch[i-1].grandTotalForCurrentItem + current
			}
		}
	}

	if doc.ApplyDiscountOn == DiscountOnGrandTotal &&
		(p.discountApplied || doc.DiscountAmount != 0 || doc.AdditionalDiscountPercentage != 0) {
		for i, tax := range doc.Taxes {
			if p.discountApplied {
				tax.TaxAmountAfterDiscountAmount = flt(tax.TaxAmountAfterDiscountAmount, p.prec.currency())
			}
			p.setCumulativeTotal(i, tax)
		}
		last := doc.Taxes[len(doc.Taxes)-1]
		if !p.discountApplied {
			p.grandTotalForDiscount = last.Total
		} else {
			p.grandTotalDiff = flt(p.grandTotalForDiscount-doc.DiscountAmount-last.Total, p.prec.currency())
		}
	}

	for i, tax := range doc.Taxes {
		p.roundOffTotals(tax)
		tax.BaseTaxAmount = p.baseValue(tax.TaxAmount, p.prec.currency())
		tax.BaseTaxAmountAfterDiscountAmount = p.baseValue(tax.TaxAmountAfterDiscountAmount, p.prec.currency())
		p.roundOffBaseValues(tax)

		p.setCumulativeTotal(i, tax)
		tax.BaseTotal = p.baseValue(tax.Total, p.prec.currency())
	}
}

func (p *pass) currentTaxAmount(item *Item, tax *TaxRow, itemTaxMap map[string]float64) float64 {
	rate := p.taxRate(tax, itemTaxMap)
	var current, currentNet float64

	switch tax.ChargeType {
	case ChargeActual:
		currentNet = item.NetAmount
		actual := flt(tax.TaxAmount, p.prec.currency())
		if p.doc.NetTotal != 0 {
			current = item.NetAmount / p.doc.NetTotal * actual
		}
	case ChargeOnNetTotal:
		if _, ok := itemTaxMap[tax.AccountHead]; ok {
			currentNet = item.NetAmount
		}
		current = rate / 100 * item.NetAmount
	case ChargeOnPreviousRowAmount:
		currentNet = p.scratch[tax.RowID-1].taxAmountForCurrentItem
		current = rate / 100 * currentNet
	case ChargeOnPreviousRowTotal:
		currentNet = p.scratch[tax.RowID-1].grandTotalForCurrentItem
		current = rate / 100 * currentNet
	case ChargeOnItemQuantity:
		current = rate * item.qty()
	}

	if !tax.DontRecomputeTax {
		p.setItemWiseTax(item, tax, rate, current, currentNet)
	}
	return current
}

// setItemWiseTax records the per-item breakdown on the tax row, stated in
// company currency.
func (p *pass) setItemWiseTax(item *Item, tax *TaxRow, rate, currentTax, currentNet float64) {
	if tax.ItemWiseTaxDetail == nil {
		return
	}
	key := item.key()
	taxAmount := currentTax * p.doc.ConversionRate
	netAmount := currentNet * p.doc.ConversionRate

	previous, ok := tax.ItemWiseTaxDetail[key]
	if p.settings.RoundRowWiseTax {
		taxAmount = flt(taxAmount, p.prec.currency())
		netAmount = flt(netAmount, p.prec.currency())
		if ok {
			taxAmount += flt(previous.TaxAmount, p.prec.currency())
			netAmount += flt(previous.NetAmount, p.prec.currency())
		}
	} else if ok {
		taxAmount += previous.TaxAmount
		netAmount += previous.NetAmount
	}

	tax.ItemWiseTaxDetail[key] = ItemTaxDetail{
		TaxRate:   rate,
		TaxAmount: flt(taxAmount, p.prec.currency()),
		NetAmount: flt(netAmount, p.prec.currency()),
	}
}

func (p *pass) roundOffTotals(tax *TaxRow) {
	if p.settings.roundOffApplicable(tax.AccountHead) {
		tax.TaxAmount = flt(tax.TaxAmount, 0)
		tax.TaxAmountAfterDiscountAmount = flt(tax.TaxAmountAfterDiscountAmount, 0)
	}
	tax.TaxAmount = flt(tax.TaxAmount, p.prec.currency())
	tax.TaxAmountAfterDiscountAmount = flt(tax.TaxAmountAfterDiscountAmount, p.prec.currency())
}

func (p *pass) roundOffBaseValues(tax *TaxRow) {
	if p.settings.roundOffApplicable(tax.AccountHead) {
		tax.BaseTaxAmount = flt(tax.BaseTaxAmount, 0)
		tax.BaseTaxAmountAfterDiscountAmount = flt(tax.BaseTaxAmountAfterDiscountAmount, 0)
	}
}

// setCumulativeTotal accumulates the running grand total on the row:
// the previous row's total plus this row's net contribution, with a sign flip
// for deductions and no contribution for pure valuation rows.
func (p *pass) setCumulativeTotal(i int, tax *TaxRow) {
	amount := tax.TaxAmountAfterDiscountAmount
	if tax.Category == CategoryValuation {
		amount = 0
	}
	if tax.AddDeductTax == DeductTax {
		amount = -amount
	}

	if i == 0 {
		tax.Total = flt(p.doc.NetTotal+amount, p.prec.currency())
	} else {
		tax.Total = flt(p.doc.Taxes[i-1].Total+amount, p.prec.currency())
	}
}

// ============================================================================
// STAGE 7: INCLUSIVE-TAX GRAND TOTAL ADJUSTMENT
// ============================================================================

// adjustGrandTotalForInclusiveTax reconciles the small rounding discrepancy
// between (gross total + exclusive taxes) and the last row's cumulative total
// that inclusive-tax decomposition can leave behind. The diff is only applied
// when bounded by half the smallest representable tax amount.
func (p *pass) adjustGrandTotalForInclusiveTax() {
	taxes := p.doc.Taxes
	if len(taxes) == 0 {
		return
	}
	anyInclusive := false
	for _, tax := range taxes {
		if tax.IncludedInPrintRate {
			anyInclusive = true
			break
		}
	}
	if !anyInclusive {
		return
	}

	last := taxes[len(taxes)-1]
	nonInclusive := 0.0
	for _, tax := range taxes {
		if tax.IncludedInPrintRate {
			continue
		}
		amount := tax.TaxAmountAfterDiscountAmount
		if tax.Category == CategoryValuation {
			amount = 0
		}
		if tax.AddDeductTax == DeductTax {
			amount = -amount
		}
		nonInclusive += amount
	}

	diff := p.doc.Total + nonInclusive - flt(last.Total, p.prec.currency())
	if p.discountApplied && p.doc.DiscountAmount != 0 {
		diff -= p.doc.DiscountAmount
	}
	diff = flt(diff, p.prec.currency())

	if diff != 0 && math.Abs(diff) <= 5.0/math.Pow(10, float64(p.prec.currency())) {
		p.grandTotalDiff = diff
	}
}

// ============================================================================
// STAGE 8-9: TOTALS AND ROUNDED TOTAL
// ============================================================================

func (p *pass) calculateTotals() {
	doc := p.doc
	diff := p.grandTotalDiff

	if n := len(doc.Taxes); n > 0 {
		doc.GrandTotal = doc.Taxes[n-1].Total + diff
	} else {
		doc.GrandTotal = doc.NetTotal
	}

	doc.TotalTaxesAndCharges = flt(doc.GrandTotal-doc.NetTotal-diff, p.prec.currency())
	doc.BaseTotalTaxesAndCharges = p.baseValue(doc.TotalTaxesAndCharges, p.prec.currency())

	if doc.Doctype.IsSales() {
		if doc.TotalTaxesAndCharges != 0 {
			doc.BaseGrandTotal = doc.GrandTotal * doc.ConversionRate
		} else {
			doc.BaseGrandTotal = doc.BaseNetTotal
		}
	} else {
		// Purchase documents split the charges into added and deducted; only
		// rows that count towards the total participate.
		doc.TaxesAndChargesAdded, doc.TaxesAndChargesDeducted = 0, 0
		for _, tax := range doc.Taxes {
			if tax.Category != CategoryTotal && tax.Category != CategoryValuationAndTotal {
				continue
			}
			if tax.AddDeductTax == DeductTax {
				doc.TaxesAndChargesDeducted += tax.TaxAmountAfterDiscountAmount
			} else {
				doc.TaxesAndChargesAdded += tax.TaxAmountAfterDiscountAmount
			}
		}
		doc.TaxesAndChargesAdded = flt(doc.TaxesAndChargesAdded, p.prec.currency())
		doc.TaxesAndChargesDeducted = flt(doc.TaxesAndChargesDeducted, p.prec.currency())

		if doc.TaxesAndChargesAdded != 0 || doc.TaxesAndChargesDeducted != 0 {
			doc.BaseGrandTotal = doc.GrandTotal * doc.ConversionRate
		} else {
			doc.BaseGrandTotal = doc.BaseNetTotal
		}

		doc.BaseTaxesAndChargesAdded = p.baseValue(doc.TaxesAndChargesAdded, p.prec.currency())
		doc.BaseTaxesAndChargesDeducted = p.baseValue(doc.TaxesAndChargesDeducted, p.prec.currency())
	}

	doc.GrandTotal = flt(doc.GrandTotal, p.prec.currency())
	doc.BaseGrandTotal = flt(doc.BaseGrandTotal, p.prec.currency())

	p.setRoundedTotal()
}

func (p *pass) setRoundedTotal() {
	doc := p.doc

	if doc.DisableRoundedTotal || p.settings.DisableRoundedTotal {
		doc.RoundedTotal = 0
		doc.BaseRoundedTotal = 0
		doc.RoundingAdjustment = 0
		doc.BaseRoundingAdjustment = 0
		return
	}

	fraction := p.settings.SmallestCurrencyFraction[doc.Currency]
	doc.RoundedTotal = RoundToSmallestFraction(doc.GrandTotal, fraction, p.prec.currency())
	doc.RoundingAdjustment = flt(doc.RoundedTotal-doc.GrandTotal, p.prec.currency())
	doc.BaseRoundingAdjustment = p.baseValue(doc.RoundingAdjustment, p.prec.currency())
	doc.BaseRoundedTotal = p.baseValue(doc.RoundedTotal, p.prec.currency())
}
