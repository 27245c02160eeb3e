package taxation

// setDiscountAmount derives the discount amount from the additional discount
// percentage against the selected base.
func (p *pass) setDiscountAmount() {
	if p.doc.AdditionalDiscountPercentage == 0 {
		return
	}
	base := p.doc.NetTotal
	if p.doc.ApplyDiscountOn == DiscountOnGrandTotal {
		base = p.doc.GrandTotal
	}
	p.doc.DiscountAmount = flt(base*p.doc.AdditionalDiscountPercentage/100, p.prec.currency())
}

// applyDiscountAmount distributes the document discount proportionally over
// item net amounts, carrying a running rounding correction so the adjusted
// net amounts sum exactly to net total minus discount, then reruns the tax
// stages once with the discounted base.
func (p *pass) applyDiscountAmount() error {
	p.setDiscountAmount()

	doc := p.doc
	doc.BaseDiscountAmount = 0
	if doc.DiscountAmount == 0 {
		return nil
	}
	if doc.ApplyDiscountOn == "" {
		return ErrDiscountTargetUnset
	}

	doc.BaseDiscountAmount = flt(doc.DiscountAmount*doc.ConversionRate, p.prec.currency())

	// Cash and non-trade discounts are subtracted from the grand total
	// directly after both passes; no redistribution happens.
	if doc.ApplyDiscountOn == DiscountOnGrandTotal && doc.IsCashOrNonTradeDiscount {
		return nil
	}

	totalForDiscount := p.totalForDiscountAmount()
	if totalForDiscount == 0 {
		return nil
	}

	var netTotal, expectedNetTotal float64
	for _, item := range p.items {
		distributed := doc.DiscountAmount * item.NetAmount / totalForDiscount

		adjusted := item.NetAmount - distributed
		expectedNetTotal += adjusted
		item.NetAmount = flt(adjusted, p.prec.currency())
		netTotal += item.NetAmount

		// The residual between the exact and the rounded running sums is
		// folded into the current item so nothing is lost.
		if diff := flt(expectedNetTotal-netTotal, p.prec.currency()); diff != 0 {
			item.NetAmount = flt(item.NetAmount+diff, p.prec.currency())
			netTotal += diff
		}
		if qty := item.qty(); qty != 0 {
			item.NetRate = flt(item.NetAmount/qty, p.prec.rate())
		} else {
			item.NetRate = 0
		}
		p.itemNetInCompanyCurrency(item)
	}

	p.discountApplied = true
	return p.calculate()
}

// totalForDiscountAmount returns the base the discount is distributed over.
// For grand-total discounts, fixed-amount and per-quantity charges (and the
// percentage rows cascading off them) are excluded so fixed charges are never
// discounted.
func (p *pass) totalForDiscountAmount() float64 {
	doc := p.doc
	if doc.ApplyDiscountOn == DiscountOnNetTotal || len(doc.Taxes) == 0 {
		return doc.NetTotal
	}

	type actualEntry struct {
		taxAmount       float64
		cumulativeTotal float64
	}
	var totalActualTax float64
	actuals := make(map[int]actualEntry)

	record := func(tax *TaxRow, amount float64) {
		if tax.AddDeductTax == DeductTax {
			amount = -amount
		}
		if tax.Category != CategoryValuation {
			totalActualTax += amount
		}
		actuals[tax.Idx] = actualEntry{taxAmount: amount, cumulativeTotal: totalActualTax}
	}

	for _, tax := range doc.Taxes {
		if tax.ChargeType == ChargeActual || tax.ChargeType == ChargeOnItemQuantity {
			record(tax, tax.TaxAmount)
			continue
		}
		base, ok := actuals[tax.RowID]
		if !ok {
			continue
		}
		baseAmount := base.cumulativeTotal
		if tax.ChargeType == ChargeOnPreviousRowAmount {
			baseAmount = base.taxAmount
		}
		record(tax, baseAmount*tax.Rate/100)
	}

	grandTotal := doc.GrandTotal
	if p.grandTotalForDiscount != 0 {
		grandTotal = p.grandTotalForDiscount
	}
	return grandTotal - totalActualTax
}
