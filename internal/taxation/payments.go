package taxation

// calculateTotalAdvance sums allocated advances and resolves the outstanding
// and write-off amounts. Only invoices reach this stage.
func (p *pass) calculateTotalAdvance() {
	var total float64
	for _, advance := range p.doc.Advances {
		total += flt(advance.AllocatedAmount, p.prec.currency())
	}
	p.doc.TotalAdvance = flt(total, p.prec.currency())

	if p.doc.WriteOffOutstandingAmountAutomatically {
		p.doc.WriteOffAmount = 0
	}

	p.calculateOutstandingAmount(p.pc.UpdatePaidAmount)
	p.calculateWriteOffAmount()
}

// amountToPay returns the amount still owed, in the party's account currency.
func (p *pass) amountToPay() float64 {
	doc := p.doc

	grandTotal := doc.GrandTotal
	if doc.RoundedTotal != 0 {
		grandTotal = doc.RoundedTotal
	}
	baseGrandTotal := doc.BaseGrandTotal
	if doc.BaseRoundedTotal != 0 {
		baseGrandTotal = doc.BaseRoundedTotal
	}

	if p.partyCurrencyMatches() {
		return flt(grandTotal-doc.TotalAdvance-doc.WriteOffAmount, p.prec.currency())
	}
	return flt(flt(baseGrandTotal, p.prec.currency())-doc.TotalAdvance-doc.BaseWriteOffAmount, p.prec.currency())
}

func (p *pass) partyCurrencyMatches() bool {
	return p.doc.PartyAccountCurrency == "" || p.doc.PartyAccountCurrency == p.doc.Currency
}

func (p *pass) calculateOutstandingAmount(updatePaidAmount bool) {
	doc := p.doc

	// paid_amount and write_off_amount only apply to POS-style invoices;
	// total_advance only to non-POS ones.
	if (doc.Doctype == DoctypeSalesInvoice || doc.Doctype == DoctypePOSInvoice) && doc.IsReturn {
		p.calculatePaidAmount()
	}

	if doc.IsReturn || doc.Docstatus > 0 || doc.isInternal() {
		return
	}

	doc.GrandTotal = flt(doc.GrandTotal, p.prec.currency())
	doc.TotalAdvance = flt(doc.TotalAdvance, p.prec.currency())
	doc.WriteOffAmount = flt(doc.WriteOffAmount, p.prec.currency())

	if !doc.Doctype.IsInvoice() {
		return
	}

	totalAmountToPay := p.amountToPay()

	doc.PaidAmount = flt(doc.PaidAmount, p.prec.currency())
	doc.BasePaidAmount = p.baseValue(doc.PaidAmount, p.prec.currency())

	if doc.Doctype == DoctypeSalesInvoice || doc.Doctype == DoctypePOSInvoice {
		p.setDefaultPayment(totalAmountToPay, updatePaidAmount)
		p.calculatePaidAmount()
	}
	p.calculateChangeAmount()

	paidAmount := doc.PaidAmount
	if !p.partyCurrencyMatches() {
		paidAmount = doc.BasePaidAmount
	}
	doc.OutstandingAmount = flt(totalAmountToPay-paidAmount+doc.ChangeAmount*doc.ConversionRate, p.prec.currency())
}

// setDefaultPayment assigns the outstanding total to the default mode of
// payment for POS documents, zeroing the other rows.
func (p *pass) setDefaultPayment(totalAmountToPay float64, updatePaidAmount bool) {
	doc := p.doc
	if !doc.IsPOS || !updatePaidAmount || p.settings.DisableDefaultMOP {
		return
	}

	assigned := false
	for _, payment := range doc.Payments {
		if payment.Default && !assigned && totalAmountToPay > 0 {
			if p.partyCurrencyMatches() {
				payment.BaseAmount = flt(totalAmountToPay*doc.ConversionRate, p.prec.currency())
				payment.Amount = flt(totalAmountToPay, p.prec.currency())
			} else {
				payment.BaseAmount = flt(totalAmountToPay, p.prec.currency())
				payment.Amount = flt(totalAmountToPay/doc.ConversionRate, p.prec.currency())
			}
			assigned = true
		} else if doc.PaidAmount != 0 {
			payment.Amount = 0
		}
	}
}

func (p *pass) calculatePaidAmount() {
	doc := p.doc
	var paid, basePaid float64

	if doc.IsPOS {
		for _, payment := range doc.Payments {
			payment.BaseAmount = flt(payment.Amount*doc.ConversionRate, p.prec.currency())
			paid += payment.Amount
			basePaid += payment.BaseAmount
		}
	} else if !doc.IsReturn {
		doc.Payments = nil
	}

	doc.PaidAmount = flt(paid, p.prec.currency())
	doc.BasePaidAmount = flt(basePaid, p.prec.currency())
}

// calculateChangeAmount computes change to hand back when a cash payment
// exceeds the (rounded) grand total.
func (p *pass) calculateChangeAmount() {
	doc := p.doc
	doc.ChangeAmount = 0
	doc.BaseChangeAmount = 0

	if doc.Doctype != DoctypeSalesInvoice && doc.Doctype != DoctypePOSInvoice {
		return
	}
	if doc.PaidAmount <= doc.GrandTotal || doc.IsReturn {
		return
	}

	hasCash := false
	for _, payment := range doc.Payments {
		if payment.Type == PaymentTypeCash {
			hasCash = true
			break
		}
	}
	if !hasCash {
		return
	}

	grandTotal := doc.GrandTotal
	if doc.RoundedTotal != 0 {
		grandTotal = doc.RoundedTotal
	}
	baseGrandTotal := doc.BaseGrandTotal
	if doc.BaseRoundedTotal != 0 {
		baseGrandTotal = doc.BaseRoundedTotal
	}

	doc.ChangeAmount = flt(doc.PaidAmount-grandTotal, p.prec.currency())
	doc.BaseChangeAmount = flt(doc.BasePaidAmount-baseGrandTotal, p.prec.currency())
}

// calculateWriteOffAmount writes off the remaining outstanding amount when
// the document is configured to do so, then recomputes the outstanding once
// more without touching paid amounts.
func (p *pass) calculateWriteOffAmount() {
	doc := p.doc
	if !doc.WriteOffOutstandingAmountAutomatically {
		return
	}
	doc.WriteOffAmount = flt(doc.OutstandingAmount, p.prec.currency())
	doc.BaseWriteOffAmount = flt(doc.WriteOffAmount*doc.ConversionRate, p.prec.currency())

	p.calculateOutstandingAmount(false)
}

// setTotalAmountToDefaultMOP defaults a POS return's payment rows. A user
// selection that already covers the amount is kept; when the original invoice
// was settled with a single mode of payment the return goes back to it.
func (p *pass) setTotalAmountToDefaultMOP() {
	doc := p.doc
	totalAmountToPay := p.amountToPay()

	var paymentSum float64
	for _, payment := range doc.Payments {
		paymentSum += payment.Amount
	}
	if paymentSum == totalAmountToPay {
		return
	}

	if len(p.pc.ReturnModes) == 1 {
		for _, payment := range doc.Payments {
			if payment.ModeOfPayment == p.pc.ReturnModes[0] {
				payment.Amount = totalAmountToPay
			} else {
				payment.Amount = 0
			}
		}
		return
	}

	for _, payment := range doc.Payments {
		if payment.Default {
			payment.Amount = totalAmountToPay
		} else {
			payment.Amount = 0
		}
	}
}
