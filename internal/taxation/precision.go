package taxation

import "math"

// Precisions is the explicit per-field rounding table for one computation
// pass. The reference system resolves precisions from document metadata per
// field; here the caller supplies them once per recompute.
type Precisions struct {
	// Currency applies to money fields: amounts, totals, tax amounts,
	// discounts, payments.
	Currency int
	// Rate applies to per-unit rates (rate, net_rate, price_list_rate).
	Rate int
	// Exchange applies to the conversion rate.
	Exchange int
	// Qty applies to quantities.
	Qty int
}

// DefaultPrecisions mirrors the stock configuration: two decimals for money
// and rates, nine for exchange rates, three for quantities.
func DefaultPrecisions() Precisions {
	return Precisions{Currency: 2, Rate: 2, Exchange: 9, Qty: 3}
}

func (p Precisions) currency() int {
	if p.Currency == 0 {
		return 2
	}
	return p.Currency
}

func (p Precisions) rate() int {
	if p.Rate == 0 {
		return p.currency()
	}
	return p.Rate
}

func (p Precisions) qty() int {
	if p.Qty == 0 {
		return 3
	}
	return p.Qty
}

func (p Precisions) exchange() int {
	if p.Exchange == 0 {
		return 9
	}
	return p.Exchange
}

// flt rounds half away from zero at the given number of decimal places,
// matching the reference float helper.
func flt(value float64, places int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	mult := math.Pow(10, float64(places))
	scaled := value * mult
	// Nudge away from representation noise such as 2.675*100 = 267.49999...
	if scaled > 0 {
		scaled += 1e-9
	} else if scaled < 0 {
		scaled -= 1e-9
	}
	return math.Trunc(scaled+math.Copysign(0.5, scaled)) / mult
}
