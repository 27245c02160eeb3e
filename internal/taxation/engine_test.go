package taxation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qty(v float64) *float64 { return &v }

func newTestEngine() *Engine {
	return NewEngine(Settings{CompanyCurrency: "USD"}, DefaultPrecisions())
}

func TestRecomputeNoTaxes(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "WIDGET", Rate: 100, Qty: qty(2)},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 200.0, doc.NetTotal)
	assert.Equal(t, 200.0, doc.Total)
	assert.Equal(t, 200.0, doc.GrandTotal)
	assert.Equal(t, 0.0, doc.TotalTaxesAndCharges)
	assert.Equal(t, 2.0, doc.TotalQty)
	assert.Equal(t, 1.0, doc.ConversionRate)
	assert.Equal(t, 200.0, doc.BaseGrandTotal)
}

func TestRecomputeOnNetTotal(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "WIDGET", Rate: 100, Qty: qty(1)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 10},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 100.0, doc.NetTotal)
	assert.Equal(t, 10.0, doc.Taxes[0].TaxAmount)
	assert.Equal(t, 110.0, doc.Taxes[0].Total)
	assert.Equal(t, 110.0, doc.GrandTotal)
	assert.Equal(t, 10.0, doc.TotalTaxesAndCharges)

	detail, ok := doc.Taxes[0].ItemWiseTaxDetail["WIDGET"]
	require.True(t, ok)
	assert.Equal(t, 10.0, detail.TaxRate)
	assert.Equal(t, 10.0, detail.TaxAmount)
}

func TestRecomputeInclusiveTax(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "WIDGET", Rate: 110, Qty: qty(1)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 10, IncludedInPrintRate: true},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 100.0, doc.Items[0].NetAmount)
	assert.Equal(t, 110.0, doc.Items[0].Amount)
	assert.Equal(t, 10.0, doc.Taxes[0].TaxAmount)
	assert.Equal(t, 110.0, doc.GrandTotal)
}

// Decomposing a gross rate and re-adding the cumulative fraction must land
// back on the original amount within one rounding unit.
func TestInclusiveDecompositionRoundTrip(t *testing.T) {
	for _, rate := range []float64{5, 7.5, 12.36, 18, 28} {
		doc := &Document{
			Doctype:  DoctypeSalesInvoice,
			Currency: "USD",
			Items: []*Item{
				{ItemCode: "WIDGET", Rate: 137.41, Qty: qty(3)},
			},
			Taxes: []*TaxRow{
				{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: rate, IncludedInPrintRate: true},
			},
		}

		require.NoError(t, newTestEngine().Recompute(doc))

		reconstructed := doc.Items[0].NetAmount * (1 + rate/100)
		assert.InDelta(t, doc.Items[0].Amount, reconstructed, 0.01, "rate %v", rate)
		assert.InDelta(t, doc.Items[0].Amount, doc.Items[0].NetAmount+doc.Taxes[0].TaxAmount, 0.011, "rate %v", rate)
	}
}

func TestRecomputeDiscountOnNetTotal(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 60, Qty: qty(1)},
			{ItemCode: "B", Rate: 40, Qty: qty(1)},
		},
		ApplyDiscountOn: DiscountOnNetTotal,
		DiscountAmount:  10,
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 54.0, doc.Items[0].NetAmount)
	assert.Equal(t, 36.0, doc.Items[1].NetAmount)
	assert.Equal(t, 90.0, doc.NetTotal)
	assert.Equal(t, 90.0, doc.GrandTotal)
	// Gross total keeps the undiscounted amounts.
	assert.Equal(t, 100.0, doc.Total)
}

// The distributed amounts must sum exactly to net total minus discount; the
// rounding residual is carried onto an item, never lost.
func TestDiscountDistributionExact(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 33.33, Qty: qty(1)},
			{ItemCode: "B", Rate: 33.33, Qty: qty(1)},
			{ItemCode: "C", Rate: 33.33, Qty: qty(1)},
		},
		ApplyDiscountOn: DiscountOnNetTotal,
		DiscountAmount:  10,
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	var sum float64
	for _, item := range doc.Items {
		sum += item.NetAmount
	}
	assert.InDelta(t, 99.99-10, sum, 1e-9)
	assert.InDelta(t, 89.99, doc.NetTotal, 1e-9)
}

func TestRecomputeDiscountOnGrandTotal(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 100, Qty: qty(1)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 10},
		},
		ApplyDiscountOn: DiscountOnGrandTotal,
		DiscountAmount:  11,
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	// 10% off a 110 grand total keeps the tax proportional: net 90, tax 9.
	assert.Equal(t, 90.0, doc.Items[0].NetAmount)
	assert.Equal(t, 99.0, doc.GrandTotal)
}

func TestAdditionalDiscountPercentage(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 200, Qty: qty(1)},
		},
		ApplyDiscountOn:              DiscountOnNetTotal,
		AdditionalDiscountPercentage: 5,
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 10.0, doc.DiscountAmount)
	assert.Equal(t, 190.0, doc.NetTotal)
	assert.Equal(t, 190.0, doc.GrandTotal)
}

func TestCashDiscountComesOffGrandTotal(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 100, Qty: qty(1)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 10},
		},
		ApplyDiscountOn:          DiscountOnGrandTotal,
		DiscountAmount:           10,
		IsCashOrNonTradeDiscount: true,
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	// No redistribution: items and taxes keep their undiscounted values.
	assert.Equal(t, 100.0, doc.Items[0].NetAmount)
	assert.Equal(t, 10.0, doc.Taxes[0].TaxAmount)
	assert.Equal(t, 100.0, doc.GrandTotal)
}

func TestReturnDefaultsQtyToMinusOne(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		IsReturn: true,
		Items: []*Item{
			{ItemCode: "A", Rate: 100},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	require.NotNil(t, doc.Items[0].Qty)
	assert.Equal(t, -1.0, *doc.Items[0].Qty)
	assert.Equal(t, -100.0, doc.Items[0].NetAmount)
	assert.Equal(t, -100.0, doc.NetTotal)
}

func TestPreviousRowCascade(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 100, Qty: qty(1)},
			{ItemCode: "B", Rate: 200, Qty: qty(1)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 10},
			{Idx: 2, ChargeType: ChargeOnPreviousRowAmount, AccountHead: "CESS - M", Rate: 50, RowID: 1},
			{Idx: 3, ChargeType: ChargeOnPreviousRowTotal, AccountHead: "SURCHARGE - M", Rate: 10, RowID: 2},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 30.0, doc.Taxes[0].TaxAmount)
	assert.Equal(t, 15.0, doc.Taxes[1].TaxAmount)
	assert.Equal(t, 34.5, doc.Taxes[2].TaxAmount)
	assert.Equal(t, 330.0, doc.Taxes[0].Total)
	assert.Equal(t, 345.0, doc.Taxes[1].Total)
	assert.Equal(t, 379.5, doc.Taxes[2].Total)
	assert.Equal(t, 379.5, doc.GrandTotal)
}

func TestActualTaxDistributesResidualToLastItem(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 33.33, Qty: qty(1)},
			{ItemCode: "B", Rate: 66.67, Qty: qty(1)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeActual, AccountHead: "FREIGHT - M", TaxAmount: 10},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	// The fixed amount survives distribution exactly.
	assert.Equal(t, 10.0, doc.Taxes[0].TaxAmountAfterDiscountAmount)
	assert.Equal(t, 110.0, doc.GrandTotal)

	var itemWise float64
	for _, d := range doc.Taxes[0].ItemWiseTaxDetail {
		itemWise += d.TaxAmount
	}
	assert.InDelta(t, 10.0, itemWise, 0.011)
}

func TestOnItemQuantity(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 100, Qty: qty(4)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnItemQuantity, AccountHead: "ENVFEE - M", Rate: 2.5},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 10.0, doc.Taxes[0].TaxAmount)
	assert.Equal(t, 410.0, doc.GrandTotal)
}

func TestItemTaxRateOverride(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 100, Qty: qty(1), ItemTaxRate: map[string]float64{"VAT - M": 5}},
			{ItemCode: "B", Rate: 100, Qty: qty(1)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 10},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	// 5% on the overridden item, 10% on the other.
	assert.Equal(t, 15.0, doc.Taxes[0].TaxAmount)
	assert.Equal(t, 215.0, doc.GrandTotal)
}

func TestPurchaseDeductAndValuation(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypePurchaseInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 100, Qty: qty(1)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 10, Category: CategoryTotal, AddDeductTax: AddTax},
			{Idx: 2, ChargeType: ChargeOnNetTotal, AccountHead: "TDS - M", Rate: 5, Category: CategoryTotal, AddDeductTax: DeductTax},
			{Idx: 3, ChargeType: ChargeOnNetTotal, AccountHead: "DUTY - M", Rate: 20, Category: CategoryValuation, AddDeductTax: AddTax},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 110.0, doc.Taxes[0].Total)
	assert.Equal(t, 105.0, doc.Taxes[1].Total)
	// Valuation rows carry an amount but never move the running total.
	assert.Equal(t, 20.0, doc.Taxes[2].TaxAmount)
	assert.Equal(t, 105.0, doc.Taxes[2].Total)
	assert.Equal(t, 105.0, doc.GrandTotal)
	assert.Equal(t, 10.0, doc.TaxesAndChargesAdded)
	assert.Equal(t, 5.0, doc.TaxesAndChargesDeducted)
}

func TestMultiCurrencyBaseMirrors(t *testing.T) {
	engine := NewEngine(Settings{CompanyCurrency: "INR"}, DefaultPrecisions())
	doc := &Document{
		Doctype:        DoctypeSalesInvoice,
		Currency:       "USD",
		ConversionRate: 75,
		Items: []*Item{
			{ItemCode: "A", Rate: 10, Qty: qty(2)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "IGST - M", Rate: 18},
		},
	}

	require.NoError(t, engine.Recompute(doc))

	assert.Equal(t, 20.0, doc.NetTotal)
	assert.Equal(t, 1500.0, doc.BaseNetTotal)
	assert.Equal(t, 3.6, doc.Taxes[0].TaxAmount)
	assert.Equal(t, 270.0, doc.Taxes[0].BaseTaxAmount)
	assert.Equal(t, 23.6, doc.GrandTotal)
	assert.Equal(t, 1770.0, doc.BaseGrandTotal)
}

func TestMissingConversionRate(t *testing.T) {
	engine := NewEngine(Settings{CompanyCurrency: "INR"}, DefaultPrecisions())
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items:    []*Item{{ItemCode: "A", Rate: 10, Qty: qty(1)}},
	}

	err := engine.Recompute(doc)
	require.ErrorIs(t, err, ErrMissingConversionRate)
}

func TestPreviousRowOnFirstRowFails(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items:    []*Item{{ItemCode: "A", Rate: 10, Qty: qty(1)}},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnPreviousRowTotal, AccountHead: "VAT - M", Rate: 10},
		},
	}

	err := newTestEngine().Recompute(doc)
	require.ErrorIs(t, err, ErrPreviousRowOnFirst)
}

func TestDanglingRowReferenceFails(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items:    []*Item{{ItemCode: "A", Rate: 10, Qty: qty(1)}},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 10},
			{Idx: 2, ChargeType: ChargeOnPreviousRowAmount, AccountHead: "CESS - M", Rate: 10, RowID: 2},
		},
	}

	err := newTestEngine().Recompute(doc)
	require.ErrorIs(t, err, ErrBadRowReference)
}

func TestDiscountWithoutTargetFails(t *testing.T) {
	doc := &Document{
		Doctype:        DoctypeSalesInvoice,
		Currency:       "USD",
		DiscountAmount: 5,
		Items:          []*Item{{ItemCode: "A", Rate: 10, Qty: qty(1)}},
	}

	err := newTestEngine().Recompute(doc)
	require.ErrorIs(t, err, ErrDiscountTargetUnset)
}

func TestInclusiveActualFails(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items:    []*Item{{ItemCode: "A", Rate: 10, Qty: qty(1)}},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeActual, AccountHead: "FREIGHT - M", TaxAmount: 5, IncludedInPrintRate: true},
		},
	}

	err := newTestEngine().Recompute(doc)
	require.ErrorIs(t, err, ErrInvalidInclusiveTax)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	build := func() *Document {
		return &Document{
			Doctype:  DoctypeSalesInvoice,
			Currency: "USD",
			Items: []*Item{
				{ItemCode: "A", Rate: 33.33, Qty: qty(3)},
				{ItemCode: "B", Rate: 127.5, Qty: qty(2)},
			},
			Taxes: []*TaxRow{
				{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 12.5},
				{Idx: 2, ChargeType: ChargeOnPreviousRowTotal, AccountHead: "CESS - M", Rate: 2, RowID: 1},
			},
			ApplyDiscountOn: DiscountOnNetTotal,
			DiscountAmount:  25,
		}
	}

	engine := newTestEngine()
	doc := build()
	require.NoError(t, engine.Recompute(doc))

	first := *doc
	firstTax := *doc.Taxes[0]
	require.NoError(t, engine.Recompute(doc))

	assert.Equal(t, first.NetTotal, doc.NetTotal)
	assert.Equal(t, first.GrandTotal, doc.GrandTotal)
	assert.Equal(t, first.TotalTaxesAndCharges, doc.TotalTaxesAndCharges)
	assert.Equal(t, first.RoundedTotal, doc.RoundedTotal)
	assert.Equal(t, firstTax.TaxAmount, doc.Taxes[0].TaxAmount)
	assert.Equal(t, firstTax.Total, doc.Taxes[0].Total)
}

func TestGrandTotalSumInvariant(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 97.13, Qty: qty(7)},
			{ItemCode: "B", Rate: 3.99, Qty: qty(13)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 18},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.InDelta(t, doc.NetTotal+doc.TotalTaxesAndCharges, doc.GrandTotal, 1e-9)
	assert.InDelta(t, doc.GrandTotal+doc.RoundingAdjustment, doc.RoundedTotal, 1e-9)
	assert.True(t, math.Abs(doc.RoundingAdjustment) <= 0.5)
}

func TestMarginAndItemDiscount(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", PriceListRate: 100, MarginType: MarginPercentage, MarginRateOrAmount: 20, DiscountPercentage: 10, Qty: qty(1)},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	item := doc.Items[0]
	assert.Equal(t, 120.0, item.RateWithMargin)
	assert.Equal(t, 12.0, item.DiscountAmount)
	assert.Equal(t, 108.0, item.Rate)
	assert.Equal(t, 108.0, doc.GrandTotal)
}

func TestBlanketOrderRateOverridesPriceList(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeSalesOrder,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", PriceListRate: 100, BlanketOrderRate: 80, Qty: qty(1)},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 80.0, doc.Items[0].Rate)
	assert.Equal(t, 80.0, doc.GrandTotal)
}

func TestQuotationSkipsAlternativeItems(t *testing.T) {
	doc := &Document{
		Doctype:  DoctypeQuotation,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 100, Qty: qty(1)},
			{ItemCode: "A-ALT", Rate: 90, Qty: qty(1), IsAlternative: true},
		},
	}

	require.NoError(t, newTestEngine().Recompute(doc))

	assert.Equal(t, 100.0, doc.NetTotal)
	assert.Equal(t, 100.0, doc.GrandTotal)
}

func TestAddTaxesFromItemTemplates(t *testing.T) {
	engine := NewEngine(Settings{
		CompanyCurrency:             "USD",
		AddTaxesFromItemTaxTemplate: true,
	}, DefaultPrecisions())
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 100, Qty: qty(1), ItemTaxRate: map[string]float64{"VAT - M": 12}},
		},
	}

	require.NoError(t, engine.Recompute(doc))

	require.Len(t, doc.Taxes, 1)
	assert.Equal(t, "VAT - M", doc.Taxes[0].AccountHead)
	assert.True(t, doc.Taxes[0].SetByItemTaxTemplate)
	// Zero-rated row, overridden per item: 12% on the templated item.
	assert.Equal(t, 12.0, doc.Taxes[0].TaxAmount)
	assert.Equal(t, 112.0, doc.GrandTotal)
}

func TestRoundOffApplicableAccounts(t *testing.T) {
	engine := NewEngine(Settings{
		CompanyCurrency:            "USD",
		RoundOffApplicableAccounts: []string{"VAT - M"},
	}, DefaultPrecisions())
	doc := &Document{
		Doctype:  DoctypeSalesInvoice,
		Currency: "USD",
		Items: []*Item{
			{ItemCode: "A", Rate: 105, Qty: qty(1)},
		},
		Taxes: []*TaxRow{
			{Idx: 1, ChargeType: ChargeOnNetTotal, AccountHead: "VAT - M", Rate: 12.36},
		},
	}

	require.NoError(t, engine.Recompute(doc))

	// 12.98 rounds to the whole unit.
	assert.Equal(t, 13.0, doc.Taxes[0].TaxAmount)
	assert.Equal(t, 118.0, doc.GrandTotal)
}
