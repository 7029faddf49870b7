package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

func testCatalog(t *testing.T) *refdata.Catalog {
	t.Helper()
	catalog, err := refdata.NewCatalog(refdata.Tables{Products: []refdata.Product{
		{
			ID:         "P-1",
			Name:       "Face Wash",
			Category:   "Skin",
			BasePrice:  decimal.NewFromInt(200),
			TierPrices: map[string]decimal.Decimal{"Gold": decimal.NewFromInt(180)},
		},
		{
			ID:        "P-2",
			Name:      "Soap",
			Category:  "Bath",
			BasePrice: decimal.RequireFromString("49.99"),
		},
	}})
	require.NoError(t, err)
	return catalog
}

func pct(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestComputeSingleLineScenario(t *testing.T) {
	inv, err := Compute([]LineItem{{ProductName: "Face Wash", Quantity: 3, DiscountPercent: pct("10")}},
		testCatalog(t), Context{DiscountTier: "Gold"})
	require.NoError(t, err)
	require.Len(t, inv.Lines, 1)

	line := inv.Lines[0]
	require.True(t, line.TierApplied)
	require.Equal(t, "180", line.UnitPrice.String())
	require.Equal(t, "162.00", line.DiscountedUnitPrice.StringFixed(2))
	require.Equal(t, "486.00", line.LineSubtotal.StringFixed(2))
	require.Equal(t, "43.74", line.CGST.StringFixed(2))
	require.Equal(t, "573.48", line.LineGrandTotal.StringFixed(2))

	require.Equal(t, "486.00", inv.Totals.Subtotal.StringFixed(2))
	require.Equal(t, "87.48", inv.Totals.TaxAmount.StringFixed(2))
	require.Equal(t, "573.48", inv.Totals.GrandTotal.StringFixed(2))
}

func TestComputeFallsBackToBasePrice(t *testing.T) {
	inv, err := Compute([]LineItem{{ProductName: "Soap", Quantity: 2}}, testCatalog(t), Context{DiscountTier: "Gold"})
	require.NoError(t, err)
	require.False(t, inv.Lines[0].TierApplied)
	require.Equal(t, "49.99", inv.Lines[0].UnitPrice.String())
	require.Equal(t, "99.98", inv.Totals.Subtotal.String())
}

func TestComputeInvariants(t *testing.T) {
	items := []LineItem{
		{ProductName: "Face Wash", Quantity: 1, DiscountPercent: pct("12.5")},
		{ProductName: "Soap", Quantity: 7, DiscountPercent: pct("3")},
		{ProductName: "Soap", Quantity: 1},
	}
	inv, err := Compute(items, testCatalog(t), Context{DiscountTier: "Gold"})
	require.NoError(t, err)
	require.Len(t, inv.Lines, 3, "duplicate products stay independent lines")

	sum := decimal.Zero
	for i, line := range inv.Lines {
		expected := line.UnitPrice.InexactFloat64() * (1 - items[i].DiscountPercent.InexactFloat64()/100)
		require.InDelta(t, expected, line.DiscountedUnitPrice.InexactFloat64(), 1e-6)
		sum = sum.Add(line.LineSubtotal)
	}
	totals := inv.Totals
	require.True(t, totals.Subtotal.Equal(sum))
	require.True(t, totals.GrandTotal.Equal(totals.Subtotal.Add(totals.Subtotal.Mul(TaxRate))))
	require.True(t, totals.CGSTTotal.Equal(totals.SGSTTotal))
	require.True(t, totals.CGSTTotal.Equal(totals.TaxAmount.Div(decimal.NewFromInt(2))))
}

func TestComputeFullDiscount(t *testing.T) {
	inv, err := Compute([]LineItem{{ProductName: "Face Wash", Quantity: 4, DiscountPercent: pct("100")}},
		testCatalog(t), Context{})
	require.NoError(t, err)
	require.True(t, inv.Lines[0].DiscountedUnitPrice.IsZero())
	require.True(t, inv.Lines[0].LineSubtotal.IsZero())
	require.True(t, inv.Totals.GrandTotal.IsZero())
}

func TestComputeRejectsZeroQuantity(t *testing.T) {
	_, err := Compute([]LineItem{{ProductName: "Soap", Quantity: 0}}, testCatalog(t), Context{})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestComputeUnknownProductAborts(t *testing.T) {
	_, err := Compute([]LineItem{
		{ProductName: "Soap", Quantity: 1},
		{ProductName: "Shampoo", Quantity: 1},
	}, testCatalog(t), Context{})
	require.True(t, errors.Is(err, refdata.ErrNotFound))
}

func TestComputeEmpty(t *testing.T) {
	_, err := Compute(nil, testCatalog(t), Context{})
	require.ErrorIs(t, err, ErrNoItems)
}

func TestComputeLayeredPolicy(t *testing.T) {
	items := []LineItem{
		{ProductName: "Face Wash", Quantity: 1},
		{ProductName: "Face Wash", Quantity: 3},
	}
	policy := Policy{OverallDiscountPercent: pct("10"), AmountDiscount: pct("80")}
	inv, err := Compute(items, testCatalog(t), Context{Policy: policy})
	require.NoError(t, err)

	// subtotal 800, -10% = 720, -80 = 640 taxable
	require.Equal(t, "800", inv.Totals.Subtotal.String())
	require.Equal(t, "80", inv.Totals.OverallDiscount.String())
	require.Equal(t, "640", inv.Totals.TaxableAmount.String())
	require.Equal(t, "115.2", inv.Totals.TaxAmount.String())
	require.Equal(t, "755.2", inv.Totals.GrandTotal.String())

	// line shares: 200 -> 20 + 20 ; 600 -> 60 + 60
	require.Equal(t, "40", inv.Lines[0].AllocatedDiscount.String())
	require.Equal(t, "160", inv.Lines[0].TaxableAmount.String())
	require.Equal(t, "480", inv.Lines[1].TaxableAmount.String())

	lineTax := inv.Lines[0].CGST.Add(inv.Lines[0].SGST).Add(inv.Lines[1].CGST).Add(inv.Lines[1].SGST)
	require.True(t, lineTax.Equal(inv.Totals.TaxAmount))
}

func TestComputeAmountDiscountFloorsAtZero(t *testing.T) {
	policy := Policy{AmountDiscount: pct("10000")}
	inv, err := Compute([]LineItem{{ProductName: "Soap", Quantity: 1}}, testCatalog(t), Context{Policy: policy})
	require.NoError(t, err)
	require.True(t, inv.Totals.TaxableAmount.IsZero())
	require.True(t, inv.Totals.GrandTotal.IsZero())
}

func TestComputeCeilPolicy(t *testing.T) {
	inv, err := Compute([]LineItem{{ProductName: "Face Wash", Quantity: 3, DiscountPercent: pct("10")}},
		testCatalog(t), Context{DiscountTier: "Gold", Policy: Policy{CeilGrandTotal: true}})
	require.NoError(t, err)
	require.Equal(t, "574", inv.Totals.GrandTotal.String())
	require.Equal(t, "87.48", inv.Totals.TaxAmount.StringFixed(2))
}

func TestDisplayTruncates(t *testing.T) {
	require.Equal(t, "10.99", Display(pct("10.999")))
	require.Equal(t, "5.00", Display(decimal.NewFromInt(5)))
}
