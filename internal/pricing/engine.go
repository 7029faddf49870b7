package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

// TaxRate is the single GST rate applied to every line. CGST and SGST are
// each half of it.
var TaxRate = decimal.RequireFromString("0.18")

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

var (
	// ErrNoItems is returned when an invoice has no line items.
	ErrNoItems = errors.New("pricing: no line items")
	// ErrInvalidQuantity is returned for a quantity below one.
	ErrInvalidQuantity = errors.New("pricing: quantity must be at least 1")
)

// LineItem is one requested invoice line. Lines naming the same product
// are priced independently.
type LineItem struct {
	ProductName     string
	Quantity        int
	DiscountPercent decimal.Decimal
}

// ProductLookup resolves products by exact name. *refdata.Catalog
// satisfies it.
type ProductLookup interface {
	Product(name string) (refdata.Product, error)
}

// Policy switches on the historical invoice math variants. The zero value
// is the current behaviour: per-line discounts only, no rounding.
type Policy struct {
	// OverallDiscountPercent is taken off the subtotal after line discounts.
	OverallDiscountPercent decimal.Decimal
	// AmountDiscount is a flat amount taken off after the percentage, floored
	// at zero and allocated to lines in proportion to their subtotal.
	AmountDiscount decimal.Decimal
	// CeilGrandTotal rounds the grand total up to a whole currency unit.
	CeilGrandTotal bool
}

// Layered reports whether an invoice-level discount is configured.
func (p Policy) Layered() bool {
	return p.OverallDiscountPercent.IsPositive() || p.AmountDiscount.IsPositive()
}

// Context carries the invoice-wide pricing inputs.
type Context struct {
	DiscountTier string
	Policy       Policy
}

// Line is the computed breakdown for one LineItem.
type Line struct {
	ProductID           string          `json:"productId"`
	ProductName         string          `json:"productName"`
	Category            string          `json:"category"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unitPrice"`
	TierApplied         bool            `json:"tierApplied"`
	DiscountPercent     decimal.Decimal `json:"discountPercent"`
	DiscountedUnitPrice decimal.Decimal `json:"discountedUnitPrice"`
	LineSubtotal        decimal.Decimal `json:"lineSubtotal"`
	// AllocatedDiscount is this line's share of the invoice-level discount.
	AllocatedDiscount decimal.Decimal `json:"allocatedDiscount"`
	TaxableAmount     decimal.Decimal `json:"taxableAmount"`
	TaxRate           decimal.Decimal `json:"taxRate"`
	CGST              decimal.Decimal `json:"cgst"`
	SGST              decimal.Decimal `json:"sgst"`
	LineGrandTotal    decimal.Decimal `json:"lineGrandTotal"`
}

// Totals aggregates an invoice.
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	OverallDiscount decimal.Decimal `json:"overallDiscount"`
	AmountDiscount  decimal.Decimal `json:"amountDiscount"`
	TaxableAmount   decimal.Decimal `json:"taxableAmount"`
	TaxAmount       decimal.Decimal `json:"taxAmount"`
	CGSTTotal       decimal.Decimal `json:"cgstTotal"`
	SGSTTotal       decimal.Decimal `json:"sgstTotal"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
}

// Invoice is the full pricing result.
type Invoice struct {
	Tier   string `json:"tier"`
	Lines  []Line `json:"lines"`
	Totals Totals `json:"totals"`
}

// Compute prices every line against the catalog and aggregates the totals.
// Lookup failures abort the whole computation. Discount percentages are not
// range checked here; callers validate them.
func Compute(items []LineItem, catalog ProductLookup, ctx Context) (Invoice, error) {
	if len(items) == 0 {
		return Invoice{}, ErrNoItems
	}
	if catalog == nil {
		return Invoice{}, errors.New("pricing: catalog not configured")
	}

	lines := make([]Line, 0, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		if it.Quantity < 1 {
			return Invoice{}, fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
		}
		product, err := catalog.Product(it.ProductName)
		if err != nil {
			return Invoice{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		unit, tierApplied := product.TierPrice(ctx.DiscountTier)
		if !tierApplied {
			unit = product.BasePrice
		}
		discounted := unit.Mul(decimal.NewFromInt(1).Sub(it.DiscountPercent.Div(hundred)))
		lineSubtotal := discounted.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(lineSubtotal)

		lines = append(lines, Line{
			ProductID:           product.ID,
			ProductName:         product.Name,
			Category:            product.Category,
			Quantity:            it.Quantity,
			UnitPrice:           unit,
			TierApplied:         tierApplied,
			DiscountPercent:     it.DiscountPercent,
			DiscountedUnitPrice: discounted,
			LineSubtotal:        lineSubtotal,
			TaxRate:             TaxRate,
		})
	}

	totals := Totals{Subtotal: subtotal, TaxableAmount: subtotal}
	policy := ctx.Policy
	if policy.Layered() {
		totals.OverallDiscount = subtotal.Mul(policy.OverallDiscountPercent).Div(hundred)
		totals.AmountDiscount = policy.AmountDiscount
		totals.TaxableAmount = decimal.Max(subtotal.Sub(totals.OverallDiscount).Sub(policy.AmountDiscount), decimal.Zero)
	}

	for i := range lines {
		allocate(&lines[i], subtotal, policy)
	}

	totals.TaxAmount = totals.TaxableAmount.Mul(TaxRate)
	totals.CGSTTotal = totals.TaxAmount.Div(two)
	totals.SGSTTotal = totals.TaxAmount.Div(two)
	totals.GrandTotal = totals.TaxableAmount.Add(totals.TaxAmount)
	if policy.CeilGrandTotal {
		totals.GrandTotal = totals.GrandTotal.Ceil()
	}

	return Invoice{Tier: ctx.DiscountTier, Lines: lines, Totals: totals}, nil
}

// allocate spreads the invoice-level discount over a line and derives the
// per-line tax split from the line's taxable share.
func allocate(l *Line, subtotal decimal.Decimal, policy Policy) {
	taxable := l.LineSubtotal
	if policy.Layered() {
		share := l.LineSubtotal.Mul(policy.OverallDiscountPercent).Div(hundred)
		if subtotal.IsPositive() && policy.AmountDiscount.IsPositive() {
			share = share.Add(policy.AmountDiscount.Mul(l.LineSubtotal).Div(subtotal))
		}
		l.AllocatedDiscount = share
		taxable = decimal.Max(l.LineSubtotal.Sub(share), decimal.Zero)
	}
	tax := taxable.Mul(l.TaxRate)
	l.TaxableAmount = taxable
	l.CGST = tax.Div(two)
	l.SGST = tax.Div(two)
	l.LineGrandTotal = taxable.Add(tax)
}

// Display formats an amount for rendering: truncated, never rounded, to two
// decimal places.
func Display(d decimal.Decimal) string {
	return d.Truncate(2).StringFixed(2)
}
