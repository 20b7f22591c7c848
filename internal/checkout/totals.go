package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-stock/internal/orders"
)

var (
	DefaultShipping = decimal.NewFromInt(50)
	DefaultVATRate  = decimal.RequireFromString("0.20")
)

// ComputeTotals prices the given lines. VAT is rounded to cents, half away
// from zero; the grand total is derived once from the rounded parts.
func ComputeTotals(lines []LineItem, shipping, vatRate decimal.Decimal) orders.Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	vat := subtotal.Mul(vatRate).Round(2)
	return orders.Totals{
		Subtotal:   subtotal,
		Shipping:   shipping,
		VAT:        vat,
		GrandTotal: subtotal.Add(shipping).Add(vat),
	}
}
