package checkout

import (
	"github.com/shopspring/decimal"
	"github.com/poscart/fulfillment/internal/errs"
	"github.com/poscart/fulfillment/internal/orders"
)

// tolerance absorbs binary float drift in client-declared figures.
var tolerance = decimal.RequireFromString("0.01")

// validateTotals recomputes subtotal and total from the declared items and
// compares them against the client's figures. Client arithmetic is untrusted
// input: a mismatch aborts checkout, it is never silently corrected.
func validateTotals(items []orders.Item, shipping, declaredSubtotal, declaredTotal float64) (decimal.Decimal, error) {
	subtotal := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			return decimal.Zero, errs.Validationf("invalid quantity for %s: %d", it.Name, it.Quantity)
		}
		if it.Price < 0 {
			return decimal.Zero, errs.Validationf("invalid price for %s: %v", it.Name, it.Price)
		}
		line := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
	}
	if shipping < 0 {
		return decimal.Zero, errs.Validationf("invalid shipping cost: %v", shipping)
	}
	total := subtotal.Add(decimal.NewFromFloat(shipping))

	if decimal.NewFromFloat(declaredSubtotal).Sub(subtotal).Abs().GreaterThanOrEqual(tolerance) {
		return decimal.Zero, errs.Validationf(
			"Subtotal mismatch. Client sent %v, server calculated %s",
			declaredSubtotal, subtotal.StringFixed(2))
	}
	if decimal.NewFromFloat(declaredTotal).Sub(total).Abs().GreaterThanOrEqual(tolerance) {
		return decimal.Zero, errs.Validationf(
			"Total cost mismatch. Client sent %v, server calculated %s",
			declaredTotal, total.StringFixed(2))
	}
	return total, nil
}
