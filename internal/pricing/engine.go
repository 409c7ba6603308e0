package pricing

import "github.com/shopspring/decimal"

// Item describes a priced line used for totals.
type Item struct {
	Qty       int
	UnitPrice decimal.Decimal
}

// Summary aggregates computed totals.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

var bpsDivisor = decimal.NewFromInt(10000)

// Compute totals items, applies a flat discount capped at the subtotal and
// adds tax expressed in basis points, rounded to cents.
func Compute(items []Item, discount decimal.Decimal, taxBps int) Summary {
	subtotal := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(decimal.NewFromInt(int64(taxBps))).Div(bpsDivisor).Round(2)
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    taxable.Add(tax),
	}
}
