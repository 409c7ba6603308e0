package pricing

import "github.com/shopspring/decimal"

// Decision is the outcome of resolving a unit price for a quantity.
type Decision struct {
	Price       decimal.Decimal `json:"price"`
	MinQuantity *int            `json:"minQuantity"`
	IsValid     bool            `json:"isValid"`
}

// ResolvePrice picks the unit price for quantity from tiers, falling back to
// basePrice when the table is empty or the selected tier has no price.
//
// When quantity is below the first tier's minimum the decision is marked
// invalid but still carries the first tier's price as a reference.
//
// Selection scans tiers by ascending MinQty. The first closed range that
// contains quantity is taken; any open-ended tier whose minimum has been
// reached overrides it, so the last such tier wins. Quantities above every
// declared range clamp to the top tier.
func ResolvePrice(tiers TierTable, quantity int, basePrice decimal.Decimal) Decision {
	if len(tiers) == 0 {
		return Decision{Price: basePrice, IsValid: true}
	}
	sorted := tiers.Sorted()
	first := sorted[0]

	var minQuantity *int
	if first.MinQty != nil {
		minQuantity = intPtr(*first.MinQty)
	}
	valid := minQuantity == nil || quantity >= *minQuantity

	if !valid && first.Price.Valid {
		return Decision{Price: first.Price.Decimal, MinQuantity: minQuantity, IsValid: false}
	}

	var selected decimal.NullDecimal
	closedFound := false
	for _, tier := range sorted {
		if !closedFound && !tier.OpenEnded() && tier.Contains(quantity) {
			selected = tier.Price
			closedFound = true
		}
		if tier.OpenEnded() && quantity >= tier.Min() {
			selected = tier.Price
		}
	}

	last := sorted[len(sorted)-1]
	switch {
	case !last.OpenEnded() && quantity > *last.MaxQty:
		selected = last.Price
	case last.OpenEnded() && quantity >= last.Min():
		selected = last.Price
	}

	price := basePrice
	if selected.Valid {
		price = selected.Decimal
	}
	return Decision{Price: price, MinQuantity: minQuantity, IsValid: valid}
}
