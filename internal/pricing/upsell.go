package pricing

import "github.com/shopspring/decimal"

// upsellThresholdPercent bounds how far below the next tier a quantity may be
// for a suggestion to be offered.
const upsellThresholdPercent = 10

// UpsellSuggestion describes the cost of moving up to the next cheaper tier.
type UpsellSuggestion struct {
	ExtraUnits       int             `json:"extraUnits"`
	NewQuantity      int             `json:"newQuantity"`
	CurrentUnitPrice decimal.Decimal `json:"currentUnitPrice"`
	NextUnitPrice    decimal.Decimal `json:"nextUnitPrice"`
	CurrentTotal     decimal.Decimal `json:"currentTotal"`
	NextTotal        decimal.Decimal `json:"nextTotal"`
	Diff             decimal.Decimal `json:"diff"`
}

// Saves reports whether buying the extra units costs less overall.
func (s UpsellSuggestion) Saves() bool {
	return s.Diff.IsNegative()
}

// SuggestUpsell returns a suggestion when quantity sits within 10% of the next
// tier's minimum and that tier is strictly cheaper per unit. It returns nil
// otherwise.
func SuggestUpsell(tiers TierTable, quantity int) *UpsellSuggestion {
	if len(tiers) == 0 || quantity <= 0 {
		return nil
	}
	sorted := tiers.Sorted()

	current := -1
	for i, tier := range sorted {
		if tier.Contains(quantity) {
			current = i
			break
		}
	}
	if current < 0 || current+1 >= len(sorted) {
		return nil
	}
	cur, next := sorted[current], sorted[current+1]

	missing := next.Min() - quantity
	if missing <= 0 {
		return nil
	}
	if missing*100 > next.Min()*upsellThresholdPercent {
		return nil
	}
	if !cur.Price.Valid || !next.Price.Valid {
		return nil
	}
	if !next.Price.Decimal.LessThan(cur.Price.Decimal) {
		return nil
	}

	currentTotal := cur.Price.Decimal.Mul(decimal.NewFromInt(int64(quantity)))
	nextTotal := next.Price.Decimal.Mul(decimal.NewFromInt(int64(next.Min())))
	return &UpsellSuggestion{
		ExtraUnits:       missing,
		NewQuantity:      next.Min(),
		CurrentUnitPrice: cur.Price.Decimal,
		NextUnitPrice:    next.Price.Decimal,
		CurrentTotal:     currentTotal,
		NextTotal:        nextTotal,
		Diff:             nextTotal.Sub(currentTotal),
	}
}
