package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceTier is one volume-discount step of a product or variant.
type PriceTier struct {
	MinQty *int                `json:"minQty,omitempty"`
	MaxQty *int                `json:"maxQty,omitempty"`
	Price  decimal.NullDecimal `json:"price"`
}

// TierTable is an unordered set of tiers. Resolution always works on a copy
// sorted by MinQty.
type TierTable []PriceTier

// NewTier builds a tier. A negative max marks the tier as open-ended.
func NewTier(minQty, maxQty int, price decimal.Decimal) PriceTier {
	tier := PriceTier{MinQty: intPtr(minQty), Price: decimal.NewNullDecimal(price)}
	if maxQty >= 0 {
		tier.MaxQty = intPtr(maxQty)
	}
	return tier
}

// Min returns the lower bound, treating a missing value as 0.
func (t PriceTier) Min() int {
	if t.MinQty == nil {
		return 0
	}
	return *t.MinQty
}

// OpenEnded reports whether the tier has no upper bound.
func (t PriceTier) OpenEnded() bool {
	return t.MaxQty == nil
}

// Contains reports whether quantity falls in [min, max or +inf].
func (t PriceTier) Contains(quantity int) bool {
	if quantity < t.Min() {
		return false
	}
	return t.MaxQty == nil || quantity <= *t.MaxQty
}

// Sorted returns a copy ordered by MinQty ascending. Ties keep input order.
func (tt TierTable) Sorted() TierTable {
	out := make(TierTable, len(tt))
	copy(out, tt)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Min() < out[j].Min()
	})
	return out
}

func intPtr(v int) *int {
	return &v
}
