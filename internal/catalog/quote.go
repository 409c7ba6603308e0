package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/gmeppo/eppo-proposals/internal/pricing"
)

// Quote is the priced view of a requested quantity of a product or variant.
type Quote struct {
	ProductID    string                    `json:"productId"`
	VariantID    string                    `json:"variantId,omitempty"`
	RequestedQty int                       `json:"requestedQty"`
	Quantity     int                       `json:"quantity"`
	BoxSize      int                       `json:"boxSize,omitempty"`
	UnitPrice    decimal.Decimal           `json:"unitPrice"`
	MinQuantity  *int                      `json:"minQuantity"`
	IsValid      bool                      `json:"isValid"`
	Tiered       bool                      `json:"tiered"`
	LineTotal    decimal.Decimal           `json:"lineTotal"`
	Upsell       *pricing.UpsellSuggestion `json:"upsell,omitempty"`
}

// QuoteLine prices requested units of p. The quantity is rounded up to whole
// boxes and never drops below one.
func QuoteLine(p Product, variantID string, requested int) Quote {
	qty := max(pricing.NormalizeQuantity(p.BoxSize, requested), 1)
	tiers, base := p.PricingFor(variantID)
	decision := pricing.ResolvePrice(tiers, qty, base)
	if _, ok := p.Variant(variantID); !ok {
		variantID = ""
	}
	return Quote{
		ProductID:    p.ID,
		VariantID:    variantID,
		RequestedQty: requested,
		Quantity:     qty,
		BoxSize:      p.BoxSize,
		UnitPrice:    decision.Price,
		MinQuantity:  decision.MinQuantity,
		IsValid:      decision.IsValid,
		Tiered:       len(tiers) > 0,
		LineTotal:    decision.Price.Mul(decimal.NewFromInt(int64(qty))),
		Upsell:       pricing.SuggestUpsell(tiers, qty),
	}
}

// Outcome labels the quote for the pricing_decisions_total metric.
func (q Quote) Outcome() string {
	switch {
	case !q.Tiered:
		return "fallback"
	case !q.IsValid:
		return "below_minimum"
	default:
		return "valid"
	}
}
