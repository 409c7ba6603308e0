package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gmeppo/eppo-proposals/internal/pricing"
)

// DefaultLanguage is used when a product has no name in the requested language.
const DefaultLanguage = "es"

// Product is the normalized catalog record used across the service.
type Product struct {
	ID           string            `json:"id"`
	SKU          string            `json:"sku,omitempty"`
	Names        map[string]string `json:"names"`
	Category     string            `json:"category,omitempty"`
	BasePrice    decimal.Decimal   `json:"basePrice"`
	BoxSize      int               `json:"boxSize,omitempty"`
	Tiers        pricing.TierTable `json:"tiers,omitempty"`
	Variants     []Variant         `json:"variants,omitempty"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	LeadTimeDays int               `json:"leadTimeDays,omitempty"`
	Active       bool              `json:"active"`
}

// Variant is a sellable option of a product with its own optional pricing.
type Variant struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	SKU       string            `json:"sku,omitempty"`
	BasePrice *decimal.Decimal  `json:"basePrice,omitempty"`
	Tiers     pricing.TierTable `json:"tiers,omitempty"`
}

// Category groups products.
type Category struct {
	ID       string            `json:"id"`
	Names    map[string]string `json:"names"`
	ParentID string            `json:"parentId,omitempty"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Category string
	Query    string
}

// Name returns the product name in lang, falling back to the default
// language, then to any available name, then to the SKU.
func (p Product) Name(lang string) string {
	if name := localized(p.Names, lang); name != "" {
		return name
	}
	return p.SKU
}

// Variant finds a variant by id.
func (p Product) Variant(id string) (Variant, bool) {
	if id == "" {
		return Variant{}, false
	}
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// PricingFor returns the tier table and base price that apply to the given
// variant. Variant values win when present.
func (p Product) PricingFor(variantID string) (pricing.TierTable, decimal.Decimal) {
	tiers, base := p.Tiers, p.BasePrice
	v, ok := p.Variant(variantID)
	if !ok {
		return tiers, base
	}
	if len(v.Tiers) > 0 {
		tiers = v.Tiers
	}
	if v.BasePrice != nil {
		base = *v.BasePrice
	}
	return tiers, base
}

// Name returns the category name in lang with the same fallbacks as products.
func (c Category) Name(lang string) string {
	if name := localized(c.Names, lang); name != "" {
		return name
	}
	return c.ID
}

func localized(names map[string]string, lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if name := names[lang]; name != "" {
		return name
	}
	if name := names[DefaultLanguage]; name != "" {
		return name
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if names[k] != "" {
			return names[k]
		}
	}
	return ""
}

func (p Product) matches(filter ListFilter) bool {
	if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.SKU), q) {
		return true
	}
	for _, name := range p.Names {
		if strings.Contains(strings.ToLower(name), q) {
			return true
		}
	}
	return false
}
