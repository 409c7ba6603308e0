package cart

import (
	"errors"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gmeppo/eppo-proposals/internal/pricing"
	"github.com/gmeppo/eppo-proposals/internal/stock"
)

var (
	// ErrNotFound indicates the requested cart line could not be located.
	ErrNotFound = errors.New("cart item not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when concurrent writers keep racing on one cart.
	ErrConflict = errors.New("cart modified concurrently")
)

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidSession reports whether s can be used as a cart session id.
func ValidSession(s string) bool {
	return sessionPattern.MatchString(s)
}

// LineItem is one priced product or variant in a cart.
type LineItem struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"productId"`
	VariantID       string          `json:"variantId,omitempty"`
	VariantName     string          `json:"variantName,omitempty"`
	SKU             string          `json:"sku,omitempty"`
	Name            string          `json:"name"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	Quantity        int             `json:"quantity"`
	BoxSize         int             `json:"boxSize,omitempty"`
	BasePrice       decimal.Decimal `json:"basePrice"`
	Price           decimal.Decimal `json:"price"`
	MinQuantity     *int            `json:"minQuantity"`
	IsValidQuantity bool            `json:"isValidQuantity"`
	Notes           string          `json:"notes,omitempty"`
}

// Total is the line amount at the resolved unit price.
func (l LineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a buyer's working set of lines, keyed by session.
type Cart struct {
	Session   string     `json:"session"`
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// Valid reports whether every line meets its tier minimum.
func (c Cart) Valid() bool {
	for _, it := range c.Items {
		if !it.IsValidQuantity {
			return false
		}
	}
	return true
}

// Summary totals the cart.
func (c Cart) Summary(discount decimal.Decimal, taxBps int) pricing.Summary {
	items := make([]pricing.Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, pricing.Item{Qty: it.Quantity, UnitPrice: it.Price})
	}
	return pricing.Compute(items, discount, taxBps)
}

func (c *Cart) index(lineID string) int {
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOf(productID, variantID string, skip int) int {
	for i := range c.Items {
		if i != skip && c.Items[i].ProductID == productID && c.Items[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

// LineView is a cart line with its computed extras.
type LineView struct {
	LineItem
	LineTotal decimal.Decimal           `json:"lineTotal"`
	Upsell    *pricing.UpsellSuggestion `json:"upsell,omitempty"`
	Delivery  *stock.Delivery           `json:"delivery,omitempty"`
}

// View is the cart as presented to the buyer.
type View struct {
	Session           string          `json:"session"`
	Lines             []LineView      `json:"lines"`
	Totals            pricing.Summary `json:"totals"`
	Currency          string          `json:"currency"`
	Valid             bool            `json:"valid"`
	EditingProposalID string          `json:"editingProposalId,omitempty"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
