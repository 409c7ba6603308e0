package proposal

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gmeppo/eppo-proposals/internal/cart"
	"github.com/gmeppo/eppo-proposals/internal/pricing"
)

var (
	// ErrNotFound indicates no proposal exists with the given id.
	ErrNotFound = errors.New("proposal not found")
	// ErrEmptyCart is returned when saving a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidLines is returned when a line is below its tier minimum.
	ErrInvalidLines = errors.New("cart has lines below their minimum quantity")
)

// Client identifies who the proposal is addressed to.
type Client struct {
	Name    string `json:"name" validate:"required,max=200"`
	Company string `json:"company,omitempty" validate:"max=200"`
	Email   string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone   string `json:"phone,omitempty" validate:"max=50"`
	Notes   string `json:"notes,omitempty" validate:"max=4000"`
}

// Proposal is a saved snapshot of a cart addressed to a client.
type Proposal struct {
	ID        uuid.UUID       `json:"id"`
	Session   string          `json:"session"`
	Client    Client          `json:"client"`
	Lines     []cart.LineItem `json:"lines"`
	Discount  decimal.Decimal `json:"discount"`
	TaxBps    int             `json:"taxBps"`
	Currency  string          `json:"currency"`
	Totals    pricing.Summary `json:"totals"`
	History   []ChangeEntry   `json:"history"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Recalculate refreshes Totals from the lines, discount and tax rate.
func (p *Proposal) Recalculate() {
	items := make([]pricing.Item, 0, len(p.Lines))
	for _, l := range p.Lines {
		items = append(items, pricing.Item{Qty: l.Quantity, UnitPrice: l.Price})
	}
	p.Totals = pricing.Compute(items, p.Discount, p.TaxBps)
}

// Units is the number of units across all lines.
func (p Proposal) Units() int {
	n := 0
	for _, l := range p.Lines {
		n += l.Quantity
	}
	return n
}
