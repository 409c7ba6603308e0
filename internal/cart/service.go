package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gmeppo/eppo-proposals/internal/catalog"
	"github.com/gmeppo/eppo-proposals/internal/obs"
	"github.com/gmeppo/eppo-proposals/internal/pricing"
	"github.com/gmeppo/eppo-proposals/internal/stock"
)

// ProductSource resolves catalog products for pricing.
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	store    Store
	products ProductSource
	stock    stock.Gateway
	policy   stock.Policy
	taxBps   int
	currency string
	language string
	logger   zerolog.Logger
}

// Config groups Service dependencies.
type Config struct {
	Store    Store
	Products ProductSource
	// Stock is optional; without it views carry no delivery estimates.
	Stock    stock.Gateway
	Delivery stock.Policy
	TaxBps   int
	Currency string
	Language string
	Logger   zerolog.Logger
}

// NewService validates cfg and constructs a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("cart store is required")
	}
	if cfg.Products == nil {
		return nil, errors.New("cart product source is required")
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "EUR"
	}
	language := cfg.Language
	if language == "" {
		language = catalog.DefaultLanguage
	}
	return &Service{
		store:    cfg.Store,
		products: cfg.Products,
		stock:    cfg.Stock,
		policy:   cfg.Delivery,
		taxBps:   cfg.TaxBps,
		currency: currency,
		language: language,
		logger:   cfg.Logger.With().Str("component", "cart").Logger(),
	}, nil
}

// AddItemInput describes a line to add.
type AddItemInput struct {
	ProductID string
	VariantID string
	Quantity  int
	Notes     string
}

// Get returns the stored cart.
func (s *Service) Get(ctx context.Context, session string) (Cart, error) {
	if err := checkSession(session); err != nil {
		return Cart{}, err
	}
	return s.store.Load(ctx, session)
}

// AddItem adds units of a product or variant. An existing line for the same
// product and variant absorbs the units instead of a new line being created.
func (s *Service) AddItem(ctx context.Context, session string, in AddItemInput) (Cart, error) {
	if err := checkSession(session); err != nil {
		return Cart{}, err
	}
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.VariantID = strings.TrimSpace(in.VariantID)
	if in.ProductID == "" {
		return Cart{}, fmt.Errorf("%w: productId is required", ErrInvalidInput)
	}
	p, err := s.products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return Cart{}, err
	}
	if in.VariantID != "" {
		if _, ok := p.Variant(in.VariantID); !ok {
			return Cart{}, fmt.Errorf("%w: unknown variant %q", ErrInvalidInput, in.VariantID)
		}
	}
	return s.store.Update(ctx, session, func(c *Cart) error {
		if i := c.indexOf(p.ID, in.VariantID, -1); i >= 0 {
			line := &c.Items[i]
			line.Quantity += max(in.Quantity, 1)
			if in.Notes != "" {
				line.Notes = in.Notes
			}
			s.reprice(line, p)
			return nil
		}
		line := LineItem{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			VariantID: in.VariantID,
			Quantity:  in.Quantity,
			Notes:     strings.TrimSpace(in.Notes),
		}
		s.reprice(&line, p)
		c.Items = append(c.Items, line)
		return nil
	})
}

// UpdateQuantity sets the quantity of a line and re-prices it.
func (s *Service) UpdateQuantity(ctx context.Context, session, lineID string, qty int) (Cart, error) {
	return s.mutateLine(ctx, session, lineID, func(c *Cart, i int, p catalog.Product) error {
		c.Items[i].Quantity = qty
		s.reprice(&c.Items[i], p)
		return nil
	})
}

// SelectVariant switches a line to another variant of the same product.
// Selecting a variant that already has its own line merges the two.
func (s *Service) SelectVariant(ctx context.Context, session, lineID, variantID string) (Cart, error) {
	variantID = strings.TrimSpace(variantID)
	return s.mutateLine(ctx, session, lineID, func(c *Cart, i int, p catalog.Product) error {
		_, err := s.switchVariant(c, i, p, variantID)
		return err
	})
}

// LineUpdate lists the fields of a line to change. Nil fields are left as is.
type LineUpdate struct {
	VariantID *string
	Quantity  *int
	Notes     *string
}

// UpdateLine applies the variant, then the quantity, then the notes in a
// single store write. When the variant switch merges the line into another
// one, quantity and notes land on the surviving line.
func (s *Service) UpdateLine(ctx context.Context, session, lineID string, in LineUpdate) (Cart, error) {
	if in.VariantID == nil && in.Quantity == nil && in.Notes == nil {
		return Cart{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	return s.mutateLine(ctx, session, lineID, func(c *Cart, i int, p catalog.Product) error {
		if in.VariantID != nil {
			var err error
			if i, err = s.switchVariant(c, i, p, strings.TrimSpace(*in.VariantID)); err != nil {
				return err
			}
		}
		if in.Quantity != nil {
			c.Items[i].Quantity = *in.Quantity
			s.reprice(&c.Items[i], p)
		}
		if in.Notes != nil {
			c.Items[i].Notes = strings.TrimSpace(*in.Notes)
		}
		return nil
	})
}

// switchVariant moves line i to variantID and returns the index of the line
// that now holds its units.
func (s *Service) switchVariant(c *Cart, i int, p catalog.Product, variantID string) (int, error) {
	if variantID != "" {
		if _, ok := p.Variant(variantID); !ok {
			return i, fmt.Errorf("%w: unknown variant %q", ErrInvalidInput, variantID)
		}
	}
	if j := c.indexOf(p.ID, variantID, i); j >= 0 {
		c.Items[j].Quantity += c.Items[i].Quantity
		s.reprice(&c.Items[j], p)
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		if j > i {
			j--
		}
		return j, nil
	}
	c.Items[i].VariantID = variantID
	s.reprice(&c.Items[i], p)
	return i, nil
}

// UpdateNotes replaces the free-text notes on a line.
func (s *Service) UpdateNotes(ctx context.Context, session, lineID, notes string) (Cart, error) {
	if err := checkSession(session); err != nil {
		return Cart{}, err
	}
	return s.store.Update(ctx, session, func(c *Cart) error {
		i := c.index(lineID)
		if i < 0 {
			return ErrNotFound
		}
		c.Items[i].Notes = strings.TrimSpace(notes)
		return nil
	})
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, session, lineID string) (Cart, error) {
	if err := checkSession(session); err != nil {
		return Cart{}, err
	}
	return s.store.Update(ctx, session, func(c *Cart) error {
		i := c.index(lineID)
		if i < 0 {
			return ErrNotFound
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	})
}

// Clear empties the cart and ends any proposal edit.
func (s *Service) Clear(ctx context.Context, session string) error {
	if err := checkSession(session); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, session); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return s.store.ClearEditing(ctx, session)
}

// Replace swaps the cart contents for items, keeping their ids and prices as
// given. Used when a saved proposal is reopened.
func (s *Service) Replace(ctx context.Context, session string, items []LineItem) (Cart, error) {
	if err := checkSession(session); err != nil {
		return Cart{}, err
	}
	copied := make([]LineItem, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		copied = append(copied, it)
	}
	return s.store.Update(ctx, session, func(c *Cart) error {
		c.Items = copied
		return nil
	})
}

// View returns the cart with line totals, upsell suggestions, delivery
// estimates and cart totals. Catalog or stock failures degrade the extras
// rather than failing the view.
func (s *Service) View(ctx context.Context, session string) (View, error) {
	c, err := s.Get(ctx, session)
	if err != nil {
		return View{}, err
	}
	editing, _, err := s.store.Editing(ctx, session)
	if err != nil {
		s.logger.Warn().Err(err).Str("session", session).Msg("load editing proposal")
	}

	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	levels := s.levels(ctx, ids)
	products := map[string]catalog.Product{}

	lines := make([]LineView, 0, len(c.Items))
	for _, it := range c.Items {
		lv := LineView{LineItem: it, LineTotal: it.Total()}
		p, ok := products[it.ProductID]
		if !ok {
			if p, err = s.products.GetProduct(ctx, it.ProductID); err != nil {
				s.logger.Warn().Err(err).Str("product_id", it.ProductID).Msg("load product for cart view")
			} else {
				products[it.ProductID] = p
				ok = true
			}
		}
		if ok {
			tiers, _ := p.PricingFor(it.VariantID)
			lv.Upsell = pricing.SuggestUpsell(tiers, it.Quantity)
			if lv.Upsell != nil {
				obs.RecordUpsell()
			}
		}
		if levels != nil {
			policy := s.policy
			policy.LeadTimeDays = p.LeadTimeDays
			d := stock.Estimate(levels[it.ProductID], it.Quantity, policy)
			lv.Delivery = &d
		}
		lines = append(lines, lv)
	}

	return View{
		Session:           c.Session,
		Lines:             lines,
		Totals:            c.Summary(decimal.Zero, s.taxBps),
		Currency:          s.currency,
		Valid:             c.Valid(),
		EditingProposalID: editing,
		UpdatedAt:         c.UpdatedAt,
	}, nil
}

// SetEditing marks the session as editing proposalID.
func (s *Service) SetEditing(ctx context.Context, session, proposalID string) error {
	if err := checkSession(session); err != nil {
		return err
	}
	return s.store.SetEditing(ctx, session, proposalID)
}

// Editing returns the proposal the session is editing.
func (s *Service) Editing(ctx context.Context, session string) (string, bool, error) {
	if err := checkSession(session); err != nil {
		return "", false, err
	}
	return s.store.Editing(ctx, session)
}

// ClearEditing ends the current proposal edit without touching the cart.
func (s *Service) ClearEditing(ctx context.Context, session string) error {
	if err := checkSession(session); err != nil {
		return err
	}
	return s.store.ClearEditing(ctx, session)
}

// TaxBps returns the tax rate applied to cart totals, in basis points.
func (s *Service) TaxBps() int { return s.taxBps }

// Currency returns the ISO code carts are priced in.
func (s *Service) Currency() string { return s.currency }

func (s *Service) mutateLine(ctx context.Context, session, lineID string, fn func(*Cart, int, catalog.Product) error) (Cart, error) {
	if err := checkSession(session); err != nil {
		return Cart{}, err
	}
	current, err := s.store.Load(ctx, session)
	if err != nil {
		return Cart{}, err
	}
	i := current.index(lineID)
	if i < 0 {
		return Cart{}, ErrNotFound
	}
	p, err := s.products.GetProduct(ctx, current.Items[i].ProductID)
	if err != nil {
		return Cart{}, err
	}
	return s.store.Update(ctx, session, func(c *Cart) error {
		i := c.index(lineID)
		if i < 0 {
			return ErrNotFound
		}
		return fn(c, i, p)
	})
}

// reprice recomputes the line from the product: box rounding, the floor of
// one unit, and the tier price for the line's variant.
func (s *Service) reprice(line *LineItem, p catalog.Product) {
	q := catalog.QuoteLine(p, line.VariantID, line.Quantity)
	obs.RecordPricingDecision(q.Outcome())

	_, base := p.PricingFor(line.VariantID)
	line.Quantity = q.Quantity
	line.BoxSize = p.BoxSize
	line.BasePrice = base
	line.Price = q.UnitPrice
	line.MinQuantity = q.MinQuantity
	line.IsValidQuantity = q.IsValid
	line.Name = p.Name(s.language)
	line.SKU = p.SKU
	line.ImageURL = p.ImageURL
	line.VariantName = ""
	if v, ok := p.Variant(line.VariantID); ok {
		line.VariantName = v.Name
		if v.SKU != "" {
			line.SKU = v.SKU
		}
	}
}

func (s *Service) levels(ctx context.Context, ids []string) map[string]int {
	if s.stock == nil || len(ids) == 0 {
		return nil
	}
	levels, err := s.stock.Levels(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load stock levels")
		return nil
	}
	return levels
}

func checkSession(session string) error {
	if !ValidSession(session) {
		return fmt.Errorf("%w: invalid session id", ErrInvalidInput)
	}
	return nil
}
