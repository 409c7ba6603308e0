package cart_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gmeppo/eppo-proposals/internal/cart"
	"github.com/gmeppo/eppo-proposals/internal/catalog"
	"github.com/gmeppo/eppo-proposals/internal/pricing"
	"github.com/gmeppo/eppo-proposals/internal/stock"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeProducts map[string]catalog.Product

func (f fakeProducts) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

type fakeStock struct {
	levels map[string]int
	err    error
}

func (f fakeStock) Levels(_ context.Context, ids []string) (map[string]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]int{}
	for _, id := range ids {
		if n, ok := f.levels[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func catalogFixture() fakeProducts {
	return fakeProducts{
		"gel": {
			ID: "gel", SKU: "GEL-30", BoxSize: 24, BasePrice: dec("0.45"), Active: true,
			Names: map[string]string{"es": "Gel de ducha", "en": "Shower gel"},
			Tiers: pricing.TierTable{pricing.NewTier(100, 499, dec("0.40")), pricing.NewTier(500, -1, dec("0.35"))},
			Variants: []catalog.Variant{
				{ID: "lav", Name: "Lavanda", SKU: "GEL-30-LAV"},
				{ID: "xl", Name: "XL", Tiers: pricing.TierTable{pricing.NewTier(1, -1, dec("0.60"))}},
			},
		},
		"champu": {
			ID: "champu", SKU: "CH-30", BasePrice: dec("0.50"), Active: true, LeadTimeDays: 10,
			Names: map[string]string{"es": "Champú"},
		},
	}
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newService(t *testing.T, stockGW stock.Gateway) *cart.Service {
	t.Helper()
	svc, err := cart.NewService(cart.Config{
		Store:    cart.NewRedisStore(newRedis(t), time.Hour),
		Products: catalogFixture(),
		Stock:    stockGW,
		Delivery: stock.Policy{InStockDays: 3, BackorderDays: 30},
		TaxBps:   2100,
		Language: "es",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := cart.NewService(cart.Config{Products: catalogFixture()})
	require.Error(t, err)
	_, err = cart.NewService(cart.Config{Store: cart.NewRedisStore(newRedis(t), 0)})
	require.Error(t, err)
}

func TestAddItemNormalizesAndPrices(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", Quantity: 90})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	line := c.Items[0]
	require.NotEmpty(t, line.ID)
	require.Equal(t, 96, line.Quantity)
	require.False(t, line.IsValidQuantity)
	require.Equal(t, 100, *line.MinQuantity)
	require.True(t, line.Price.Equal(dec("0.40")))
	require.True(t, line.BasePrice.Equal(dec("0.45")))
	require.Equal(t, 24, line.BoxSize)
	require.Equal(t, "Gel de ducha", line.Name)
	require.False(t, c.Valid())

	c, err = svc.UpdateQuantity(ctx, "s1", line.ID, 100)
	require.NoError(t, err)
	require.Equal(t, 120, c.Items[0].Quantity)
	require.True(t, c.Items[0].IsValidQuantity)
	require.True(t, c.Valid())
}

func TestAddItemMergesSameProductAndVariant(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", Quantity: 120})
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", Quantity: 400, Notes: "urgente"})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, 528, c.Items[0].Quantity)
	require.True(t, c.Items[0].Price.Equal(dec("0.35")))
	require.Equal(t, "urgente", c.Items[0].Notes)

	c, err = svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", VariantID: "lav", Quantity: 24})
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	require.Equal(t, "Lavanda", c.Items[1].VariantName)
	require.Equal(t, "GEL-30-LAV", c.Items[1].SKU)
}

func TestAddItemRejectsBadInput(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "bad session!", cart.AddItemInput{ProductID: "gel"})
	require.ErrorIs(t, err, cart.ErrInvalidInput)

	_, err = svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: " "})
	require.ErrorIs(t, err, cart.ErrInvalidInput)

	_, err = svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", VariantID: "nope"})
	require.ErrorIs(t, err, cart.ErrInvalidInput)

	_, err = svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "missing"})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestUpdateQuantityClampsToOneUnit(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "champu", Quantity: 5})
	require.NoError(t, err)
	c, err = svc.UpdateQuantity(ctx, "s1", c.Items[0].ID, -3)
	require.NoError(t, err)
	require.Equal(t, 1, c.Items[0].Quantity)
	require.True(t, c.Items[0].IsValidQuantity)
	require.Nil(t, c.Items[0].MinQuantity)

	_, err = svc.UpdateQuantity(ctx, "s1", "unknown", 3)
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestSelectVariantRepricesAndMerges(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", Quantity: 120})
	require.NoError(t, err)
	plainID := c.Items[0].ID

	c, err = svc.SelectVariant(ctx, "s1", plainID, "xl")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, "xl", c.Items[0].VariantID)
	require.True(t, c.Items[0].Price.Equal(dec("0.60")))

	c, err = svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", Quantity: 24})
	require.NoError(t, err)
	require.Len(t, c.Items, 2)

	c, err = svc.SelectVariant(ctx, "s1", c.Items[1].ID, "xl")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, plainID, c.Items[0].ID)
	require.Equal(t, 144, c.Items[0].Quantity)

	_, err = svc.SelectVariant(ctx, "s1", plainID, "nope")
	require.ErrorIs(t, err, cart.ErrInvalidInput)
}

func TestUpdateLineAppliesAllOrNothing(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	variant, bad, qty, notes := "xl", "nope", 200, " urgente "

	c, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", Quantity: 24})
	require.NoError(t, err)
	id := c.Items[0].ID

	_, err = svc.UpdateLine(ctx, "s1", id, cart.LineUpdate{VariantID: &bad, Quantity: &qty, Notes: &notes})
	require.ErrorIs(t, err, cart.ErrInvalidInput)
	c, err = svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 24, c.Items[0].Quantity)
	require.Empty(t, c.Items[0].VariantID)
	require.Empty(t, c.Items[0].Notes)

	c, err = svc.UpdateLine(ctx, "s1", id, cart.LineUpdate{VariantID: &variant, Quantity: &qty, Notes: &notes})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, "xl", c.Items[0].VariantID)
	require.Equal(t, 216, c.Items[0].Quantity)
	require.Equal(t, "urgente", c.Items[0].Notes)
	require.True(t, c.Items[0].Price.Equal(dec("0.60")))

	_, err = svc.UpdateLine(ctx, "s1", id, cart.LineUpdate{})
	require.ErrorIs(t, err, cart.ErrInvalidInput)
}

func TestUpdateLineMergeKeepsQuantityOnSurvivor(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	variant, qty := "xl", 48

	c, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", VariantID: "xl", Quantity: 24})
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", Quantity: 24})
	require.NoError(t, err)
	survivor := c.Items[0].ID

	c, err = svc.UpdateLine(ctx, "s1", c.Items[1].ID, cart.LineUpdate{VariantID: &variant, Quantity: &qty})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, survivor, c.Items[0].ID)
	require.Equal(t, 48, c.Items[0].Quantity)
}

func TestNotesRemoveAndClear(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "champu", Quantity: 2})
	require.NoError(t, err)
	id := c.Items[0].ID

	c, err = svc.UpdateNotes(ctx, "s1", id, "  con logo  ")
	require.NoError(t, err)
	require.Equal(t, "con logo", c.Items[0].Notes)

	require.NoError(t, svc.SetEditing(ctx, "s1", "5f0c1d5e-8c43-4d0f-9d3c-3f6f7f0b7a10"))

	c, err = svc.RemoveItem(ctx, "s1", id)
	require.NoError(t, err)
	require.True(t, c.Empty())
	_, err = svc.RemoveItem(ctx, "s1", id)
	require.ErrorIs(t, err, cart.ErrNotFound)

	require.NoError(t, svc.Clear(ctx, "s1"))
	_, ok, err := svc.Editing(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReplaceKeepsLinesVerbatim(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	lines := []cart.LineItem{
		{ID: "line-1", ProductID: "gel", Quantity: 500, Price: dec("0.33"), IsValidQuantity: true},
		{ProductID: "champu", Quantity: 3, Price: dec("0.50"), IsValidQuantity: true},
	}
	c, err := svc.Replace(ctx, "s1", lines)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	require.Equal(t, "line-1", c.Items[0].ID)
	require.True(t, c.Items[0].Price.Equal(dec("0.33")))
	require.NotEmpty(t, c.Items[1].ID)

	loaded, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	require.Equal(t, "line-1", loaded.Items[0].ID)
	require.Equal(t, c.Items[1].ID, loaded.Items[1].ID)
	require.True(t, loaded.Items[0].Price.Equal(dec("0.33")))
	require.Equal(t, 500, loaded.Items[0].Quantity)
}

func TestViewAddsUpsellDeliveryAndTotals(t *testing.T) {
	svc := newService(t, fakeStock{levels: map[string]int{"gel": 100}})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", Quantity: 480})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "champu", Quantity: 10})
	require.NoError(t, err)

	view, err := svc.View(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	require.Equal(t, "EUR", view.Currency)
	require.True(t, view.Valid)

	gel := view.Lines[0]
	require.True(t, gel.LineTotal.Equal(dec("192")))
	require.NotNil(t, gel.Upsell)
	require.Equal(t, 20, gel.Upsell.ExtraUnits)
	require.NotNil(t, gel.Delivery)
	require.Equal(t, stock.StatusPartial, gel.Delivery.Status)
	require.Equal(t, 100, gel.Delivery.FromStock)
	require.Equal(t, 30, gel.Delivery.Days)

	champu := view.Lines[1]
	require.Nil(t, champu.Upsell)
	require.Equal(t, stock.StatusOnOrder, champu.Delivery.Status)
	require.Equal(t, 10, champu.Delivery.Days)

	require.True(t, view.Totals.Subtotal.Equal(dec("197")))
	require.True(t, view.Totals.Tax.Equal(dec("41.37")))
	require.True(t, view.Totals.Total.Equal(dec("238.37")))
}

func TestViewToleratesStockFailure(t *testing.T) {
	svc := newService(t, fakeStock{err: errors.New("down")})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "champu", Quantity: 1})
	require.NoError(t, err)
	view, err := svc.View(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, view.Lines[0].Delivery)
}

func TestViewReportsEditingProposal(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	view, err := svc.View(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	require.Empty(t, view.EditingProposalID)

	require.NoError(t, svc.SetEditing(ctx, "s1", "p-1"))
	view, err = svc.View(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "p-1", view.EditingProposalID)

	require.NoError(t, svc.ClearEditing(ctx, "s1"))
	_, ok, err := svc.Editing(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)
}
