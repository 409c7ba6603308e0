package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gmeppo/eppo-proposals/internal/catalog"
	"github.com/gmeppo/eppo-proposals/internal/common"
	"github.com/gmeppo/eppo-proposals/internal/pricing"
)

type fakeGateway struct {
	mu         sync.Mutex
	products   map[string]catalog.Product
	categories []catalog.Category
	calls      map[string]int
	err        error
}

func newFakeGateway() *fakeGateway {
	price := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return &fakeGateway{
		products: map[string]catalog.Product{
			"gel": {
				ID: "gel", SKU: "GEL-30", Category: "bano", BoxSize: 24, BasePrice: price("0.45"), Active: true,
				Names: map[string]string{"es": "Gel de ducha", "en": "Shower gel"},
				Tiers: pricing.TierTable{pricing.NewTier(100, 499, price("0.40")), pricing.NewTier(500, -1, price("0.35"))},
				Variants: []catalog.Variant{{ID: "lav", Name: "Lavanda"}},
			},
			"champu": {
				ID: "champu", SKU: "CH-30", Category: "bano", BasePrice: price("0.50"), Active: true,
				Names: map[string]string{"es": "Champú"},
			},
			"zapatillas": {
				ID: "zapatillas", SKU: "ZP-1", Category: "textil", BasePrice: price("1.10"), Active: true,
				Names: map[string]string{"es": "Zapatillas"},
			},
			"retirado": {
				ID: "retirado", Category: "bano", BasePrice: price("1"), Active: false,
				Names: map[string]string{"es": "Gel antiguo"},
			},
		},
		categories: []catalog.Category{{ID: "bano", Names: map[string]string{"es": "Baño", "en": "Bathroom"}}},
		calls:      map[string]int{},
	}
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++
	if f.err != nil {
		return catalog.Product{}, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeGateway) ListProducts(_ context.Context, category string) ([]catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	if f.err != nil {
		return nil, f.err
	}
	ids := []string{"champu", "gel", "retirado", "zapatillas"}
	out := []catalog.Product{}
	for _, id := range ids {
		p := f.products[id]
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeGateway) ListCategories(context.Context) ([]catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["categories"]++
	return f.categories, f.err
}

func newService(t *testing.T, gw catalog.Gateway) (*catalog.Service, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, err := catalog.NewService(catalog.ServiceConfig{
		Gateway: gw,
		Cache:   catalog.NewCache(client, time.Minute),
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc, mr
}

func TestNewServiceRequiresGateway(t *testing.T) {
	_, err := catalog.NewService(catalog.ServiceConfig{})
	require.Error(t, err)
}

func TestGetProductIsCached(t *testing.T) {
	gw := newFakeGateway()
	svc, mr := newService(t, gw)
	ctx := context.Background()

	first, err := svc.GetProduct(ctx, "gel")
	require.NoError(t, err)
	require.True(t, mr.Exists("catalog:product:gel"))

	second, err := svc.GetProduct(ctx, "gel")
	require.NoError(t, err)
	require.Equal(t, 1, gw.count("get"))
	require.Equal(t, first.ID, second.ID)
	require.True(t, first.BasePrice.Equal(second.BasePrice))
	require.Len(t, second.Tiers, 2)
	require.True(t, second.Tiers[1].Price.Decimal.Equal(decimal.RequireFromString("0.35")))

	require.NoError(t, svc.Invalidate(ctx, first))
	_, err = svc.GetProduct(ctx, "gel")
	require.NoError(t, err)
	require.Equal(t, 2, gw.count("get"))
}

func TestGetProductErrors(t *testing.T) {
	gw := newFakeGateway()
	svc, _ := newService(t, gw)

	_, err := svc.GetProduct(context.Background(), "missing")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)

	gw.err = errors.New("connection reset")
	_, err = svc.GetProduct(context.Background(), "other")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadGateway, appErr.HTTPStatus)

	_, err = svc.GetProduct(context.Background(), " ")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestListProductsFiltersAndCaches(t *testing.T) {
	gw := newFakeGateway()
	svc, _ := newService(t, gw)
	ctx := context.Background()

	bath, err := svc.ListProducts(ctx, catalog.ListFilter{Category: "bano"})
	require.NoError(t, err)
	require.Len(t, bath, 2)

	gels, err := svc.ListProducts(ctx, catalog.ListFilter{Category: "bano", Query: "shower"})
	require.NoError(t, err)
	require.Len(t, gels, 1)
	require.Equal(t, "gel", gels[0].ID)
	require.Equal(t, 1, gw.count("list"))

	all, err := svc.ListProducts(ctx, catalog.ListFilter{Query: "zp-"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, 2, gw.count("list"))
}

func TestListCategoriesCached(t *testing.T) {
	gw := newFakeGateway()
	svc, _ := newService(t, gw)
	for i := 0; i < 2; i++ {
		rows, err := svc.ListCategories(context.Background())
		require.NoError(t, err)
		require.Len(t, rows, 1)
	}
	require.Equal(t, 1, gw.count("categories"))
}

func TestQuote(t *testing.T) {
	svc, _ := newService(t, newFakeGateway())
	ctx := context.Background()

	q, err := svc.Quote(ctx, "gel", "lav", 460)
	require.NoError(t, err)
	require.Equal(t, 480, q.Quantity)
	require.Equal(t, "lav", q.VariantID)
	require.NotNil(t, q.Upsell)

	_, err = svc.Quote(ctx, "gel", "menta", 10)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestServiceWorksWithoutCache(t *testing.T) {
	gw := newFakeGateway()
	svc, err := catalog.NewService(catalog.ServiceConfig{Gateway: gw, Logger: zerolog.Nop()})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := svc.GetProduct(context.Background(), "gel")
		require.NoError(t, err)
	}
	require.Equal(t, 2, gw.count("get"))
}
