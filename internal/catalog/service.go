package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gmeppo/eppo-proposals/internal/common"
	"github.com/gmeppo/eppo-proposals/internal/obs"
)

// Service orchestrates catalog lookups, caching and quoting.
type Service struct {
	gateway  Gateway
	cache    *Cache
	logger   zerolog.Logger
	language string
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Gateway         Gateway
	Cache           *Cache
	Logger          zerolog.Logger
	DefaultLanguage string
}

// NewService validates cfg and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("catalog gateway is required")
	}
	lang := strings.ToLower(strings.TrimSpace(cfg.DefaultLanguage))
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Service{
		gateway:  cfg.Gateway,
		cache:    cfg.Cache,
		logger:   cfg.Logger.With().Str("component", "catalog").Logger(),
		language: lang,
	}, nil
}

// Language returns the fallback language for product names.
func (s *Service) Language() string {
	return s.language
}

// GetProduct returns a product, served from cache when possible.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, common.BadRequest("id", "product id is required", nil)
	}
	var cached Product
	if s.fromCache(ctx, productKey(id), &cached) {
		return cached, nil
	}
	p, err := s.gateway.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, common.NotFound("product not found", err)
		}
		return Product{}, common.NewAppError("CATALOG_UNAVAILABLE", "unable to load product", http.StatusBadGateway, err)
	}
	s.toCache(ctx, productKey(id), p)
	return p, nil
}

// ListProducts returns active products matching filter.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	var all []Product
	if !s.fromCache(ctx, listKey(filter.Category), &all) {
		rows, err := s.gateway.ListProducts(ctx, filter.Category)
		if err != nil {
			return nil, common.NewAppError("CATALOG_UNAVAILABLE", "unable to list products", http.StatusBadGateway, err)
		}
		all = rows
		s.toCache(ctx, listKey(filter.Category), all)
	}
	out := make([]Product, 0, len(all))
	for _, p := range all {
		if p.Active && p.matches(filter) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListCategories returns every category.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	var cached []Category
	if s.fromCache(ctx, categoriesKey, &cached) {
		return cached, nil
	}
	rows, err := s.gateway.ListCategories(ctx)
	if err != nil {
		return nil, common.NewAppError("CATALOG_UNAVAILABLE", "unable to list categories", http.StatusBadGateway, err)
	}
	s.toCache(ctx, categoriesKey, rows)
	return rows, nil
}

// Quote prices qty units of a product or one of its variants.
func (s *Service) Quote(ctx context.Context, productID, variantID string, qty int) (Quote, error) {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return Quote{}, err
	}
	variantID = strings.TrimSpace(variantID)
	if variantID != "" {
		if _, ok := p.Variant(variantID); !ok {
			return Quote{}, common.BadRequest("variant", "unknown variant", nil)
		}
	}
	q := QuoteLine(p, variantID, qty)
	obs.RecordPricingDecision(q.Outcome())
	if q.Upsell != nil {
		obs.RecordUpsell()
	}
	return q, nil
}

// Invalidate drops cached entries for a product and the listings.
func (s *Service) Invalidate(ctx context.Context, p Product) error {
	return s.cache.Delete(ctx, productKey(p.ID), listKey(""), listKey(p.Category), categoriesKey)
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.GetJSON(ctx, key, dst)
	switch {
	case err != nil:
		obs.RecordCatalogCache("error")
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		return false
	case ok:
		obs.RecordCatalogCache("hit")
		return true
	default:
		obs.RecordCatalogCache("miss")
		return false
	}
}

func (s *Service) toCache(ctx context.Context, key string, v any) {
	if err := s.cache.SetJSON(ctx, key, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}
