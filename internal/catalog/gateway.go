package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrProductNotFound indicates the catalog has no product with the given id.
var ErrProductNotFound = errors.New("product not found")

// Gateway reads catalog data from the backing store.
type Gateway interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context, category string) ([]Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Querier is the subset of pgxpool.Pool used by the Postgres gateways.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Rows are read as whole JSON documents so column naming differences in the
// hosted schema are absorbed by ParseProduct.
const (
	sqlGetProduct     = `SELECT to_jsonb(p) FROM products p WHERE p.id::text = $1`
	sqlListProducts   = `SELECT to_jsonb(p) FROM products p
WHERE $1 = '' OR coalesce(to_jsonb(p)->>'category_id', to_jsonb(p)->>'categoria', to_jsonb(p)->>'category', '') = $1
ORDER BY p.id`
	sqlListCategories = `SELECT to_jsonb(c) FROM categories c ORDER BY c.id`
)

// PostgresGateway reads products and categories from the Supabase Postgres database.
type PostgresGateway struct {
	db     Querier
	logger zerolog.Logger
}

// NewPostgresGateway constructs a gateway over db.
func NewPostgresGateway(db Querier, logger zerolog.Logger) *PostgresGateway {
	return &PostgresGateway{db: db, logger: logger.With().Str("component", "catalog_gateway").Logger()}
}

// GetProduct loads a single product.
func (g *PostgresGateway) GetProduct(ctx context.Context, id string) (Product, error) {
	var data []byte
	if err := g.db.QueryRow(ctx, sqlGetProduct, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("query product: %w", err)
	}
	raw, err := DecodeRow(data)
	if err != nil {
		return Product{}, err
	}
	return ParseProduct(raw)
}

// ListProducts loads every product, optionally restricted to a category.
// Rows that cannot be parsed are skipped and logged.
func (g *PostgresGateway) ListProducts(ctx context.Context, category string) ([]Product, error) {
	docs, err := g.documents(ctx, sqlListProducts, category)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products := make([]Product, 0, len(docs))
	for _, raw := range docs {
		p, err := ParseProduct(raw)
		if err != nil {
			g.logger.Warn().Err(err).Msg("skip product row")
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// ListCategories loads every category.
func (g *PostgresGateway) ListCategories(ctx context.Context) ([]Category, error) {
	docs, err := g.documents(ctx, sqlListCategories)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories := make([]Category, 0, len(docs))
	for _, raw := range docs {
		c, err := ParseCategory(raw)
		if err != nil {
			g.logger.Warn().Err(err).Msg("skip category row")
			continue
		}
		categories = append(categories, c)
	}
	return categories, nil
}

func (g *PostgresGateway) documents(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := g.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	blobs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, err
	}
	docs := make([]map[string]any, 0, len(blobs))
	for _, data := range blobs {
		raw, err := DecodeRow(data)
		if err != nil {
			g.logger.Warn().Err(err).Msg("skip undecodable row")
			continue
		}
		docs = append(docs, raw)
	}
	return docs, nil
}
