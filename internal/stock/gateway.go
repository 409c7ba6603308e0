package stock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Gateway reports available units per product.
type Gateway interface {
	Levels(ctx context.Context, productIDs []string) (map[string]int, error)
}

// Querier is the subset of pgxpool.Pool used by PostgresGateway.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const sqlLevels = `SELECT product_id::text, coalesce(sum(available), 0)::bigint
FROM stock_levels
WHERE product_id::text = ANY($1)
GROUP BY product_id`

// PostgresGateway reads the stock_levels table. Products without rows are
// absent from the result and count as zero available.
type PostgresGateway struct {
	db Querier
}

// NewPostgresGateway constructs a gateway over db.
func NewPostgresGateway(db Querier) *PostgresGateway {
	return &PostgresGateway{db: db}
}

type levelRow struct {
	ProductID string
	Available int64
}

// Levels returns available units keyed by product id.
func (g *PostgresGateway) Levels(ctx context.Context, productIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := g.db.Query(ctx, sqlLevels, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	levels, err := pgx.CollectRows(rows, pgx.RowToStructByPos[levelRow])
	if err != nil {
		return nil, fmt.Errorf("scan stock levels: %w", err)
	}
	for _, l := range levels {
		out[l.ProductID] = int(l.Available)
	}
	return out, nil
}
