package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/gmeppo/eppo-proposals/internal/obs"
)

type category struct {
	ID     string
	NameES string
	NameEN string
}

type tier struct {
	Min   int    `json:"min_qty"`
	Max   *int   `json:"max_qty,omitempty"`
	Price string `json:"price"`
}

type variant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	BasePrice string `json:"base_price,omitempty"`
	Tiers     []tier `json:"price_tiers,omitempty"`
}

type product struct {
	ID        string
	SKU       string
	NameES    string
	NameEN    string
	Category  string
	BasePrice string
	BoxSize   int
	Tiers     []tier
	Variants  []variant
	LeadTime  int
	Stock     int
}

func upTo(n int) *int { return &n }

var categories = []category{
	{"bano", "Baño", "Bathroom"},
	{"habitacion", "Habitación", "Room"},
	{"limpieza", "Limpieza", "Cleaning"},
}

var products = []product{
	{
		ID: "gel-30", SKU: "GEL-30", NameES: "Gel de baño 30 ml", NameEN: "Shower gel 30 ml",
		Category: "bano", BasePrice: "0.45", BoxSize: 24, Stock: 2400,
		Tiers: []tier{{Min: 100, Max: upTo(499), Price: "0.40"}, {Min: 500, Price: "0.35"}},
		Variants: []variant{
			{ID: "lavanda", Name: "Lavanda", SKU: "GEL-30-LAV"},
			{ID: "xl", Name: "Formato 50 ml", SKU: "GEL-50", BasePrice: "0.65", Tiers: []tier{{Min: 1, Price: "0.60"}}},
		},
	},
	{
		ID: "champu-30", SKU: "CHA-30", NameES: "Champú 30 ml", NameEN: "Shampoo 30 ml",
		Category: "bano", BasePrice: "0.50", BoxSize: 24, Stock: 300, LeadTime: 10,
		Tiers: []tier{{Min: 240, Max: upTo(959), Price: "0.44"}, {Min: 960, Price: "0.39"}},
	},
	{
		ID: "jabon-20", SKU: "JAB-20", NameES: "Jabón 20 g", NameEN: "Soap bar 20 g",
		Category: "bano", BasePrice: "0.30", BoxSize: 50,
		Tiers: []tier{{Min: 500, Price: "0.25"}},
	},
	{
		ID: "zapatillas", SKU: "ZAP-01", NameES: "Zapatillas desechables", NameEN: "Disposable slippers",
		Category: "habitacion", BasePrice: "0.95", BoxSize: 100, Stock: 800, LeadTime: 21,
		Tiers: []tier{{Min: 200, Max: upTo(999), Price: "0.85"}, {Min: 1000, Price: "0.72"}},
	},
	{
		ID: "bolsa-lavanderia", SKU: "BOL-LAV", NameES: "Bolsa de lavandería", NameEN: "Laundry bag",
		Category: "habitacion", BasePrice: "0.18", BoxSize: 250,
	},
	{
		ID: "desinfectante-5l", SKU: "DES-5L", NameES: "Desinfectante 5 L", NameEN: "Disinfectant 5 L",
		Category: "limpieza", BasePrice: "12.90", Stock: 40,
		Tiers: []tier{{Min: 12, Price: "11.50"}},
	},
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), os.Getenv("OBS_LOG_LEVEL"))

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := seed(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	logger.Info().Int("categories", len(categories)).Int("products", len(products)).Msg("seeding completed")
}

func seed(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range categories {
			batch.Queue(`INSERT INTO categories (id, name_es, name_en) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name_es = EXCLUDED.name_es, name_en = EXCLUDED.name_en`, c.ID, c.NameES, c.NameEN)
		}
		for _, p := range products {
			tiers, err := json.Marshal(nonNil(p.Tiers))
			if err != nil {
				return err
			}
			variants, err := json.Marshal(nonNil(p.Variants))
			if err != nil {
				return err
			}
			batch.Queue(`INSERT INTO products
  (id, sku, name_es, name_en, category_id, base_price, box_size, price_tiers, variants, lead_time_days)
VALUES ($1, $2, $3, $4, $5, $6::text::numeric, nullif($7, 0), $8, $9, nullif($10, 0))
ON CONFLICT (id) DO UPDATE SET
  sku = EXCLUDED.sku, name_es = EXCLUDED.name_es, name_en = EXCLUDED.name_en,
  category_id = EXCLUDED.category_id, base_price = EXCLUDED.base_price,
  box_size = EXCLUDED.box_size, price_tiers = EXCLUDED.price_tiers,
  variants = EXCLUDED.variants, lead_time_days = EXCLUDED.lead_time_days,
  updated_at = now()`,
				p.ID, p.SKU, p.NameES, p.NameEN, p.Category, p.BasePrice, p.BoxSize, tiers, variants, p.LeadTime)
			batch.Queue(`INSERT INTO stock_levels (product_id, warehouse, available) VALUES ($1, 'main', $2)
ON CONFLICT (product_id, warehouse) DO UPDATE SET available = EXCLUDED.available`, p.ID, p.Stock)
			logger.Debug().Str("product_id", p.ID).Msg("queued product")
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
