package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists proposals.
type Repository interface {
	Create(ctx context.Context, p Proposal) (Proposal, error)
	Update(ctx context.Context, p Proposal) (Proposal, error)
	Get(ctx context.Context, id uuid.UUID) (Proposal, error)
	List(ctx context.Context, limit, offset int) ([]Proposal, int, error)
}

// Querier is the subset of pgxpool.Pool used by PostgresRepository.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	sqlCreate = `INSERT INTO proposals AS p
  (id, session, client, lines, discount, tax_bps, currency, totals, history)
VALUES ($1::text::uuid, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9)
RETURNING to_jsonb(p)`
	sqlUpdate = `UPDATE proposals AS p
SET client = $2, lines = $3, discount = $4::text::numeric, tax_bps = $5,
    currency = $6, totals = $7, history = $8, updated_at = now()
WHERE p.id::text = $1
RETURNING to_jsonb(p)`
	sqlGet  = `SELECT to_jsonb(p) FROM proposals p WHERE p.id::text = $1`
	sqlList = `SELECT to_jsonb(p), count(*) OVER () FROM proposals p
ORDER BY p.updated_at DESC, p.id
LIMIT $1 OFFSET $2`
)

// PostgresRepository stores proposals in the proposals table with lines,
// totals and history as jsonb.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository constructs a repository over db.
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// decodeRecord reads a proposals row as produced by to_jsonb.
func decodeRecord(data []byte) (Proposal, error) {
	var row struct {
		ID        uuid.UUID       `json:"id"`
		Session   string          `json:"session"`
		Client    json.RawMessage `json:"client"`
		Lines     json.RawMessage `json:"lines"`
		Discount  json.RawMessage `json:"discount"`
		TaxBps    int             `json:"tax_bps"`
		Currency  string          `json:"currency"`
		Totals    json.RawMessage `json:"totals"`
		History   json.RawMessage `json:"history"`
		CreatedAt json.RawMessage `json:"created_at"`
		UpdatedAt json.RawMessage `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &row); err != nil {
		return Proposal{}, fmt.Errorf("decode proposal row: %w", err)
	}
	p := Proposal{ID: row.ID, Session: row.Session, TaxBps: row.TaxBps, Currency: row.Currency}
	fields := []struct {
		raw json.RawMessage
		dst any
	}{
		{row.Client, &p.Client},
		{row.Lines, &p.Lines},
		{row.Discount, &p.Discount},
		{row.Totals, &p.Totals},
		{row.History, &p.History},
		{row.CreatedAt, &p.CreatedAt},
		{row.UpdatedAt, &p.UpdatedAt},
	}
	for _, f := range fields {
		if len(f.raw) == 0 || string(f.raw) == "null" {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return Proposal{}, fmt.Errorf("decode proposal row: %w", err)
		}
	}
	return p, nil
}

func encodeArgs(p Proposal) ([]any, error) {
	client, err := json.Marshal(p.Client)
	if err != nil {
		return nil, err
	}
	lines, err := json.Marshal(p.Lines)
	if err != nil {
		return nil, err
	}
	totals, err := json.Marshal(p.Totals)
	if err != nil {
		return nil, err
	}
	history := p.History
	if history == nil {
		history = []ChangeEntry{}
	}
	hist, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}
	return []any{client, lines, p.Discount.String(), p.TaxBps, p.Currency, totals, hist}, nil
}

// Create inserts p and returns the stored row.
func (r *PostgresRepository) Create(ctx context.Context, p Proposal) (Proposal, error) {
	args, err := encodeArgs(p)
	if err != nil {
		return Proposal{}, fmt.Errorf("encode proposal: %w", err)
	}
	all := append([]any{p.ID.String(), p.Session}, args...)
	var data []byte
	if err := r.db.QueryRow(ctx, sqlCreate, all...).Scan(&data); err != nil {
		return Proposal{}, fmt.Errorf("insert proposal: %w", err)
	}
	return decodeRecord(data)
}

// Update overwrites the mutable columns of p.
func (r *PostgresRepository) Update(ctx context.Context, p Proposal) (Proposal, error) {
	args, err := encodeArgs(p)
	if err != nil {
		return Proposal{}, fmt.Errorf("encode proposal: %w", err)
	}
	var data []byte
	err = r.db.QueryRow(ctx, sqlUpdate, append([]any{p.ID.String()}, args...)...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("update proposal: %w", err)
	}
	return decodeRecord(data)
}

// Get loads a proposal by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Proposal, error) {
	var data []byte
	err := r.db.QueryRow(ctx, sqlGet, id.String()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	return decodeRecord(data)
}

type listRow struct {
	Doc   []byte
	Total int64
}

// List returns a page of proposals, most recently updated first, and the
// total count.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]Proposal, int, error) {
	rows, err := r.db.Query(ctx, sqlList, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list proposals: %w", err)
	}
	page, err := pgx.CollectRows(rows, pgx.RowToStructByPos[listRow])
	if err != nil {
		return nil, 0, fmt.Errorf("list proposals: %w", err)
	}
	out := make([]Proposal, 0, len(page))
	total := 0
	for _, row := range page {
		p, err := decodeRecord(row.Doc)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
		total = int(row.Total)
	}
	return out, total, nil
}
