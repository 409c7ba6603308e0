package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool used by PostgresStore.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sqlInsertEvent = `INSERT INTO proposal_events (topic, aggregate_id, payload)
VALUES ($1, $2::text::uuid, $3)
RETURNING id::text, occurred_at`

// PostgresStore appends events to the proposal_events table.
type PostgresStore struct {
	DB Querier
}

// Insert implements Store.
func (s PostgresStore) Insert(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	var (
		id         string
		occurredAt time.Time
	)
	if err := s.DB.QueryRow(ctx, sqlInsertEvent, topic, aggregateID.String(), payload).Scan(&id, &occurredAt); err != nil {
		return Event{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Event{}, fmt.Errorf("parse event id: %w", err)
	}
	return Event{ID: parsed, Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: occurredAt}, nil
}
