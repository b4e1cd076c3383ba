// Package history is an optional Postgres sink for observed price points.
// The JSON files under the data dir remain the source of truth; the sink
// only accumulates a queryable record, and failures here must never stop a
// reconciliation cycle.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

// Connect creates a pgx pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Sink writes price points.
type Sink struct {
	db *pgxpool.Pool
}

func NewSink(db *pgxpool.Pool) *Sink {
	return &Sink{db: db}
}

// EnsureSchema creates the price_points table if it does not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS price_points (
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT      NOT NULL,
    item_uuid   TEXT        NOT NULL,
    name        TEXT        NOT NULL,
    size        TEXT        NOT NULL,
    price       NUMERIC     NOT NULL,
    available   BOOLEAN     NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("ensure price_points schema: %w", err)
	}
	return nil
}

// RecordPrice inserts one observed price for the item.
func (s *Sink) RecordPrice(ctx context.Context, userID int64, item tracker.TrackedItem) error {
	price, err := tracker.ParsePrice(item.Price)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO price_points (user_id, item_uuid, name, size, price, available) VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, item.UUID, item.Name, item.Size, price.String(), item.Available)
	if err != nil {
		return fmt.Errorf("insert price point: %w", err)
	}
	return nil
}
