package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a FillStore backed by the given pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Insert records one execution.
func (s *FillStore) Insert(ctx context.Context, marketID, orderID string, fill domain.Fill) error {
	const query = `
		INSERT INTO fills (market_id, order_id, size, price_ticks, ts_ms)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		marketID, orderID, fill.Size, int(fill.Price), fill.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert fill for %s: %w", orderID, err)
	}
	return nil
}

// ListByOrder returns an order's fills in execution order.
func (s *FillStore) ListByOrder(ctx context.Context, orderID string) ([]domain.Fill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT size, price_ticks, ts_ms FROM fills
		 WHERE order_id = $1
		 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills for %s: %w", orderID, err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var priceTicks int
		if err := rows.Scan(&f.Size, &priceTicks, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Price = domain.Tick(priceTicks)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}
