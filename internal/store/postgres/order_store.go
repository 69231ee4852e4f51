package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates an OrderStore backed by the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create upserts one order row. Upsert rather than insert: the journal writes
// the order the first time it sees a fill for it, and fills can arrive more
// than once for the same order.
func (s *OrderStore) Create(ctx context.Context, marketID string, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, market_id, api_order_id, outcome, direction,
			price_ticks, size, filled_size, avg_fill_price,
			status, is_quote, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			api_order_id   = EXCLUDED.api_order_id,
			filled_size    = EXCLUDED.filled_size,
			avg_fill_price = EXCLUDED.avg_fill_price,
			status         = EXCLUDED.status,
			updated_at     = NOW()`

	_, err := s.pool.Exec(ctx, query,
		o.ID, marketID, o.APIOrderID, string(o.Outcome), string(o.Direction),
		int(o.Price), o.Size, o.FilledSize, o.AvgFillPrice,
		string(o.Status), o.Quote, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

const orderSelectCols = `id, api_order_id, outcome, direction,
	price_ticks, size, filled_size, avg_fill_price, status, is_quote, created_at`

func scanOrder(scanner interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var o domain.Order
	var outcome, direction, status string
	var apiOrderID *string
	var priceTicks int

	err := scanner.Scan(
		&o.ID, &apiOrderID, &outcome, &direction,
		&priceTicks, &o.Size, &o.FilledSize, &o.AvgFillPrice,
		&status, &o.Quote, &o.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Outcome = domain.Outcome(outcome)
	o.Direction = domain.Direction(direction)
	o.Status = domain.OrderStatus(status)
	o.Price = domain.Tick(priceTicks)
	if apiOrderID != nil {
		o.APIOrderID = *apiOrderID
	}
	return o, nil
}

// ListByMarket returns the most recent orders for one market window.
func (s *OrderStore) ListByMarket(ctx context.Context, marketID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE market_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by market: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID retrieves a single order.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}
