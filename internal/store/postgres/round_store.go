package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a RoundStore backed by the given pool.
func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

// Insert records one closed window. Re-running a rollover for the same market
// overwrites the row; the later write carries the final position.
func (s *RoundStore) Insert(ctx context.Context, r domain.Round) error {
	const query = `
		INSERT INTO rounds (
			market_id, slug, expiry,
			qty_yes, qty_no, cost_yes, cost_no,
			realized_usd, halted, halt_reason, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (market_id) DO UPDATE SET
			qty_yes      = EXCLUDED.qty_yes,
			qty_no       = EXCLUDED.qty_no,
			cost_yes     = EXCLUDED.cost_yes,
			cost_no      = EXCLUDED.cost_no,
			realized_usd = EXCLUDED.realized_usd,
			halted       = EXCLUDED.halted,
			halt_reason  = EXCLUDED.halt_reason,
			closed_at    = EXCLUDED.closed_at`

	_, err := s.pool.Exec(ctx, query,
		r.MarketID, r.Slug, r.Expiry,
		r.Qy, r.Qn, r.Cy, r.Cn,
		r.RealizedUSD, r.Halted, r.HaltReason, r.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert round %s: %w", r.MarketID, err)
	}
	return nil
}

// ListRecent returns the latest closed windows, newest first.
func (s *RoundStore) ListRecent(ctx context.Context, limit int) ([]domain.Round, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, slug, expiry,
		        qty_yes, qty_no, cost_yes, cost_no,
		        realized_usd, halted, halt_reason, closed_at
		 FROM rounds
		 ORDER BY closed_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		var r domain.Round
		if err := rows.Scan(
			&r.MarketID, &r.Slug, &r.Expiry,
			&r.Qy, &r.Qn, &r.Cy, &r.Cn,
			&r.RealizedUSD, &r.Halted, &r.HaltReason, &r.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}
