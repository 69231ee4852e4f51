package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// OrderClient is the venue order API surface the live adapter needs. The
// Polymarket CLOB client implements it.
type OrderClient interface {
	SubmitOrder(ctx context.Context, o domain.Order) (string, error)
	CancelOrder(ctx context.Context, apiOrderID string) error
	CancelAll(ctx context.Context) error
}

// Live submits orders through the venue order API. Fills are NOT produced
// here; they arrive asynchronously on the user event feed and are correlated
// by venue order id.
type Live struct {
	client OrderClient
	logger *slog.Logger
}

// NewLive creates a live execution adapter.
func NewLive(client OrderClient, logger *slog.Logger) *Live {
	return &Live{
		client: client,
		logger: logger.With(slog.String("component", "live_executor")),
	}
}

// Submit sends the order to the venue and returns its venue id.
func (l *Live) Submit(ctx context.Context, o domain.Order, _ domain.MarketSnapshot) (string, error) {
	apiID, err := l.client.SubmitOrder(ctx, o)
	if err != nil {
		return "", fmt.Errorf("live: submit %s: %w", o.ID, err)
	}
	return apiID, nil
}

// Cancel cancels the order at the venue. Orders never submitted live report
// domain.ErrNotFound.
func (l *Live) Cancel(ctx context.Context, o domain.Order) error {
	if o.APIOrderID == "" {
		return fmt.Errorf("live: cancel %s: no venue id: %w", o.ID, domain.ErrNotFound)
	}
	if err := l.client.CancelOrder(ctx, o.APIOrderID); err != nil {
		return fmt.Errorf("live: cancel %s: %w", o.ID, err)
	}
	return nil
}

// CancelAll sweeps every resting order at the venue in one call.
func (l *Live) CancelAll(ctx context.Context) error {
	if err := l.client.CancelAll(ctx); err != nil {
		return fmt.Errorf("live: cancel all: %w", err)
	}
	return nil
}
