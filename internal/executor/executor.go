// Package executor turns trade signals and reconciliation actions into venue
// order operations through a pluggable adapter, simulated or live.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/orders"
	"github.com/arbalest-labs/ticktrader/internal/position"
)

// Adapter submits and cancels orders at the venue. Submit returns the
// venue-assigned order id when the venue provides one (empty in simulation).
// Cancel returns domain.ErrNotFound when the venue no longer knows the order.
// CancelAll pulls every resting order in one venue call; halt and rollover
// teardown use it so the book is cleared even for orders the ledger lost
// track of.
type Adapter interface {
	Submit(ctx context.Context, o domain.Order, ms domain.MarketSnapshot) (string, error)
	Cancel(ctx context.Context, o domain.Order) error
	CancelAll(ctx context.Context) error
}

// Executor owns order submission. It registers every order in the order
// ledger before handing it to the adapter and keeps the position ledger's
// pending flags consistent with the set of live orders per side.
type Executor struct {
	adapter Adapter
	orders  *orders.Ledger
	logger  *slog.Logger

	mu        sync.Mutex
	positions *position.Ledger
}

// New creates an executor.
func New(adapter Adapter, ol *orders.Ledger, pl *position.Ledger, logger *slog.Logger) *Executor {
	return &Executor{
		adapter:   adapter,
		orders:    ol,
		positions: pl,
		logger:    logger.With(slog.String("component", "executor")),
	}
}

// SetPositions swaps the position ledger reference at market rollover. The
// trader loop guarantees no fill is processed between the swap and the next
// event.
func (e *Executor) SetPositions(pl *position.Ledger) {
	e.mu.Lock()
	e.positions = pl
	e.mu.Unlock()
}

// Positions returns the position ledger currently receiving pending-flag
// updates.
func (e *Executor) Positions() *position.Ledger {
	return e.pos()
}

func (e *Executor) pos() *position.Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions
}

// ExecuteSignal submits one taker signal as an order. Venue rejections are
// recoverable: the order is marked Rejected and the error is absorbed; the
// next evaluation cycle re-decides from scratch.
func (e *Executor) ExecuteSignal(ctx context.Context, sig domain.TradeSignal, ms domain.MarketSnapshot) error {
	o := domain.Order{
		ID:        sig.ID,
		Outcome:   sig.Outcome,
		Direction: sig.Direction,
		Price:     sig.Price,
		Size:      sig.Size,
		CreatedAt: time.Now().UTC(),
	}
	return e.submit(ctx, o, ms, sig.Reason)
}

// Place submits one resting ladder buy at the given rung.
func (e *Executor) Place(ctx context.Context, outcome domain.Outcome, price domain.Tick, size float64, ms domain.MarketSnapshot) error {
	o := domain.Order{
		ID:        uuid.NewString(),
		Outcome:   outcome,
		Direction: domain.DirectionBuy,
		Price:     price,
		Size:      size,
		Quote:     true,
		CreatedAt: time.Now().UTC(),
	}
	return e.submit(ctx, o, ms, "ladder quote")
}

func (e *Executor) submit(ctx context.Context, o domain.Order, ms domain.MarketSnapshot, reason string) error {
	if err := e.orders.Add(o); err != nil {
		return fmt.Errorf("executor: submit: %w", err)
	}
	e.pos().SetPending(o.Outcome, true)

	apiID, err := e.adapter.Submit(ctx, o, ms)
	if err != nil {
		e.orders.Reject(o.ID)
		e.SyncPending(o.Outcome)
		if errors.Is(err, domain.ErrOrderRejected) {
			e.logger.Warn("order rejected by venue",
				slog.String("order_id", o.ID),
				slog.String("outcome", string(o.Outcome)),
				slog.Int("price", int(o.Price)),
				slog.Float64("size", o.Size),
			)
			return nil
		}
		return fmt.Errorf("executor: submit %s: %w", o.ID, err)
	}
	if apiID != "" {
		if err := e.orders.SetAPIOrderID(o.ID, apiID); err != nil {
			return fmt.Errorf("executor: submit %s: %w", o.ID, err)
		}
	}

	e.logger.Info("order submitted",
		slog.String("order_id", o.ID),
		slog.String("outcome", string(o.Outcome)),
		slog.String("direction", string(o.Direction)),
		slog.Int("price", int(o.Price)),
		slog.Float64("size", o.Size),
		slog.String("reason", reason),
	)
	return nil
}

// CancelOrder cancels one live order. A venue "not found" is success: the
// order was already filled or expired venue-side, so it is resolved locally
// without retry.
func (e *Executor) CancelOrder(ctx context.Context, id string) error {
	o, ok := e.orders.Get(id)
	if !ok {
		return fmt.Errorf("executor: cancel %q: %w", id, domain.ErrNotFound)
	}

	err := e.adapter.Cancel(ctx, o)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("executor: cancel %s: %w", id, err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		e.logger.Debug("ghost cancel resolved locally", slog.String("order_id", id))
	}

	if _, err := e.orders.Cancel(id); err != nil {
		return fmt.Errorf("executor: cancel %s: %w", id, err)
	}
	e.SyncPending(o.Outcome)
	return nil
}

// CancelAll clears every live order, venue first, then the ledger. The venue
// sweep failing does not stop local resolution; stale rows would otherwise
// pin the pending flags for the rest of the window.
func (e *Executor) CancelAll(ctx context.Context) error {
	err := e.adapter.CancelAll(ctx)
	if err != nil {
		e.logger.Error("venue cancel-all failed", slog.String("error", err.Error()))
	}

	for _, outcome := range []domain.Outcome{domain.OutcomeYes, domain.OutcomeNo} {
		for _, o := range e.orders.Live(outcome) {
			if _, cerr := e.orders.Cancel(o.ID); cerr != nil {
				e.logger.Warn("cancel-all ledger resolve failed",
					slog.String("order_id", o.ID),
					slog.String("error", cerr.Error()),
				)
			}
		}
		e.SyncPending(outcome)
	}
	if err != nil {
		return fmt.Errorf("executor: cancel all: %w", err)
	}
	return nil
}

// Apply executes a reconciliation action list in order: cancels first (the
// diff emits them first), then places.
func (e *Executor) Apply(ctx context.Context, actions []orders.Action, ms domain.MarketSnapshot) error {
	for _, a := range actions {
		switch a.Type {
		case orders.ActionCancel:
			if err := e.CancelOrder(ctx, a.OrderID); err != nil {
				e.logger.Error("cancel failed",
					slog.String("order_id", a.OrderID),
					slog.String("error", err.Error()),
				)
			}
		case orders.ActionPlace:
			if err := e.Place(ctx, a.Outcome, a.Price, a.Size, ms); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncPending recomputes the side's pending flag from the live order set:
// pending while at least one order on the side can still fill.
func (e *Executor) SyncPending(o domain.Outcome) {
	e.pos().SetPending(o, len(e.orders.Live(o)) > 0)
}
