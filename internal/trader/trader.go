// Package trader runs the single-consumer event loop that ties the orderbook
// state, strategy engine, pricing ladder, diff reconciler, and executor
// together. All evaluation and all rollover work happens on this one
// goroutine, so no strategy pass ever observes a half-applied update and no
// fill can land between the rollover swap steps.
package trader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/book"
	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/executor"
	"github.com/arbalest-labs/ticktrader/internal/orders"
	"github.com/arbalest-labs/ticktrader/internal/position"
	"github.com/arbalest-labs/ticktrader/internal/pricing"
	"github.com/arbalest-labs/ticktrader/internal/strategy"
)

// Event is one item on the trader's input channel: a book snapshot, a price
// delta, an oracle tick, a fill, or a Rollover.
type Event any

// Rollover switches the trader to the next market window.
type Rollover struct {
	Meta domain.MarketMetadata
}

// Observer receives engine lifecycle notifications. Calls happen on the
// trader goroutine; implementations must not block on it.
type Observer interface {
	OnSnapshot(ctx context.Context, ms domain.MarketSnapshot)
	OnDelta(ctx context.Context, ev domain.PriceDeltaEvent, ms domain.MarketSnapshot)
	OnFill(ctx context.Context, ev domain.FillEvent, o domain.Order)
	OnSignal(ctx context.Context, sig domain.TradeSignal)
	OnHalt(ctx context.Context, reason string)
	OnRollover(ctx context.Context, round domain.Round)
}

// Trader is the event loop. It owns the position ledger reference and is the
// only component allowed to swap it.
type Trader struct {
	cfg    *config.Config
	logger *slog.Logger

	events chan Event

	state     *book.State
	engine    *strategy.Engine
	diff      *orders.Diff
	orders    *orders.Ledger
	exec      *executor.Executor
	positions *position.Ledger

	observers []Observer

	// quoting tracks which sides have an activated maker ladder this
	// window. Set by inventory signals, cleared at halt and rollover.
	quoting map[domain.Outcome]bool

	// mu guards the halt state and the positions reference against reads
	// from the status API. The trader goroutine is the only writer.
	mu         sync.RWMutex
	halted     bool
	haltReason string
}

// New creates a trader for the given market window.
func New(
	cfg *config.Config,
	state *book.State,
	engine *strategy.Engine,
	diff *orders.Diff,
	ol *orders.Ledger,
	exec *executor.Executor,
	pl *position.Ledger,
	logger *slog.Logger,
) *Trader {
	return &Trader{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "trader")),
		events:    make(chan Event, 256),
		state:     state,
		engine:    engine,
		diff:      diff,
		orders:    ol,
		exec:      exec,
		positions: pl,
		quoting:   make(map[domain.Outcome]bool),
	}
}

// AddObserver registers an observer. Not safe after Run has started.
func (t *Trader) AddObserver(obs Observer) {
	t.observers = append(t.observers, obs)
}

// Events returns the channel feeds push into.
func (t *Trader) Events() chan<- Event {
	return t.events
}

// Positions returns the current position ledger. Only meaningful between
// events; the trader goroutine is the authoritative holder.
func (t *Trader) Positions() *position.Ledger {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.positions
}

// Position returns a point-in-time inventory snapshot.
func (t *Trader) Position() domain.PositionSnapshot {
	return t.Positions().Snapshot()
}

// Halted reports whether trading is latched off for the current window, and
// why.
func (t *Trader) Halted() (bool, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.halted, t.haltReason
}

// Market returns the current market snapshot. Safe to call from other
// goroutines; the book state carries its own lock.
func (t *Trader) Market() domain.MarketSnapshot {
	return t.state.Snapshot()
}

// Run consumes events until the context is cancelled.
func (t *Trader) Run(ctx context.Context) error {
	t.logger.Info("trader loop started", slog.String("mode", t.cfg.Mode))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-t.events:
			t.handle(ctx, ev)
		}
	}
}

func (t *Trader) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case domain.BookSnapshotEvent:
		ms := t.state.ApplySnapshot(e)
		ms = t.maybeCaptureStrike(ms)
		t.notifySnapshot(ctx, ms)
		t.evaluate(ctx, ms)

	case domain.PriceDeltaEvent:
		ms, applied := t.state.ApplyDelta(e)
		if !applied {
			t.logger.Debug("delta dropped, no baseline snapshot",
				slog.String("outcome", string(e.Outcome)),
				slog.Int("price", int(e.Price)),
			)
			return
		}
		for _, obs := range t.observers {
			obs.OnDelta(ctx, e, ms)
		}
		t.evaluate(ctx, ms)

	case domain.OracleTickEvent:
		ms := t.state.ApplyOraclePrice(e)
		ms = t.maybeCaptureStrike(ms)
		t.evaluate(ctx, ms)

	case domain.FillEvent:
		t.handleFill(ctx, e)

	case Rollover:
		t.rollover(ctx, e.Meta)

	default:
		t.logger.Warn("unknown event type dropped")
	}
}

func (t *Trader) notifySnapshot(ctx context.Context, ms domain.MarketSnapshot) {
	for _, obs := range t.observers {
		obs.OnSnapshot(ctx, ms)
	}
}

// maybeCaptureStrike records the oracle price as the strike the first time
// the book is fully synced. Up/down windows settle against the reference
// price at window open, which is what the feed shows at first sync.
func (t *Trader) maybeCaptureStrike(ms domain.MarketSnapshot) domain.MarketSnapshot {
	if ms.StrikePrice > 0 || !ms.Synced() || ms.OraclePrice <= 0 {
		return ms
	}
	t.state.SetStrike(ms.OraclePrice)
	t.logger.Info("strike captured",
		slog.String("market_id", ms.MarketID),
		slog.Float64("strike", ms.OraclePrice),
	)
	return t.state.Snapshot()
}

func (t *Trader) handleFill(ctx context.Context, ev domain.FillEvent) {
	o, ok := t.orders.Get(ev.OrderID)
	if !ok {
		// Live fills correlate by venue id.
		o, ok = t.orders.GetByAPIOrderID(ev.OrderID)
		if !ok {
			t.logger.Error("fill for unknown order dropped", slog.String("order_id", ev.OrderID))
			return
		}
	}

	updated, err := t.orders.ApplyFill(o.ID, domain.Fill{Size: ev.Size, Price: ev.Price, Timestamp: ev.Timestamp})
	if err != nil {
		if !errors.Is(err, domain.ErrTerminalOrder) {
			t.logger.Error("fill rejected", slog.String("order_id", o.ID), slog.String("error", err.Error()))
		}
		return
	}

	if err := t.positions.ApplyFill(updated.Outcome, updated.Direction, ev.Size, ev.Price); err != nil {
		t.logger.Error("position update failed",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	t.exec.SyncPending(updated.Outcome)

	t.logger.Info("fill applied",
		slog.String("order_id", o.ID),
		slog.String("outcome", string(updated.Outcome)),
		slog.String("direction", string(updated.Direction)),
		slog.Float64("size", ev.Size),
		slog.Int("price", int(ev.Price)),
		slog.String("status", string(updated.Status)),
	)
	for _, obs := range t.observers {
		obs.OnFill(ctx, ev, updated)
	}

	t.evaluate(ctx, t.state.Snapshot())
}

// evaluate runs one full strategy pass against the given snapshot and acts on
// the decision: taker signals execute immediately, inventory signals activate
// the side's maker ladder, and the ladders are reconciled against live
// orders.
func (t *Trader) evaluate(ctx context.Context, ms domain.MarketSnapshot) {
	if t.halted {
		return
	}

	ps := t.positions.Snapshot()
	decision := t.engine.Evaluate(ms, ps)

	if decision.Halt {
		t.halt(ctx, decision.HaltReason)
		return
	}

	for _, sig := range decision.Signals {
		for _, obs := range t.observers {
			obs.OnSignal(ctx, sig)
		}
		if sig.Taker() {
			if err := t.exec.ExecuteSignal(ctx, sig, ms); err != nil {
				t.logger.Error("signal execution failed",
					slog.String("signal_id", sig.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if !t.quoting[sig.Outcome] {
			t.quoting[sig.Outcome] = true
			t.logger.Info("maker ladder activated",
				slog.String("outcome", string(sig.Outcome)),
				slog.String("reason", sig.Reason),
			)
		}
	}

	// Refresh the position snapshot: taker submissions flip pending flags
	// and the ladder must not double up behind them.
	ps = t.positions.Snapshot()
	for _, side := range []domain.Outcome{domain.OutcomeYes, domain.OutcomeNo} {
		live := t.quoteOrders(side)
		var ideal []domain.Level
		if t.quoting[side] {
			ideal = pricing.BuildLadder(side, ms, ps, t.cfg.Engine)
		}
		if len(live) == 0 && len(ideal) == 0 {
			continue
		}
		actions := t.diff.Reconcile(side, live, ideal)
		if err := t.exec.Apply(ctx, actions, ms); err != nil {
			t.logger.Error("reconciliation failed",
				slog.String("outcome", string(side)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// quoteOrders returns the live reconciler-owned orders on one side. Taker
// orders are invisible to the diff.
func (t *Trader) quoteOrders(side domain.Outcome) []domain.Order {
	var out []domain.Order
	for _, o := range t.orders.Live(side) {
		if o.Quote {
			out = append(out, o)
		}
	}
	return out
}

// halt latches the trading stop for the rest of the window and pulls every
// live order.
func (t *Trader) halt(ctx context.Context, reason string) {
	t.mu.Lock()
	t.halted = true
	t.haltReason = reason
	t.mu.Unlock()
	t.quoting = make(map[domain.Outcome]bool)
	t.cancelAll(ctx)
	t.logger.Warn("trading halted", slog.String("reason", reason))
	for _, obs := range t.observers {
		obs.OnHalt(ctx, reason)
	}
}

func (t *Trader) cancelAll(ctx context.Context) {
	if err := t.exec.CancelAll(ctx); err != nil {
		t.logger.Error("teardown cancel-all failed", slog.String("error", err.Error()))
	}
}

// rollover performs the atomic window switch: close out the old window,
// reset the book, create the fresh position ledger, and hand the same
// reference to every holder before the next event is consumed. Because this
// runs inside the event loop, no fill can interleave with the swap.
func (t *Trader) rollover(ctx context.Context, meta domain.MarketMetadata) {
	oldSnap := t.state.Snapshot()
	finalPos := t.positions.Snapshot()

	t.cancelAll(ctx)

	round := domain.Round{
		MarketID:    finalPos.MarketID,
		Slug:        oldSnap.Slug,
		Expiry:      oldSnap.Expiry,
		Qy:          finalPos.Qy,
		Qn:          finalPos.Qn,
		Cy:          finalPos.Cy,
		Cn:          finalPos.Cn,
		RealizedUSD: strategy.LockedProfit(oldSnap, finalPos),
		Halted:      t.halted,
		HaltReason:  t.haltReason,
		ClosedAt:    time.Now().UTC(),
	}
	for _, obs := range t.observers {
		obs.OnRollover(ctx, round)
	}

	t.state.Reset(meta)
	t.orders.Reset()

	fresh := position.NewLedger(meta.MarketID)
	t.mu.Lock()
	t.positions = fresh
	t.halted = false
	t.haltReason = ""
	t.mu.Unlock()
	t.exec.SetPositions(fresh)

	t.quoting = make(map[domain.Outcome]bool)

	t.logger.Info("rolled over to next window",
		slog.String("market_id", meta.MarketID),
		slog.String("slug", meta.Slug),
		slog.Time("expiry", meta.Expiry),
	)
}
