// Package strategy implements the stage pipeline that turns a market
// snapshot and a position snapshot into trade intents. Safety stages run
// first and short-circuit; arbitrage, inventory, and the oracle filter
// compose.
package strategy

import (
	"log/slog"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// Decision is the output of one evaluation pass.
type Decision struct {
	Signals []domain.TradeSignal

	// Halt stops all trading for the remainder of the market. The caller
	// latches it; the engine itself is stateless.
	Halt       bool
	HaltReason string
}

// Engine evaluates the strategy stages in priority order. Given identical
// snapshot inputs the prices, sizes, and halt decisions are identical; only
// signal IDs and timestamps differ.
type Engine struct {
	cfg    config.EngineConfig
	logger *slog.Logger
}

// New creates a strategy engine.
func New(cfg config.EngineConfig, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "strategy")),
	}
}

// Evaluate runs the full stage pipeline against one snapshot pair:
//
//  1. circuit breaker: mark-to-market loss past the limit halts the market
//  2. profit lock: a won window halts the market
//  3. stop loss: a collapsing solo position is flattened, skipping the rest
//  4. synthetic arbitrage: paired buys, exempt from the oracle filter
//  5. inventory (bootstrap, hedging, averaging down), then the oracle filter
//
// An unsynced book produces no decision at all.
func (e *Engine) Evaluate(ms domain.MarketSnapshot, ps domain.PositionSnapshot) Decision {
	if !ms.Synced() {
		return Decision{}
	}

	if loss := -LockedProfit(ms, ps); !ps.Empty() && loss > e.cfg.CircuitBreakerUSD {
		e.logger.Error("circuit breaker tripped",
			slog.String("market_id", ms.MarketID),
			slog.Float64("loss_usd", loss),
			slog.Float64("limit_usd", e.cfg.CircuitBreakerUSD),
		)
		return Decision{Halt: true, HaltReason: "circuit_breaker"}
	}

	if checkProfitLock(ms, ps, e.cfg) {
		e.logger.Info("profit locked, halting market",
			slog.String("market_id", ms.MarketID),
			slog.Float64("profit_usd", LockedProfit(ms, ps)),
		)
		return Decision{Halt: true, HaltReason: "profit_lock"}
	}

	if sells := checkStopLoss(ms, ps, e.cfg); len(sells) > 0 {
		e.logger.Warn("stop loss triggered",
			slog.String("market_id", ms.MarketID),
			slog.String("outcome", string(sells[0].Outcome)),
			slog.Int("price", int(sells[0].Price)),
		)
		return Decision{Signals: sells}
	}

	var signals []domain.TradeSignal
	signals = append(signals, checkArbitrage(ms, ps, e.cfg)...)

	var inventory []domain.TradeSignal
	if s := checkBootstrap(ms, ps, e.cfg); s != nil {
		inventory = append(inventory, *s)
	}
	if s := checkHedging(ms, ps, e.cfg); s != nil {
		inventory = append(inventory, *s)
	}
	if s := checkAveragingDown(ms, ps, e.cfg); s != nil {
		inventory = append(inventory, *s)
	}

	for _, s := range inventory {
		if s.Direction == domain.DirectionBuy && BlockBuy(s.Outcome, ms, e.cfg) {
			e.logger.Debug("signal blocked by oracle filter",
				slog.String("signal_id", s.ID),
				slog.String("outcome", string(s.Outcome)),
				slog.String("reason", s.Reason),
			)
			continue
		}
		signals = append(signals, s)
	}

	return Decision{Signals: signals}
}
