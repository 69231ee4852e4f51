// Package pricing implements the Triple Gate bid pricing model and the quote
// ladder it feeds. All functions are pure: they read snapshots and return
// values.
//
// The three gates, per side:
//
//	P_acct   what can I afford without locking in a portfolio loss
//	P_mkt    what does replacement cost say, skewed by inventory
//	Cap_exec maker or taker, depending on which side is hungry
//
// The final bid is the minimum of the three, clamped to the valid range.
package pricing

import (
	"math"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// maxFinalTick caps quotes below the settlement price; quoting at or above
// 990 ticks has no edge left.
const maxFinalTick = 990

// AccountantPrice computes P_acct, the loss-ceiling gate.
//
// Heavy or balanced: pay at most what leaves margin after the opposite leg's
// average cost. Light: pay at most the price at which completing the pair
// still breaks even, spread across the shares needed to rebalance.
func AccountantPrice(side domain.Outcome, ps domain.PositionSnapshot, cfg config.EngineConfig) float64 {
	net := ps.NetPosition(side)

	if net < 0 {
		heavyQty := ps.Qty(side.Opposite())
		heavyAvg, _ := ps.AvgCost(side.Opposite())
		lightCost := ps.Cost(side)

		sharesNeeded := -net
		if sharesNeeded > 0 && heavyQty > 0 {
			return (heavyQty*(1000-heavyAvg) - lightCost) / sharesNeeded
		}
		// Degenerate light case: nothing to balance against.
		return maxFinalTick
	}

	avgOpp, _ := ps.AvgCost(side.Opposite())
	return 1000 - avgOpp - float64(cfg.BaseMarginTicks)
}

// MarketPrice computes P_mkt, the replacement-cost gate with inventory skew.
// The anchor is what the pair costs to complete at the opposite ask; skew
// lowers the bid when this side is heavy and raises it when light.
func MarketPrice(side domain.Outcome, ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) float64 {
	askOpp := 1000.0
	if lvl, ok := ms.BestAsk(side.Opposite()); ok {
		askOpp = float64(lvl.Price)
	}
	anchor := 1000 - askOpp - float64(cfg.BaseMarginTicks)

	skew := ps.NetPosition(side) * cfg.Gamma
	maxSkew := float64(cfg.MaxSkewTicks)
	skew = math.Max(-maxSkew, math.Min(maxSkew, skew))

	return anchor - skew
}

// ExecutionCap computes Cap_exec, the spread-crossing governor. A heavy or
// balanced side must rest as a maker one venue tick under its own ask; a
// light side is allowed to cross, up to the slippage tolerance.
func ExecutionCap(side domain.Outcome, ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) float64 {
	askThis := 1000.0
	if lvl, ok := ms.BestAsk(side); ok {
		askThis = float64(lvl.Price)
	}
	if ps.NetPosition(side) < 0 {
		return askThis + float64(cfg.SlippageTolTicks)
	}
	return askThis - float64(cfg.TickSizeTicks)
}

// FinalPrice combines the three gates and clamps the result to
// [min_price_ticks, 990].
func FinalPrice(side domain.Outcome, ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) domain.Tick {
	p := math.Min(AccountantPrice(side, ps, cfg),
		math.Min(MarketPrice(side, ms, ps, cfg), ExecutionCap(side, ms, ps, cfg)))

	lo := float64(cfg.MinPriceTicks)
	p = math.Max(lo, math.Min(float64(maxFinalTick), p))
	return domain.Tick(p)
}

// TargetSize computes the per-rung order size from inventory hunger.
// Neutral inventory quotes BASE_SIZE; a fully heavy side quotes nothing; a
// fully light side quotes double.
func TargetSize(side domain.Outcome, ps domain.PositionSnapshot, cfg config.EngineConfig) float64 {
	net := ps.NetPosition(side)

	if net >= cfg.MaxPosition {
		return 0
	}

	scalar := 1.0 - net/cfg.MaxPosition
	scalar = math.Max(0.0, math.Min(2.0, scalar))
	return math.Floor(cfg.BaseSize * scalar)
}

// BuildLadder constructs the ideal quote ladder for one side: the top rung
// at FinalPrice, each further rung one ladder step lower, all at TargetSize.
// Rungs are dropped once the side's resting exposure (held shares plus
// ladder size) would exceed MAX_POSITION, so a full-ladder sweep cannot
// breach the exposure bound before the engine reacts.
func BuildLadder(side domain.Outcome, ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) []domain.Level {
	size := TargetSize(side, ps, cfg)
	if size <= 0 {
		return nil
	}

	top := FinalPrice(side, ms, ps, cfg)
	budget := cfg.MaxPosition - ps.Qty(side)

	ladder := make([]domain.Level, 0, cfg.LadderDepth)
	for i := 0; i < cfg.LadderDepth; i++ {
		price := top - domain.Tick(i*cfg.LadderStepTicks)
		if price < domain.Tick(cfg.MinPriceTicks) {
			break
		}
		if budget < size {
			break
		}
		budget -= size
		ladder = append(ladder, domain.Level{Price: price, Size: size})
	}
	return ladder
}
