package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

func newSignal(o domain.Outcome, dir domain.Direction, price domain.Tick, size float64, priority int, reason string) domain.TradeSignal {
	return domain.TradeSignal{
		ID:        uuid.NewString(),
		Outcome:   o,
		Direction: dir,
		Price:     price,
		Size:      size,
		Priority:  priority,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

// LockedProfit returns the guaranteed dollar profit of the current position:
// completed pairs pay out regardless of outcome, excess shares are valued at
// the current best bid.
func LockedProfit(ms domain.MarketSnapshot, ps domain.PositionSnapshot) float64 {
	pairs := math.Min(ps.Qy, ps.Qn)
	value := pairs * float64(domain.PayoutTicks)

	excess := math.Abs(ps.Imbalance())
	if excess > 0 {
		side := domain.OutcomeYes
		if ps.Qn > ps.Qy {
			side = domain.OutcomeNo
		}
		if bid, ok := ms.BestBid(side); ok {
			value += excess * float64(bid.Price)
		}
	}

	return (value - ps.Cy - ps.Cn) / 1000
}

// checkProfitLock reports whether the window is already won: both legs held
// and the guaranteed profit clears the lock threshold. Trading halts for the
// remainder of the market.
func checkProfitLock(ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) bool {
	if !ps.BothSides() {
		return false
	}
	return LockedProfit(ms, ps) >= cfg.ProfitLockMinUSD
}

// checkStopLoss emits panic-sell signals when a solo position's best bid has
// collapsed below the stop-loss level. A paired position never stop-losses;
// one leg always pays out.
func checkStopLoss(ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) []domain.TradeSignal {
	if ps.BothSides() || ps.Empty() {
		return nil
	}

	side := domain.OutcomeYes
	if ps.Qn > 0 {
		side = domain.OutcomeNo
	}
	// The panic sell is full size; while it is in flight nothing else may
	// be scheduled on the side.
	if ps.Pending(side) {
		return nil
	}
	bid, ok := ms.BestBid(side)
	if !ok {
		return nil
	}
	stop := domain.Tick(cfg.StopLoss * 1000)
	if bid.Price >= stop {
		return nil
	}

	reason := fmt.Sprintf("stop loss: %s bid %d below %d", side, bid.Price, stop)
	return []domain.TradeSignal{
		newSignal(side, domain.DirectionSell, bid.Price, ps.Qty(side), domain.PrioritySafety, reason),
	}
}

// checkArbitrage emits paired buy signals when completing the box costs less
// than the target pair sum. Sized to the thinner ask, capped at MAX_SHARES.
func checkArbitrage(ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) []domain.TradeSignal {
	askYes, okYes := ms.BestAsk(domain.OutcomeYes)
	askNo, okNo := ms.BestAsk(domain.OutcomeNo)
	if !okYes || !okNo {
		return nil
	}

	sum := int(askYes.Price) + int(askNo.Price)
	if sum >= cfg.TargetPairTicks {
		return nil
	}
	if ps.PendingYes || ps.PendingNo {
		return nil
	}
	if ps.BothSides() {
		return nil
	}

	size := math.Min(askYes.Size, math.Min(askNo.Size, cfg.MaxShares))
	if size <= 0 {
		return nil
	}

	reason := fmt.Sprintf("synthetic arbitrage: pair cost %d ticks", sum)
	return []domain.TradeSignal{
		newSignal(domain.OutcomeYes, domain.DirectionBuy, askYes.Price, size, domain.PriorityArbitrage, reason),
		newSignal(domain.OutcomeNo, domain.DirectionBuy, askNo.Price, size, domain.PriorityArbitrage, reason),
	}
}

// checkBootstrap opens a position from flat by buying the cheaper side when
// its ask sits below a time-dependent threshold. No entries inside the kill
// zone near expiry.
func checkBootstrap(ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) *domain.TradeSignal {
	if !ps.Empty() {
		return nil
	}
	rem, ok := ms.TimeRemaining()
	if !ok {
		return nil
	}
	minutes := rem.Minutes()
	if minutes < cfg.BootstrapKillZoneMin {
		return nil
	}

	threshold := cfg.BootstrapThresholdLow * 1000
	if minutes > cfg.BootstrapHighVolMin {
		threshold = cfg.BootstrapThresholdHigh * 1000
	}

	askYes, okYes := ms.BestAsk(domain.OutcomeYes)
	askNo, okNo := ms.BestAsk(domain.OutcomeNo)
	if !okYes || !okNo {
		return nil
	}

	side, ask := domain.OutcomeYes, askYes
	if askNo.Price < askYes.Price {
		side, ask = domain.OutcomeNo, askNo
	}
	if ps.Pending(side) {
		return nil
	}
	if float64(ask.Price) >= threshold {
		return nil
	}

	size := math.Min(ask.Size, cfg.MaxShares)
	if size <= 0 {
		return nil
	}

	reason := fmt.Sprintf("bootstrap: %s ask %d under threshold %.0f with %.1fm left", side, ask.Price, threshold, minutes)
	s := newSignal(side, domain.DirectionBuy, ask.Price, size, domain.PriorityInventory, reason)
	return &s
}

// checkHedging rebalances a lopsided position by buying the light side, but
// only at a price that still locks a profitable pair against the heavy side's
// average cost.
func checkHedging(ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) *domain.TradeSignal {
	imbalance := math.Abs(ps.Imbalance())
	if imbalance <= cfg.BalancePad {
		return nil
	}

	heavy := domain.OutcomeYes
	if ps.Qn > ps.Qy {
		heavy = domain.OutcomeNo
	}
	light := heavy.Opposite()

	if ps.Qty(light) >= cfg.MaxShares {
		return nil
	}
	if ps.Pending(light) {
		return nil
	}

	heavyAvg, ok := ps.AvgCost(heavy)
	if !ok {
		return nil
	}
	ask, ok := ms.BestAsk(light)
	if !ok {
		return nil
	}

	limit := float64(cfg.TargetPairTicks) - heavyAvg
	if float64(ask.Price) >= limit {
		return nil
	}

	// Sized to close the gap, never to flip it the other way.
	size := math.Min(ask.Size, math.Min(imbalance, cfg.MaxShares-ps.Qty(light)))
	if size <= 0 {
		return nil
	}

	reason := fmt.Sprintf("hedge: buy %s at %d, heavy avg %.1f, limit %.1f", light, ask.Price, heavyAvg, limit)
	s := newSignal(light, domain.DirectionBuy, ask.Price, size, domain.PriorityInventory, reason)
	return &s
}

// checkAveragingDown adds to a losing leg when its ask has dropped under the
// average cost, subject to two guards: never below the floor threshold (a
// crash that deep usually means the outcome is decided) and never past the
// balance cap that would blow out the imbalance.
func checkAveragingDown(ms domain.MarketSnapshot, ps domain.PositionSnapshot, cfg config.EngineConfig) *domain.TradeSignal {
	if ps.Qy >= cfg.MaxShares || ps.Qn >= cfg.MaxShares {
		return nil
	}

	for _, side := range []domain.Outcome{domain.OutcomeYes, domain.OutcomeNo} {
		if ps.Qty(side) <= 0 {
			continue
		}
		avg, ok := ps.AvgCost(side)
		if !ok {
			continue
		}
		ask, ok := ms.BestAsk(side)
		if !ok {
			continue
		}
		if float64(ask.Price) >= avg {
			continue
		}
		if float64(ask.Price) < cfg.FloorThresh*1000 {
			return nil
		}

		balanceCap := math.Max(0, ps.Qty(side.Opposite())+cfg.BalancePad-ps.Qty(side))
		if balanceCap <= 0 {
			continue
		}
		if ps.Pending(side) {
			return nil
		}

		size := math.Min(ask.Size, math.Min(balanceCap, cfg.MaxShares))
		if size <= 0 {
			continue
		}

		reason := fmt.Sprintf("averaging down %s: ask %d under avg %.1f, cap %.1f", side, ask.Price, avg, balanceCap)
		s := newSignal(side, domain.DirectionBuy, ask.Price, size, domain.PriorityInventory, reason)
		return &s
	}
	return nil
}
