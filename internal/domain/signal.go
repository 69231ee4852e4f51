package domain

import "time"

// Signal priorities. Lower values act first; priority 0 bypasses the oracle
// filter.
const (
	PriorityArbitrage = 0
	PrioritySafety    = 1
	PriorityInventory = 2
)

// TradeSignal is a desired, not yet placed, trade intent emitted by the
// strategy engine.
type TradeSignal struct {
	ID        string
	Outcome   Outcome
	Direction Direction
	Price     Tick
	Size      float64
	Priority  int
	Reason    string
	CreatedAt time.Time
}

// Taker reports whether the signal should be executed immediately at market
// rather than turned into a resting quote ladder. Arbitrage legs and
// panic-sells are takers; inventory signals rest as makers.
func (s TradeSignal) Taker() bool {
	return s.Priority == PriorityArbitrage || s.Direction == DirectionSell
}
