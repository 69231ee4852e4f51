package domain

// PositionSnapshot is an immutable copy of the inventory ledger for one
// market, taken alongside a MarketSnapshot for strategy evaluation.
//
// Cost basis is kept in tick·share units: buying 10 shares at 450 ticks adds
// 4500 to the side's cost. AvgYes/AvgNo therefore recover the size-weighted
// average fill price.
type PositionSnapshot struct {
	MarketID string

	Qy float64 // YES shares held
	Qn float64 // NO shares held
	Cy float64 // cumulative YES cost, tick·shares
	Cn float64 // cumulative NO cost, tick·shares

	PendingYes bool
	PendingNo  bool
}

// Qty returns the shares held on the given outcome.
func (p PositionSnapshot) Qty(o Outcome) float64 {
	if o == OutcomeYes {
		return p.Qy
	}
	return p.Qn
}

// Cost returns the cumulative cost basis on the given outcome.
func (p PositionSnapshot) Cost(o Outcome) float64 {
	if o == OutcomeYes {
		return p.Cy
	}
	return p.Cn
}

// Pending reports whether an order is in flight on the given outcome.
func (p PositionSnapshot) Pending(o Outcome) bool {
	if o == OutcomeYes {
		return p.PendingYes
	}
	return p.PendingNo
}

// AvgCost returns the size-weighted average fill price on the outcome in
// ticks. ok is false when nothing is held on that side.
func (p PositionSnapshot) AvgCost(o Outcome) (float64, bool) {
	q := p.Qty(o)
	if q <= 0 {
		return 0, false
	}
	return p.Cost(o) / q, true
}

// Empty reports whether nothing is held on either side.
func (p PositionSnapshot) Empty() bool {
	return p.Qy == 0 && p.Qn == 0
}

// BothSides reports whether both legs are held.
func (p PositionSnapshot) BothSides() bool {
	return p.Qy > 0 && p.Qn > 0
}

// Imbalance returns Qy - Qn. Positive means heavy on YES.
func (p PositionSnapshot) Imbalance() float64 {
	return p.Qy - p.Qn
}

// NetPosition returns the holding on this outcome minus the holding on the
// opposite outcome. Positive means this side is heavy.
func (p PositionSnapshot) NetPosition(o Outcome) float64 {
	return p.Qty(o) - p.Qty(o.Opposite())
}
