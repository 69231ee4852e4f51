package domain

import "time"

// SizeEpsilon is the tolerance used when comparing share sizes. Fill sizes
// come back from the venue as decimals and accumulate rounding error.
const SizeEpsilon = 1e-9

// Direction indicates whether an order adds or removes inventory.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// OrderStatus tracks the order lifecycle.
//
// Pending -> PartiallyFilled -> Filled
// Pending | PartiallyFilled -> Cancelled
// Pending -> Rejected
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// Fill is a single execution against an order.
type Fill struct {
	Size      float64
	Price     Tick
	Timestamp int64 // ms
}

// Order is one limit order we have submitted (or are about to submit) to the
// venue.
type Order struct {
	ID        string
	Outcome   Outcome
	Direction Direction
	Price     Tick
	Size      float64

	FilledSize   float64
	AvgFillPrice float64 // size-weighted mean of fill prices, ticks
	Status       OrderStatus
	Fills        []Fill

	// APIOrderID is the venue-assigned identifier, set after live
	// submission. Empty in simulated mode.
	APIOrderID string

	// Quote marks resting ladder orders owned by the reconciler. Taker
	// orders (arbitrage legs, panic sells) are never diffed against the
	// ladder.
	Quote bool

	CreatedAt time.Time
}

// Remaining returns the unfilled size.
func (o Order) Remaining() float64 {
	rem := o.Size - o.FilledSize
	if rem < 0 {
		return 0
	}
	return rem
}

// Live reports whether the order can still receive fills.
func (o Order) Live() bool {
	return !o.Status.Terminal()
}
