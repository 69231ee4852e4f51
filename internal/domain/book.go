package domain

import "time"

// Tick is a price in 0.1 cent units. 1000 ticks = $1.00, the payout of a
// winning share at settlement.
type Tick int

const (
	// PayoutTicks is the settlement value of one winning share.
	PayoutTicks Tick = 1000

	// MaxTick is the highest representable price.
	MaxTick Tick = 1000
)

// Dollars converts a tick price to its dollar value.
func (t Tick) Dollars() float64 {
	return float64(t) / 1000.0
}

// Valid reports whether the tick is inside the representable price range.
func (t Tick) Valid() bool {
	return t >= 0 && t <= MaxTick
}

// Outcome identifies one of the two binary contract legs.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Opposite returns the other leg.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// BookSide identifies the bid or ask ladder of an orderbook.
type BookSide string

const (
	BookSideBid BookSide = "bid"
	BookSideAsk BookSide = "ask"
)

// Level is a single price+size entry in an orderbook ladder.
type Level struct {
	Price Tick
	Size  float64
}

// MarketSnapshot is an immutable point-in-time copy of the full market state.
// It is the only view of the book the strategy layer ever sees: every field
// is copied by value at snapshot time, so a snapshot never changes under an
// evaluation in progress.
//
// Bid ladders are sorted best-first (descending price); ask ladders are
// sorted best-first (ascending price).
type MarketSnapshot struct {
	MarketID string
	Slug     string
	Expiry   time.Time

	YesBids []Level
	YesAsks []Level
	NoBids  []Level
	NoAsks  []Level

	// OraclePrice is the latest reference price from the external feed
	// (zero until the first oracle tick arrives).
	OraclePrice float64

	// StrikePrice is the oracle level the market settles against. For
	// up/down markets it is captured at the first full book sync.
	StrikePrice float64

	// ExchangeTimestamp is the venue-supplied timestamp of the last event
	// applied, in milliseconds.
	ExchangeTimestamp int64

	SyncYes bool
	SyncNo  bool
}

// Synced reports whether both outcomes have received a full book snapshot
// since the last reset.
func (s MarketSnapshot) Synced() bool {
	return s.SyncYes && s.SyncNo
}

// Bids returns the bid ladder for the given outcome.
func (s MarketSnapshot) Bids(o Outcome) []Level {
	if o == OutcomeYes {
		return s.YesBids
	}
	return s.NoBids
}

// Asks returns the ask ladder for the given outcome.
func (s MarketSnapshot) Asks(o Outcome) []Level {
	if o == OutcomeYes {
		return s.YesAsks
	}
	return s.NoAsks
}

// BestBid returns the highest bid for the outcome, if any.
func (s MarketSnapshot) BestBid(o Outcome) (Level, bool) {
	bids := s.Bids(o)
	if len(bids) == 0 {
		return Level{}, false
	}
	return bids[0], true
}

// BestAsk returns the lowest ask for the outcome, if any.
func (s MarketSnapshot) BestAsk(o Outcome) (Level, bool) {
	asks := s.Asks(o)
	if len(asks) == 0 {
		return Level{}, false
	}
	return asks[0], true
}

// AskDepthAt sums the ask size available at or below the given price limit
// for the outcome. This is the size a marketable buy at that limit could
// take immediately.
func (s MarketSnapshot) AskDepthAt(o Outcome, limit Tick) float64 {
	total := 0.0
	for _, lvl := range s.Asks(o) {
		if lvl.Price > limit {
			break
		}
		total += lvl.Size
	}
	return total
}

// BidDepthAt sums the bid size available at or above the given price limit
// for the outcome. This is the size a marketable sell at that limit could hit
// immediately.
func (s MarketSnapshot) BidDepthAt(o Outcome, limit Tick) float64 {
	total := 0.0
	for _, lvl := range s.Bids(o) {
		if lvl.Price < limit {
			break
		}
		total += lvl.Size
	}
	return total
}

// TimeRemaining returns the time until market expiry relative to the
// exchange timestamp. It returns false when no exchange timestamp has been
// observed yet.
func (s MarketSnapshot) TimeRemaining() (time.Duration, bool) {
	if s.ExchangeTimestamp == 0 || s.Expiry.IsZero() {
		return 0, false
	}
	rem := s.Expiry.Sub(time.UnixMilli(s.ExchangeTimestamp))
	if rem < 0 {
		rem = 0
	}
	return rem, true
}
