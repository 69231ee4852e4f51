package domain

import "time"

// BookSnapshotEvent is a full orderbook replacement for one outcome,
// delivered by the market data feed.
type BookSnapshotEvent struct {
	Outcome   Outcome
	Bids      []Level
	Asks      []Level
	Timestamp int64 // venue timestamp, ms
}

// PriceDeltaEvent is an incremental change to a single price level.
// NewSize == 0 removes the level.
type PriceDeltaEvent struct {
	Outcome   Outcome
	Side      BookSide
	Price     Tick
	NewSize   float64
	Timestamp int64 // venue timestamp, ms
}

// OracleTickEvent is a reference price update from the oracle feed.
type OracleTickEvent struct {
	Price     float64
	Timestamp int64 // feed timestamp, ms
}

// MarketMetadata describes one tradable market window, produced by the
// discovery client once per rollover.
type MarketMetadata struct {
	MarketID   string
	Slug       string
	Expiry     time.Time
	YesAssetID string
	NoAssetID  string

	// StrikePrice is zero for up/down markets until captured at the first
	// book sync.
	StrikePrice float64
}

// FillEvent reports an execution against one of our orders. Fills arrive
// asynchronously from the execution adapter (simulated) or the user feed
// (live).
type FillEvent struct {
	OrderID   string
	Size      float64
	Price     Tick
	Timestamp int64 // ms
}
