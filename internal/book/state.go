// Package book reconstructs per-market orderbook state from snapshot and
// delta events and produces the immutable snapshots consumed by the strategy
// layer.
package book

import (
	"sort"
	"sync"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// State is the mutable orderbook state for one market window. It is owned by
// the ingestion side: the market feed applies book events, the oracle feed
// applies price ticks. Every mutation returns a full value-copy snapshot so
// downstream evaluation never observes a half-applied update.
type State struct {
	mu sync.Mutex

	marketID string
	slug     string
	meta     domain.MarketMetadata

	yesBids map[domain.Tick]float64
	yesAsks map[domain.Tick]float64
	noBids  map[domain.Tick]float64
	noAsks  map[domain.Tick]float64

	oraclePrice float64
	strikePrice float64
	exchangeTS  int64

	syncYes bool
	syncNo  bool
}

// New creates an empty, unsynced State for the given market.
func New(meta domain.MarketMetadata) *State {
	return &State{
		marketID:    meta.MarketID,
		slug:        meta.Slug,
		meta:        meta,
		yesBids:     make(map[domain.Tick]float64),
		yesAsks:     make(map[domain.Tick]float64),
		noBids:      make(map[domain.Tick]float64),
		noAsks:      make(map[domain.Tick]float64),
		strikePrice: meta.StrikePrice,
	}
}

// Metadata returns the market metadata this state was created from.
func (s *State) Metadata() domain.MarketMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// ApplySnapshot replaces the full book for one outcome, marks that outcome
// synced, and advances the exchange timestamp.
func (s *State) ApplySnapshot(ev domain.BookSnapshotEvent) domain.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids, asks := s.ladders(ev.Outcome)
	clear(bids)
	clear(asks)
	for _, lvl := range ev.Bids {
		if lvl.Price.Valid() && lvl.Size > 0 {
			bids[lvl.Price] = lvl.Size
		}
	}
	for _, lvl := range ev.Asks {
		if lvl.Price.Valid() && lvl.Size > 0 {
			asks[lvl.Price] = lvl.Size
		}
	}

	if ev.Outcome == domain.OutcomeYes {
		s.syncYes = true
	} else {
		s.syncNo = true
	}
	if ev.Timestamp > 0 {
		s.exchangeTS = ev.Timestamp
	}
	return s.snapshotLocked()
}

// ApplyDelta sets or removes a single price level. Deltas for an outcome
// that has not received a baseline snapshot are no-ops: without a baseline
// there is nothing coherent to delta against. The boolean reports whether
// the delta was applied.
func (s *State) ApplyDelta(ev domain.PriceDeltaEvent) (domain.MarketSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	synced := s.syncYes
	if ev.Outcome == domain.OutcomeNo {
		synced = s.syncNo
	}
	if !synced || !ev.Price.Valid() {
		return s.snapshotLocked(), false
	}

	bids, asks := s.ladders(ev.Outcome)
	ladder := bids
	if ev.Side == domain.BookSideAsk {
		ladder = asks
	}
	if ev.NewSize <= 0 {
		delete(ladder, ev.Price)
	} else {
		ladder[ev.Price] = ev.NewSize
	}
	if ev.Timestamp > 0 {
		s.exchangeTS = ev.Timestamp
	}
	return s.snapshotLocked(), true
}

// ApplyOraclePrice updates the reference price from the oracle feed.
func (s *State) ApplyOraclePrice(ev domain.OracleTickEvent) domain.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oraclePrice = ev.Price
	return s.snapshotLocked()
}

// SetStrike records the settlement strike. For up/down markets the feed
// calls this with the oracle price at the first full book sync.
func (s *State) SetStrike(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strikePrice = price
}

// Strike returns the current strike price (zero if not yet captured).
func (s *State) Strike() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strikePrice
}

// Reset clears all four ladders and both sync flags as a single step. There
// is no intermediate state where ladders are empty but flags still report
// synced. The oracle price is retained: it belongs to the feed, not the
// market window.
func (s *State) Reset(meta domain.MarketMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketID = meta.MarketID
	s.slug = meta.Slug
	s.meta = meta
	s.yesBids = make(map[domain.Tick]float64)
	s.yesAsks = make(map[domain.Tick]float64)
	s.noBids = make(map[domain.Tick]float64)
	s.noAsks = make(map[domain.Tick]float64)
	s.syncYes = false
	s.syncNo = false
	s.strikePrice = meta.StrikePrice
	s.exchangeTS = 0
}

// Snapshot returns the current state as an immutable value copy.
func (s *State) Snapshot() domain.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) ladders(o domain.Outcome) (bids, asks map[domain.Tick]float64) {
	if o == domain.OutcomeYes {
		return s.yesBids, s.yesAsks
	}
	return s.noBids, s.noAsks
}

// snapshotLocked builds the one and only snapshot shape. Every field of
// MarketSnapshot is assigned here so a dropped field shows up in review, not
// at runtime.
func (s *State) snapshotLocked() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:          s.marketID,
		Slug:              s.slug,
		Expiry:            s.meta.Expiry,
		YesBids:           sortedLevels(s.yesBids, true),
		YesAsks:           sortedLevels(s.yesAsks, false),
		NoBids:            sortedLevels(s.noBids, true),
		NoAsks:            sortedLevels(s.noAsks, false),
		OraclePrice:       s.oraclePrice,
		StrikePrice:       s.strikePrice,
		ExchangeTimestamp: s.exchangeTS,
		SyncYes:           s.syncYes,
		SyncNo:            s.syncNo,
	}
}

// sortedLevels copies a ladder map into a best-first slice: descending for
// bids, ascending for asks.
func sortedLevels(ladder map[domain.Tick]float64, descending bool) []domain.Level {
	if len(ladder) == 0 {
		return nil
	}
	out := make([]domain.Level, 0, len(ladder))
	for price, size := range ladder {
		out = append(out, domain.Level{Price: price, Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}
