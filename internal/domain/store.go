package domain

import (
	"context"
	"io"
	"time"
)

// Round summarizes one completed market window: what we ended up holding,
// what it cost, and the realized result once the window settled or rolled
// over.
type Round struct {
	MarketID    string
	Slug        string
	Expiry      time.Time
	Qy          float64
	Qn          float64
	Cy          float64
	Cn          float64
	RealizedUSD float64
	Halted      bool
	HaltReason  string
	ClosedAt    time.Time
}

// OrderStore persists order lifecycle records.
type OrderStore interface {
	Create(ctx context.Context, marketID string, order Order) error
	ListByMarket(ctx context.Context, marketID string, limit int) ([]Order, error)
}

// FillStore persists individual fills.
type FillStore interface {
	Insert(ctx context.Context, marketID, orderID string, fill Fill) error
	ListByOrder(ctx context.Context, orderID string) ([]Fill, error)
}

// RoundStore persists per-window results.
type RoundStore interface {
	Insert(ctx context.Context, round Round) error
	ListRecent(ctx context.Context, limit int) ([]Round, error)
}

// BookCache mirrors the live orderbook into a shared cache so external
// monitors can read quotes without touching the trading process.
type BookCache interface {
	SetSnapshot(ctx context.Context, marketID string, outcome Outcome, bids, asks []Level, ts int64) error
	UpdateLevel(ctx context.Context, marketID string, outcome Outcome, side BookSide, price Tick, size float64) error
}

// EventBus publishes engine events (fills, signals, halts) for external
// consumers. Consumers subscribe over the transport directly; the engine only
// ever writes.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
