// Package journal persists engine activity to the configured backends:
// orders and fills to PostgreSQL, round results at rollover, the live book
// mirrored to Redis, and events published on the bus. All writes happen on a
// dedicated worker so the trading loop never blocks on storage.
package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

const (
	channelFills  = "ticktrader:fills"
	channelHalts  = "ticktrader:halts"
	channelRounds = "ticktrader:rounds"
	fillStream    = "ticktrader:journal"

	writeTimeout   = 5 * time.Second
	mirrorInterval = 500 * time.Millisecond
)

// Bus is the publishing surface the journal needs. The Redis event bus
// satisfies it.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// Stores groups the persistence backends. Any field may be nil; the journal
// skips what is not configured.
type Stores struct {
	Orders domain.OrderStore
	Fills  domain.FillStore
	Rounds domain.RoundStore
}

// Journal is a trader observer that writes asynchronously. Observer callbacks
// enqueue; a single worker drains. When the queue backs up, entries are
// dropped with a warning rather than stalling the trading loop.
type Journal struct {
	stores Stores
	cache  domain.BookCache
	bus    Bus
	logger *slog.Logger

	tasks chan func(ctx context.Context)

	mu       sync.Mutex
	marketID string

	// worker-owned
	lastMirror time.Time
}

// New creates a journal. cache and bus may be nil.
func New(stores Stores, cache domain.BookCache, bus Bus, logger *slog.Logger) *Journal {
	return &Journal{
		stores: stores,
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "journal")),
		tasks:  make(chan func(ctx context.Context), 1024),
	}
}

// Run drains the write queue until the context is cancelled.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-j.tasks:
			tctx, cancel := context.WithTimeout(ctx, writeTimeout)
			task(tctx)
			cancel()
		}
	}
}

func (j *Journal) enqueue(task func(ctx context.Context)) {
	select {
	case j.tasks <- task:
	default:
		j.logger.Warn("journal queue full, entry dropped")
	}
}

func (j *Journal) currentMarket() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.marketID
}

// OnSnapshot tracks the active window and mirrors the book to the cache,
// throttled so delta storms do not turn into Redis storms.
func (j *Journal) OnSnapshot(_ context.Context, ms domain.MarketSnapshot) {
	j.mu.Lock()
	j.marketID = ms.MarketID
	j.mu.Unlock()

	if j.cache == nil {
		return
	}
	j.enqueue(func(ctx context.Context) {
		if time.Since(j.lastMirror) < mirrorInterval {
			return
		}
		j.lastMirror = time.Now()

		if err := j.cache.SetSnapshot(ctx, ms.MarketID, domain.OutcomeYes, ms.YesBids, ms.YesAsks, ms.ExchangeTimestamp); err != nil {
			j.logger.Warn("book mirror failed", slog.String("error", err.Error()))
			return
		}
		if err := j.cache.SetSnapshot(ctx, ms.MarketID, domain.OutcomeNo, ms.NoBids, ms.NoAsks, ms.ExchangeTimestamp); err != nil {
			j.logger.Warn("book mirror failed", slog.String("error", err.Error()))
		}
	})
}

// OnDelta mirrors one level change incrementally. The cache-side script
// updates the level and recomputes the stored BBO in one round trip, so the
// mirror stays current between throttled full snapshots.
func (j *Journal) OnDelta(_ context.Context, ev domain.PriceDeltaEvent, ms domain.MarketSnapshot) {
	j.mu.Lock()
	j.marketID = ms.MarketID
	j.mu.Unlock()

	if j.cache == nil {
		return
	}
	j.enqueue(func(ctx context.Context) {
		if err := j.cache.UpdateLevel(ctx, ms.MarketID, ev.Outcome, ev.Side, ev.Price, ev.NewSize); err != nil {
			j.logger.Warn("level mirror failed", slog.String("error", err.Error()))
		}
	})
}

type fillRecord struct {
	MarketID   string  `json:"market_id"`
	OrderID    string  `json:"order_id"`
	Outcome    string  `json:"outcome"`
	Direction  string  `json:"direction"`
	Size       float64 `json:"size"`
	PriceTicks int     `json:"price_ticks"`
	Status     string  `json:"status"`
	Timestamp  int64   `json:"ts_ms"`
}

// OnFill upserts the order row, records the fill, and publishes it.
func (j *Journal) OnFill(_ context.Context, ev domain.FillEvent, o domain.Order) {
	marketID := j.currentMarket()
	j.enqueue(func(ctx context.Context) {
		if j.stores.Orders != nil {
			if err := j.stores.Orders.Create(ctx, marketID, o); err != nil {
				j.logger.Error("order upsert failed",
					slog.String("order_id", o.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if j.stores.Fills != nil {
			fill := domain.Fill{Size: ev.Size, Price: ev.Price, Timestamp: ev.Timestamp}
			if err := j.stores.Fills.Insert(ctx, marketID, o.ID, fill); err != nil {
				j.logger.Error("fill insert failed",
					slog.String("order_id", o.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if j.bus == nil {
			return
		}
		payload, err := json.Marshal(fillRecord{
			MarketID:   marketID,
			OrderID:    o.ID,
			Outcome:    string(o.Outcome),
			Direction:  string(o.Direction),
			Size:       ev.Size,
			PriceTicks: int(ev.Price),
			Status:     string(o.Status),
			Timestamp:  ev.Timestamp,
		})
		if err != nil {
			return
		}
		if err := j.bus.Publish(ctx, channelFills, payload); err != nil {
			j.logger.Warn("fill publish failed", slog.String("error", err.Error()))
		}
		if err := j.bus.StreamAppend(ctx, fillStream, payload); err != nil {
			j.logger.Warn("fill stream append failed", slog.String("error", err.Error()))
		}
	})
}

// OnSignal is a no-op: signals either become orders (journaled at fill time)
// or evaporate on the next evaluation, and neither is worth a row.
func (j *Journal) OnSignal(context.Context, domain.TradeSignal) {}

// OnHalt publishes the halt so monitors see it the moment it latches.
func (j *Journal) OnHalt(_ context.Context, reason string) {
	if j.bus == nil {
		return
	}
	marketID := j.currentMarket()
	j.enqueue(func(ctx context.Context) {
		payload, _ := json.Marshal(map[string]string{
			"reason":    reason,
			"market_id": marketID,
		})
		if err := j.bus.Publish(ctx, channelHalts, payload); err != nil {
			j.logger.Warn("halt publish failed", slog.String("error", err.Error()))
		}
	})
}

// OnRollover records the closed round.
func (j *Journal) OnRollover(_ context.Context, round domain.Round) {
	j.enqueue(func(ctx context.Context) {
		if j.stores.Rounds != nil {
			if err := j.stores.Rounds.Insert(ctx, round); err != nil {
				j.logger.Error("round insert failed",
					slog.String("market_id", round.MarketID),
					slog.String("error", err.Error()),
				)
			}
		}
		if j.bus == nil {
			return
		}
		payload, err := json.Marshal(round)
		if err != nil {
			return
		}
		if err := j.bus.Publish(ctx, channelRounds, payload); err != nil {
			j.logger.Warn("round publish failed", slog.String("error", err.Error()))
		}
	})
}
