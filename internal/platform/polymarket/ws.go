// Package polymarket implements the venue clients: the market-data and user
// websocket feeds, the Gamma discovery client, and the CLOB order client.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/trader"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	reconnectBase = 2 * time.Second
	reconnectMax  = 60 * time.Second
)

// MarketFeed maintains the market-channel websocket for the active window's
// two asset ids and translates book and price_change messages into domain
// events on the trader channel. It reconnects with capped exponential backoff
// and replays the subscription after every reconnect.
type MarketFeed struct {
	host   string
	logger *slog.Logger
	events chan<- trader.Event

	mu     sync.Mutex
	conn   *websocket.Conn
	assets map[string]domain.Outcome
}

// NewMarketFeed creates a feed for the given websocket host. SetMarket must
// be called before messages produce events.
func NewMarketFeed(host string, events chan<- trader.Event, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		host:   host,
		logger: logger.With(slog.String("component", "market_feed")),
		events: events,
		assets: make(map[string]domain.Outcome),
	}
}

// SetMarket switches the feed to a new window's asset ids. The venue offers
// no unsubscribe, so the current connection is dropped and the reconnect loop
// resubscribes with the new pair. Messages for the old assets that race the
// switch find no mapping and are discarded.
func (f *MarketFeed) SetMarket(meta domain.MarketMetadata) error {
	f.mu.Lock()
	f.assets = map[string]domain.Outcome{
		meta.YesAssetID: domain.OutcomeYes,
		meta.NoAssetID:  domain.OutcomeNo,
	}
	conn := f.conn
	f.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	f.logger.Info("market feed switched",
		slog.String("market_id", meta.MarketID),
		slog.String("slug", meta.Slug),
	)
	return nil
}

// Run connects and consumes messages until the context is cancelled.
func (f *MarketFeed) Run(ctx context.Context) error {
	delay := reconnectBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := f.connect(ctx)
		if err != nil {
			f.logger.Warn("market feed connect failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMax)
			continue
		}
		delay = reconnectBase

		f.readLoop(ctx, conn)
	}
}

func (f *MarketFeed) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.host, nil)
	if err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	f.mu.Lock()
	f.conn = conn
	ids := make([]string, 0, len(f.assets))
	for id := range f.assets {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	if len(ids) > 0 {
		cmd := wsCommand{Type: "market", AssetsIDs: ids}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(cmd); err != nil {
			conn.Close()
			return nil, err
		}
	}

	f.logger.Info("market feed connected", slog.Int("assets", len(ids)))
	return conn, nil
}

// readLoop consumes until the connection dies, pinging on the side to keep
// the venue's idle timer at bay.
func (f *MarketFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go pingLoop(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Warn("market feed disconnected", slog.String("error", err.Error()))
			}
			conn.Close()
			return
		}
		f.handleMessage(ctx, data)
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleMessage routes one frame. The market channel batches events into JSON
// arrays; single objects appear on subscription acks.
func (f *MarketFeed) handleMessage(ctx context.Context, data []byte) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return
	}

	if data[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			f.logger.Debug("undecodable batch dropped", slog.String("error", err.Error()))
			return
		}
		for _, raw := range batch {
			f.handleEvent(ctx, raw)
		}
		return
	}
	f.handleEvent(ctx, data)
}

func (f *MarketFeed) handleEvent(ctx context.Context, raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	switch env.EventType {
	case "book":
		var msg bookMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.logger.Warn("malformed book message", slog.String("error", err.Error()))
			return
		}
		f.emitBook(ctx, msg)

	case "price_change":
		var msg priceChangeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.logger.Warn("malformed price_change message", slog.String("error", err.Error()))
			return
		}
		f.emitDeltas(ctx, msg)

	default:
		// last_trade_price, tick_size_change and acks carry nothing the
		// book needs.
	}
}

func (f *MarketFeed) outcomeFor(assetID string) (domain.Outcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.assets[assetID]
	return o, ok
}

func (f *MarketFeed) emitBook(ctx context.Context, msg bookMessage) {
	outcome, ok := f.outcomeFor(msg.AssetID)
	if !ok {
		return
	}

	bids, err := convertLevels(msg.Bids)
	if err != nil {
		f.logger.Warn("book bids dropped", slog.String("error", err.Error()))
		return
	}
	asks, err := convertLevels(msg.Asks)
	if err != nil {
		f.logger.Warn("book asks dropped", slog.String("error", err.Error()))
		return
	}

	f.emit(ctx, domain.BookSnapshotEvent{
		Outcome:   outcome,
		Bids:      bids,
		Asks:      asks,
		Timestamp: parseTimestampMS(msg.Timestamp),
	})
}

// emitDeltas converts one price_change batch. The venue reports the new total
// size at the level, BUY for the bid ladder and SELL for the ask ladder.
func (f *MarketFeed) emitDeltas(ctx context.Context, msg priceChangeMessage) {
	outcome, ok := f.outcomeFor(msg.AssetID)
	if !ok {
		return
	}
	ts := parseTimestampMS(msg.Timestamp)

	for _, ch := range msg.Changes {
		price, err := parseTick(ch.Price)
		if err != nil {
			f.logger.Warn("price_change dropped", slog.String("error", err.Error()))
			continue
		}
		size, err := parseSize(ch.Size)
		if err != nil {
			f.logger.Warn("price_change dropped", slog.String("error", err.Error()))
			continue
		}

		side := domain.BookSideBid
		if ch.Side == "SELL" {
			side = domain.BookSideAsk
		}
		f.emit(ctx, domain.PriceDeltaEvent{
			Outcome:   outcome,
			Side:      side,
			Price:     price,
			NewSize:   size,
			Timestamp: ts,
		})
	}
}

func (f *MarketFeed) emit(ctx context.Context, ev trader.Event) {
	select {
	case f.events <- ev:
	case <-ctx.Done():
	}
}

func convertLevels(in []wsLevel) ([]domain.Level, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]domain.Level, 0, len(in))
	for _, lvl := range in {
		price, err := parseTick(lvl.Price)
		if err != nil {
			return nil, err
		}
		size, err := parseSize(lvl.Size)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Level{Price: price, Size: size})
	}
	return out, nil
}
