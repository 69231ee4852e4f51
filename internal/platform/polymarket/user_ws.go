package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/trader"
)

// OrderIndex resolves venue order ids to locally tracked orders. The user
// channel reports every party to a trade; only fills against our own orders
// become events.
type OrderIndex interface {
	GetByAPIOrderID(apiID string) (domain.Order, bool)
}

// UserFeed maintains the authenticated user-channel websocket and turns trade
// reports against our orders into fill events. Live mode only; in simulation
// the execution adapter produces fills itself.
type UserFeed struct {
	host   string
	auth   wsAuth
	logger *slog.Logger
	events chan<- trader.Event
	index  OrderIndex

	mu      sync.Mutex
	conn    *websocket.Conn
	markets []string

	// seen dedupes trade ids: the venue re-sends a trade on every
	// settlement status transition.
	seen map[string]struct{}
}

// NewUserFeed creates a user feed with the given CLOB credentials.
func NewUserFeed(cfg config.PolymarketConfig, index OrderIndex, events chan<- trader.Event, logger *slog.Logger) *UserFeed {
	return &UserFeed{
		host: cfg.UserWsHost,
		auth: wsAuth{
			APIKey:     cfg.APIKey,
			Secret:     cfg.APISecret,
			Passphrase: cfg.APIPassphrase,
		},
		logger: logger.With(slog.String("component", "user_feed")),
		events: events,
		index:  index,
		seen:   make(map[string]struct{}),
	}
}

// SetMarket scopes the subscription to the new window's market. Drops the
// connection so the reconnect loop resubscribes.
func (f *UserFeed) SetMarket(meta domain.MarketMetadata) error {
	f.mu.Lock()
	f.markets = []string{meta.MarketID}
	f.seen = make(map[string]struct{})
	conn := f.conn
	f.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

// Run connects and consumes trade reports until the context is cancelled.
func (f *UserFeed) Run(ctx context.Context) error {
	delay := reconnectBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := f.connect(ctx)
		if err != nil {
			f.logger.Warn("user feed connect failed",
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

func (f *UserFeed) connect(ctx context.Context) (*websocket.Conn, error) {
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
	markets := append([]string(nil), f.markets...)
	f.mu.Unlock()

	cmd := wsCommand{Type: "user", Auth: &f.auth, Markets: markets}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		conn.Close()
		return nil, err
	}

	f.logger.Info("user feed connected", slog.Int("markets", len(markets)))
	return conn, nil
}

func (f *UserFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go pingLoop(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Warn("user feed disconnected", slog.String("error", err.Error()))
			}
			conn.Close()
			return
		}
		f.handleMessage(ctx, data)
	}
}

func (f *UserFeed) handleMessage(ctx context.Context, data []byte) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return
	}

	if data[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return
		}
		for _, raw := range batch {
			f.handleEvent(ctx, raw)
		}
		return
	}
	f.handleEvent(ctx, data)
}

func (f *UserFeed) handleEvent(ctx context.Context, raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}
	if env.EventType != "trade" {
		// "order" placement and cancellation acks mirror state we
		// already hold in the order ledger.
		return
	}

	var msg userTradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.logger.Warn("malformed trade message", slog.String("error", err.Error()))
		return
	}
	f.emitFills(ctx, msg)
}

// emitFills converts one trade report. The first MATCHED report for a trade
// id is authoritative; later re-sends only track on-chain settlement.
func (f *UserFeed) emitFills(ctx context.Context, msg userTradeMessage) {
	if !strings.EqualFold(msg.Status, "MATCHED") {
		return
	}

	f.mu.Lock()
	if _, dup := f.seen[msg.ID]; dup {
		f.mu.Unlock()
		return
	}
	f.seen[msg.ID] = struct{}{}
	f.mu.Unlock()

	ts := parseTimestampMS(msg.Timestamp)

	if _, ours := f.index.GetByAPIOrderID(msg.TakerOrderID); ours {
		size, err1 := parseSize(msg.Size)
		price, err2 := parseTick(msg.Price)
		if err1 != nil || err2 != nil {
			f.logger.Warn("taker fill dropped, bad numbers", slog.String("trade_id", msg.ID))
		} else {
			f.emit(ctx, domain.FillEvent{
				OrderID:   msg.TakerOrderID,
				Size:      size,
				Price:     price,
				Timestamp: ts,
			})
		}
	}

	for _, maker := range msg.MakerOrders {
		if _, ours := f.index.GetByAPIOrderID(maker.OrderID); !ours {
			continue
		}
		size, err1 := parseSize(maker.MatchedAmount)
		price, err2 := parseTick(maker.Price)
		if err1 != nil || err2 != nil {
			f.logger.Warn("maker fill dropped, bad numbers",
				slog.String("trade_id", msg.ID),
				slog.String("order_id", maker.OrderID),
			)
			continue
		}
		f.emit(ctx, domain.FillEvent{
			OrderID:   maker.OrderID,
			Size:      size,
			Price:     price,
			Timestamp: ts,
		})
	}
}

func (f *UserFeed) emit(ctx context.Context, ev trader.Event) {
	select {
	case f.events <- ev:
	case <-ctx.Done():
	}
}
