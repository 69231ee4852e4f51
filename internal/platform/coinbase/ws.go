// Package coinbase implements the oracle reference price feed over the
// Coinbase Exchange websocket ticker channel.
package coinbase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arbalest-labs/ticktrader/internal/config"
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

type subscribeCommand struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

type tickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
}

// OracleFeed streams spot prices for one product into the trader channel.
// The feed outlives market windows; the trader applies each tick to whatever
// window is active.
type OracleFeed struct {
	cfg    config.OracleConfig
	logger *slog.Logger
	events chan<- trader.Event
}

// NewOracleFeed creates a feed for the configured product.
func NewOracleFeed(cfg config.OracleConfig, events chan<- trader.Event, logger *slog.Logger) *OracleFeed {
	return &OracleFeed{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "oracle_feed")),
		events: events,
	}
}

// Run connects and consumes ticks until the context is cancelled.
func (f *OracleFeed) Run(ctx context.Context) error {
	delay := reconnectBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := f.connect(ctx)
		if err != nil {
			f.logger.Warn("oracle feed connect failed",
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

func (f *OracleFeed) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.WsHost, nil)
	if err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	cmd := subscribeCommand{
		Type:       "subscribe",
		ProductIDs: []string{f.cfg.ProductID},
		Channels:   []string{"ticker"},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		conn.Close()
		return nil, err
	}

	f.logger.Info("oracle feed connected", slog.String("product_id", f.cfg.ProductID))
	return conn, nil
}

func (f *OracleFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go f.pingLoop(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Warn("oracle feed disconnected", slog.String("error", err.Error()))
			}
			conn.Close()
			return
		}
		f.handleMessage(ctx, data)
	}
}

func (f *OracleFeed) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
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

func (f *OracleFeed) handleMessage(ctx context.Context, data []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type != "ticker" || msg.ProductID != f.cfg.ProductID {
		return
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		f.logger.Warn("bad ticker price dropped", slog.String("price", msg.Price))
		return
	}

	ts := time.Now().UnixMilli()
	if t, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
		ts = t.UnixMilli()
	}

	select {
	case f.events <- domain.OracleTickEvent{Price: price, Timestamp: ts}:
	case <-ctx.Done():
	}
}
