package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// OrdersHandler serves persisted order records. When no market is given it
// falls back to the window the engine is currently trading.
type OrdersHandler struct {
	store  domain.OrderStore
	fills  domain.FillStore
	engine EngineView
	logger *slog.Logger
}

// NewOrdersHandler creates an OrdersHandler.
func NewOrdersHandler(store domain.OrderStore, fills domain.FillStore, engine EngineView, logger *slog.Logger) *OrdersHandler {
	return &OrdersHandler{store: store, fills: fills, engine: engine, logger: logger}
}

type orderResponse struct {
	ID           string  `json:"id"`
	APIOrderID   string  `json:"api_order_id,omitempty"`
	Outcome      string  `json:"outcome"`
	Direction    string  `json:"direction"`
	Price        int     `json:"price_ticks"`
	Size         float64 `json:"size"`
	FilledSize   float64 `json:"filled_size"`
	AvgFillPrice float64 `json:"avg_fill_price_ticks"`
	Status       string  `json:"status"`
	Quote        bool    `json:"quote"`
	CreatedAt    string  `json:"created_at"`
}

// ListOrders returns the persisted orders for a market window.
// GET /api/orders?market=ID&limit=N
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	marketID := r.URL.Query().Get("market")
	if marketID == "" {
		marketID = h.engine.Market().MarketID
	}
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "no market selected")
		return
	}
	limit := parseLimit(r, 100, 500)

	orders, err := h.store.ListByMarket(r.Context(), marketID, limit)
	if err != nil {
		h.logger.Error("order list failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse{
			ID:           o.ID,
			APIOrderID:   o.APIOrderID,
			Outcome:      string(o.Outcome),
			Direction:    string(o.Direction),
			Price:        int(o.Price),
			Size:         o.Size,
			FilledSize:   o.FilledSize,
			AvgFillPrice: o.AvgFillPrice,
			Status:       string(o.Status),
			Quote:        o.Quote,
			CreatedAt:    o.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": marketID,
		"orders":    out,
		"count":     len(out),
	})
}

type fillResponse struct {
	Size      float64 `json:"size"`
	Price     int     `json:"price_ticks"`
	Timestamp int64   `json:"ts_ms"`
}

// ListOrderFills returns every recorded fill of one order, oldest first.
// GET /api/orders/{id}/fills
func (h *OrdersHandler) ListOrderFills(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "no order id")
		return
	}

	fills, err := h.fills.ListByOrder(r.Context(), orderID)
	if err != nil {
		h.logger.Error("fill list failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list fills")
		return
	}

	out := make([]fillResponse, 0, len(fills))
	for _, f := range fills {
		out = append(out, fillResponse{
			Size:      f.Size,
			Price:     int(f.Price),
			Timestamp: f.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": orderID,
		"fills":    out,
		"count":    len(out),
	})
}
