package handler

import (
	"net/http"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/strategy"
)

// EngineView is the read-only slice of the trader the status API needs.
type EngineView interface {
	Market() domain.MarketSnapshot
	Position() domain.PositionSnapshot
	Halted() (bool, string)
}

// StatusHandler exposes the live engine state: the active window, top of
// book, inventory, and locked profit.
type StatusHandler struct {
	engine EngineView
}

// NewStatusHandler creates a StatusHandler over the given engine view.
func NewStatusHandler(engine EngineView) *StatusHandler {
	return &StatusHandler{engine: engine}
}

type positionStatus struct {
	QtyYes     float64 `json:"qty_yes"`
	QtyNo      float64 `json:"qty_no"`
	AvgYes     float64 `json:"avg_yes_ticks"`
	AvgNo      float64 `json:"avg_no_ticks"`
	PendingYes bool    `json:"pending_yes"`
	PendingNo  bool    `json:"pending_no"`
}

type statusResponse struct {
	MarketID string `json:"market_id"`
	Slug     string `json:"slug"`
	Expiry   string `json:"expiry,omitempty"`
	Synced   bool   `json:"synced"`

	YesBid int `json:"yes_bid_ticks"`
	YesAsk int `json:"yes_ask_ticks"`
	NoBid  int `json:"no_bid_ticks"`
	NoAsk  int `json:"no_ask_ticks"`

	Oracle float64 `json:"oracle_price"`
	Strike float64 `json:"strike_price"`

	Position     positionStatus `json:"position"`
	LockedProfit float64        `json:"locked_profit_usd"`

	Halted     bool   `json:"halted"`
	HaltReason string `json:"halt_reason,omitempty"`
}

// GetStatus returns the current engine state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ms := h.engine.Market()
	ps := h.engine.Position()
	halted, reason := h.engine.Halted()

	resp := statusResponse{
		MarketID:     ms.MarketID,
		Slug:         ms.Slug,
		Synced:       ms.Synced(),
		Oracle:       ms.OraclePrice,
		Strike:       ms.StrikePrice,
		LockedProfit: strategy.LockedProfit(ms, ps),
		Halted:       halted,
		HaltReason:   reason,
		Position: positionStatus{
			QtyYes:     ps.Qy,
			QtyNo:      ps.Qn,
			PendingYes: ps.PendingYes,
			PendingNo:  ps.PendingNo,
		},
	}
	if !ms.Expiry.IsZero() {
		resp.Expiry = ms.Expiry.UTC().Format(time.RFC3339)
	}
	if avg, ok := ps.AvgCost(domain.OutcomeYes); ok {
		resp.Position.AvgYes = avg
	}
	if avg, ok := ps.AvgCost(domain.OutcomeNo); ok {
		resp.Position.AvgNo = avg
	}
	if bid, ok := ms.BestBid(domain.OutcomeYes); ok {
		resp.YesBid = int(bid.Price)
	}
	if ask, ok := ms.BestAsk(domain.OutcomeYes); ok {
		resp.YesAsk = int(ask.Price)
	}
	if bid, ok := ms.BestBid(domain.OutcomeNo); ok {
		resp.NoBid = int(bid.Price)
	}
	if ask, ok := ms.BestAsk(domain.OutcomeNo); ok {
		resp.NoAsk = int(ask.Price)
	}

	writeJSON(w, http.StatusOK, resp)
}
