package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// RoundsHandler serves the completed-window history out of the round store.
type RoundsHandler struct {
	store  domain.RoundStore
	logger *slog.Logger
}

// NewRoundsHandler creates a RoundsHandler.
func NewRoundsHandler(store domain.RoundStore, logger *slog.Logger) *RoundsHandler {
	return &RoundsHandler{store: store, logger: logger}
}

type roundResponse struct {
	MarketID    string  `json:"market_id"`
	Slug        string  `json:"slug"`
	Expiry      string  `json:"expiry"`
	QtyYes      float64 `json:"qty_yes"`
	QtyNo       float64 `json:"qty_no"`
	CostYes     float64 `json:"cost_yes"`
	CostNo      float64 `json:"cost_no"`
	RealizedUSD float64 `json:"realized_usd"`
	Halted      bool    `json:"halted"`
	HaltReason  string  `json:"halt_reason,omitempty"`
	ClosedAt    string  `json:"closed_at"`
}

// ListRounds returns the most recently closed windows, newest first.
// GET /api/rounds?limit=N
func (h *RoundsHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	rounds, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("round list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list rounds")
		return
	}

	out := make([]roundResponse, 0, len(rounds))
	for _, rd := range rounds {
		out = append(out, roundResponse{
			MarketID:    rd.MarketID,
			Slug:        rd.Slug,
			Expiry:      rd.Expiry.UTC().Format(time.RFC3339),
			QtyYes:      rd.Qy,
			QtyNo:       rd.Qn,
			CostYes:     rd.Cy,
			CostNo:      rd.Cn,
			RealizedUSD: rd.RealizedUSD,
			Halted:      rd.Halted,
			HaltReason:  rd.HaltReason,
			ClosedAt:    rd.ClosedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": out, "count": len(out)})
}
