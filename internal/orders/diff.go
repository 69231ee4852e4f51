package orders

import (
	"log/slog"
	"sort"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// ActionType distinguishes the two reconciliation outputs.
type ActionType string

const (
	ActionPlace  ActionType = "place"
	ActionCancel ActionType = "cancel"
)

// Action is one order operation the executor should perform.
type Action struct {
	Type    ActionType
	Outcome domain.Outcome

	// OrderID identifies the order to cancel. Empty for places.
	OrderID string

	Price domain.Tick
	Size  float64
}

// Diff reconciles the live orders on one side against the ideal quote ladder.
type Diff struct {
	cfg    config.EngineConfig
	logger *slog.Logger
}

// NewDiff creates a reconciler.
func NewDiff(cfg config.EngineConfig, logger *slog.Logger) *Diff {
	return &Diff{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "diff")),
	}
}

// Reconcile compares live orders against the ideal ladder for one outcome and
// returns the actions that close the gap. Two phases:
//
// Cancel stale: live orders at prices no longer in the ladder are cancelled.
//
// Reconcile rungs: an empty rung is placed at target size; an underfilled
// rung gets an additional order for the delta, preserving the resting order's
// queue priority; a rung oversized past the hysteresis band is cancelled and
// replaced; anything inside the band holds.
//
// Running Reconcile a second time after its actions have been applied yields
// no actions.
func (d *Diff) Reconcile(outcome domain.Outcome, live []domain.Order, ideal []domain.Level) []Action {
	inLadder := make(map[domain.Tick]float64, len(ideal))
	for _, rung := range ideal {
		inLadder[rung.Price] = rung.Size
	}

	var actions []Action

	// Deterministic cancel order regardless of ledger iteration order.
	sorted := make([]domain.Order, len(live))
	copy(sorted, live)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	atPrice := make(map[domain.Tick]float64)
	for _, o := range sorted {
		if !o.Live() {
			continue
		}
		if _, ok := inLadder[o.Price]; !ok {
			actions = append(actions, Action{
				Type:    ActionCancel,
				Outcome: outcome,
				OrderID: o.ID,
				Price:   o.Price,
			})
			continue
		}
		atPrice[o.Price] += o.Remaining()
	}

	for _, rung := range ideal {
		current := atPrice[rung.Price]
		target := rung.Size

		switch {
		case current <= domain.SizeEpsilon:
			if target >= d.cfg.MinOrderSize {
				actions = append(actions, Action{
					Type:    ActionPlace,
					Outcome: outcome,
					Price:   rung.Price,
					Size:    target,
				})
			}

		case current < target-domain.SizeEpsilon:
			if delta := target - current; delta >= d.cfg.MinOrderSize {
				actions = append(actions, Action{
					Type:    ActionPlace,
					Outcome: outcome,
					Price:   rung.Price,
					Size:    delta,
				})
			}

		case current > target*(1+d.cfg.Hysteresis):
			// Shrink: cancel everything at the rung and re-place the target.
			for _, o := range sorted {
				if o.Live() && o.Price == rung.Price {
					actions = append(actions, Action{
						Type:    ActionCancel,
						Outcome: outcome,
						OrderID: o.ID,
						Price:   o.Price,
					})
				}
			}
			if target >= d.cfg.MinOrderSize {
				actions = append(actions, Action{
					Type:    ActionPlace,
					Outcome: outcome,
					Price:   rung.Price,
					Size:    target,
				})
			}
		}
	}

	if len(actions) > 0 {
		d.logger.Debug("reconciled ladder",
			slog.String("outcome", string(outcome)),
			slog.Int("live", len(live)),
			slog.Int("rungs", len(ideal)),
			slog.Int("actions", len(actions)),
		)
	}
	return actions
}
