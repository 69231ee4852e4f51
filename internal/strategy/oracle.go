package strategy

import (
	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// ModelPrice estimates the fair contract price from the oracle feed: 500
// ticks when the oracle sits on the strike, drifting toward the extremes as
// the reference price moves away. Sensitivity tightens as expiry approaches
// because the same dollar gap is harder to close in less time.
//
// ok is false when the oracle price, the strike, or the exchange timestamp
// has not been observed yet.
func ModelPrice(ms domain.MarketSnapshot, cfg config.EngineConfig) (float64, bool) {
	if ms.OraclePrice == 0 || ms.StrikePrice <= 0 {
		return 0, false
	}
	rem, ok := ms.TimeRemaining()
	if !ok {
		return 0, false
	}

	scaling := cfg.BaseSense * (1 + rem.Minutes()/15)
	model := 500 + (ms.OraclePrice-ms.StrikePrice)/scaling

	if model < 10 {
		model = 10
	}
	if model > 990 {
		model = 990
	}
	return model, true
}

// BlockBuy reports whether the oracle filter forbids adding inventory on the
// given outcome: YES buys are blocked when the model price says the oracle is
// well below the strike, NO buys when it is well above. Missing model data
// never blocks.
func BlockBuy(o domain.Outcome, ms domain.MarketSnapshot, cfg config.EngineConfig) bool {
	model, ok := ModelPrice(ms, cfg)
	if !ok {
		return false
	}
	if o == domain.OutcomeYes {
		return model < cfg.OracleBlockYes*1000
	}
	return model > cfg.OracleBlockNo*1000
}
