package strategy

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return New(config.Defaults().Engine, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func syncedSnap(askYes, askNo domain.Level) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID: "m1",
		YesAsks:  []domain.Level{askYes},
		NoAsks:   []domain.Level{askNo},
		SyncYes:  true,
		SyncNo:   true,
	}
}

// withClock stamps the snapshot so TimeRemaining reports the given duration.
func withClock(ms domain.MarketSnapshot, remaining time.Duration) domain.MarketSnapshot {
	ms.ExchangeTimestamp = testBase.UnixMilli()
	ms.Expiry = testBase.Add(remaining)
	return ms
}

func TestUnsyncedBookProducesNothing(t *testing.T) {
	e := testEngine()
	ms := syncedSnap(domain.Level{Price: 400, Size: 50}, domain.Level{Price: 400, Size: 50})
	ms.SyncNo = false
	d := e.Evaluate(ms, domain.PositionSnapshot{})
	if d.Halt || len(d.Signals) != 0 {
		t.Errorf("unsynced book produced decision %+v", d)
	}
}

func TestArbitrageFiresBelowTargetPair(t *testing.T) {
	e := testEngine()

	// 480 + 495 = 975 < 980: both legs fire.
	ms := syncedSnap(domain.Level{Price: 480, Size: 30}, domain.Level{Price: 495, Size: 40})
	d := e.Evaluate(ms, domain.PositionSnapshot{})
	if len(d.Signals) != 2 {
		t.Fatalf("got %d signals, want 2", len(d.Signals))
	}
	for _, s := range d.Signals {
		if s.Priority != domain.PriorityArbitrage {
			t.Errorf("signal priority = %d, want 0", s.Priority)
		}
		if s.Direction != domain.DirectionBuy {
			t.Errorf("signal direction = %s, want buy", s.Direction)
		}
		if s.Size != 30 {
			t.Errorf("signal size = %v, want thinner ask 30", s.Size)
		}
	}

	// 485 + 495 = 980: not strictly below the target, no arbitrage.
	ms = syncedSnap(domain.Level{Price: 485, Size: 30}, domain.Level{Price: 495, Size: 40})
	if d := e.Evaluate(ms, domain.PositionSnapshot{}); len(d.Signals) != 0 {
		t.Errorf("arbitrage fired at pair sum 980: %+v", d.Signals)
	}
}

func TestArbitrageSuppressedWhenPendingOrPaired(t *testing.T) {
	cfg := config.Defaults().Engine
	ms := syncedSnap(domain.Level{Price: 480, Size: 30}, domain.Level{Price: 495, Size: 40})

	if s := checkArbitrage(ms, domain.PositionSnapshot{PendingYes: true}, cfg); s != nil {
		t.Error("arbitrage fired with a pending order in flight")
	}
	paired := domain.PositionSnapshot{Qy: 10, Cy: 4800, Qn: 10, Cn: 4950}
	if s := checkArbitrage(ms, paired, cfg); s != nil {
		t.Error("arbitrage fired with both legs already held")
	}
}

func TestStopLossFlattensSoloPosition(t *testing.T) {
	e := testEngine()
	ms := syncedSnap(domain.Level{Price: 300, Size: 50}, domain.Level{Price: 760, Size: 50})
	ms.YesBids = []domain.Level{{Price: 240, Size: 80}}

	ps := domain.PositionSnapshot{Qy: 20, Cy: 20 * 400}
	d := e.Evaluate(ms, ps)
	if len(d.Signals) != 1 {
		t.Fatalf("got %d signals, want 1 panic sell", len(d.Signals))
	}
	s := d.Signals[0]
	if s.Direction != domain.DirectionSell || s.Outcome != domain.OutcomeYes {
		t.Errorf("got %s %s, want sell YES", s.Direction, s.Outcome)
	}
	if s.Size != 20 {
		t.Errorf("panic sell size = %v, want full position 20", s.Size)
	}

	// Bid at the stop level exactly does not trigger.
	ms.YesBids = []domain.Level{{Price: 250, Size: 80}}
	if sells := checkStopLoss(ms, ps, e.cfg); sells != nil {
		t.Error("stop loss triggered at the boundary bid")
	}

	// A paired position never stop-losses.
	paired := domain.PositionSnapshot{Qy: 20, Cy: 8000, Qn: 20, Cn: 8000}
	if sells := checkStopLoss(ms, paired, e.cfg); sells != nil {
		t.Error("stop loss triggered on a paired position")
	}
}

func TestStopLossWaitsOnPendingSell(t *testing.T) {
	e := testEngine()
	ms := syncedSnap(domain.Level{Price: 300, Size: 50}, domain.Level{Price: 760, Size: 50})
	ms.YesBids = []domain.Level{{Price: 200, Size: 80}}

	// The full-size panic sell is already in flight; subsequent book events
	// must not queue a second one for the same shares.
	ps := domain.PositionSnapshot{Qy: 40, Cy: 40 * 400, PendingYes: true}
	if sells := checkStopLoss(ms, ps, e.cfg); sells != nil {
		t.Errorf("duplicate panic sell emitted while one is pending: %+v", sells)
	}

	// Once the pending order resolves without flattening, it fires again.
	ps.PendingYes = false
	sells := checkStopLoss(ms, ps, e.cfg)
	if len(sells) != 1 || sells[0].Size != 40 {
		t.Errorf("got %+v, want one full-size sell of 40", sells)
	}
}

func TestProfitLockHalts(t *testing.T) {
	e := testEngine()
	ms := syncedSnap(domain.Level{Price: 500, Size: 50}, domain.Level{Price: 500, Size: 50})

	// 10 pairs pay 10000 ticks against 8000 cost: $2 locked.
	ps := domain.PositionSnapshot{Qy: 10, Cy: 4000, Qn: 10, Cn: 4000}
	d := e.Evaluate(ms, ps)
	if !d.Halt || d.HaltReason != "profit_lock" {
		t.Errorf("decision = %+v, want profit_lock halt", d)
	}

	// Below the lock threshold trading continues.
	thin := domain.PositionSnapshot{Qy: 10, Cy: 4900, Qn: 10, Cn: 4900}
	if d := e.Evaluate(ms, thin); d.Halt {
		t.Errorf("halted on $%v locked, below threshold", 0.2)
	}
}

func TestCircuitBreakerHalts(t *testing.T) {
	e := testEngine()
	// No bids anywhere: a solo position marks to zero.
	ms := domain.MarketSnapshot{MarketID: "m1", SyncYes: true, SyncNo: true}

	ps := domain.PositionSnapshot{Qy: 60, Cy: 60 * 900}
	d := e.Evaluate(ms, ps)
	if !d.Halt || d.HaltReason != "circuit_breaker" {
		t.Errorf("decision = %+v, want circuit_breaker halt on $54 mark-to-market loss", d)
	}

	small := domain.PositionSnapshot{Qy: 10, Cy: 10 * 900}
	if d := e.Evaluate(ms, small); d.Halt && d.HaltReason == "circuit_breaker" {
		t.Error("circuit breaker tripped on a $9 loss")
	}
}

func TestModelPrice(t *testing.T) {
	cfg := config.Defaults().Engine
	ms := withClock(domain.MarketSnapshot{SyncYes: true, SyncNo: true}, 15*time.Minute)
	ms.StrikePrice = 100000

	// 15 minutes out the scaling is BASE_SENSE*2 = 100 dollars per tick.
	ms.OraclePrice = 105000
	model, ok := ModelPrice(ms, cfg)
	if !ok {
		t.Fatal("ModelPrice reported missing data")
	}
	if math.Abs(model-550) > 1e-9 {
		t.Errorf("model = %v, want 550", model)
	}

	// Far below the strike clamps at the floor.
	ms.OraclePrice = 1000
	model, _ = ModelPrice(ms, cfg)
	if model != 10 {
		t.Errorf("model = %v, want clamp at 10", model)
	}

	// Missing strike reports no data.
	ms.StrikePrice = 0
	if _, ok := ModelPrice(ms, cfg); ok {
		t.Error("ModelPrice produced a value without a strike")
	}
}

func TestOracleFilterBlocksInventoryNotArbitrage(t *testing.T) {
	e := testEngine()

	// Oracle $30k under the strike: model well below the YES block level.
	base := syncedSnap(domain.Level{Price: 480, Size: 30}, domain.Level{Price: 520, Size: 40})
	base = withClock(base, 10*time.Minute)
	base.StrikePrice = 100000
	base.OraclePrice = 70000

	// Bootstrap wants the cheap YES side but the filter suppresses it.
	d := e.Evaluate(base, domain.PositionSnapshot{})
	if len(d.Signals) != 0 {
		t.Errorf("oracle-blocked inventory signal leaked: %+v", d.Signals)
	}

	// With an arbitrage pair available the priority-0 legs pass untouched.
	arb := base
	arb.NoAsks = []domain.Level{{Price: 495, Size: 40}}
	d = e.Evaluate(arb, domain.PositionSnapshot{})
	if len(d.Signals) != 2 {
		t.Fatalf("got %d signals, want 2 arbitrage legs", len(d.Signals))
	}
	for _, s := range d.Signals {
		if s.Priority != domain.PriorityArbitrage {
			t.Errorf("non-arbitrage signal passed the filter: %+v", s)
		}
	}
}

func TestBootstrapTimeZones(t *testing.T) {
	cfg := config.Defaults().Engine
	ms := syncedSnap(domain.Level{Price: 420, Size: 30}, domain.Level{Price: 600, Size: 40})

	tests := []struct {
		name      string
		remaining time.Duration
		want      bool
	}{
		{"high zone admits under 0.50", 10 * time.Minute, true},
		{"low zone rejects 0.42", 3 * time.Minute, false},
		{"kill zone rejects everything", 90 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := checkBootstrap(withClock(ms, tt.remaining), domain.PositionSnapshot{}, cfg)
			if got := s != nil; got != tt.want {
				t.Errorf("bootstrap fired = %v, want %v", got, tt.want)
			}
			if s != nil && s.Outcome != domain.OutcomeYes {
				t.Errorf("bootstrap picked %s, want cheaper YES", s.Outcome)
			}
		})
	}

	// Low zone still admits a genuinely cheap ask.
	cheap := syncedSnap(domain.Level{Price: 250, Size: 30}, domain.Level{Price: 600, Size: 40})
	if s := checkBootstrap(withClock(cheap, 3*time.Minute), domain.PositionSnapshot{}, cfg); s == nil {
		t.Error("bootstrap rejected 250 ticks in the low zone")
	}

	// Never fires with an open position.
	held := domain.PositionSnapshot{Qy: 5, Cy: 2000}
	if s := checkBootstrap(withClock(ms, 10*time.Minute), held, cfg); s != nil {
		t.Error("bootstrap fired with an open position")
	}
}

func TestHedgingBuysLightSide(t *testing.T) {
	cfg := config.Defaults().Engine
	ms := syncedSnap(domain.Level{Price: 500, Size: 50}, domain.Level{Price: 450, Size: 25})

	// Heavy 30 YES at avg 400; limit = 980 - 400 = 580, NO ask 450 passes.
	ps := domain.PositionSnapshot{Qy: 30, Cy: 30 * 400}
	s := checkHedging(ms, ps, cfg)
	if s == nil {
		t.Fatal("hedge did not fire on a 30-share imbalance")
	}
	if s.Outcome != domain.OutcomeNo || s.Direction != domain.DirectionBuy {
		t.Errorf("hedge = %s %s, want buy NO", s.Direction, s.Outcome)
	}
	if s.Size != 25 {
		t.Errorf("hedge size = %v, want ask size 25", s.Size)
	}

	// Light ask above the pair-profit limit holds instead.
	rich := syncedSnap(domain.Level{Price: 500, Size: 50}, domain.Level{Price: 600, Size: 25})
	if s := checkHedging(rich, ps, cfg); s != nil {
		t.Error("hedge fired above the profit limit")
	}

	// Inside the balance pad nothing fires.
	balanced := domain.PositionSnapshot{Qy: 12, Cy: 4800, Qn: 8, Cn: 3600}
	if s := checkHedging(ms, balanced, cfg); s != nil {
		t.Error("hedge fired inside the balance pad")
	}
}

func TestHedgeSizeCapsAtImbalance(t *testing.T) {
	cfg := config.Defaults().Engine

	// 50 heavy YES against a 200-deep NO ask: the hedge closes the 50-share
	// gap, it does not flip the book 50 heavy the other way.
	deep := syncedSnap(domain.Level{Price: 500, Size: 50}, domain.Level{Price: 450, Size: 200})
	ps := domain.PositionSnapshot{Qy: 50, Cy: 50 * 400}
	s := checkHedging(deep, ps, cfg)
	if s == nil {
		t.Fatal("hedge did not fire on a 50-share imbalance")
	}
	if s.Size != 50 {
		t.Errorf("hedge size = %v, want the 50-share gap", s.Size)
	}
}

func TestAveragingDown(t *testing.T) {
	cfg := config.Defaults().Engine

	// Avg 500, ask 400: average down, sized by the balance cap
	// (Qn + pad - Qy = 0 + 10 - 5 = 5).
	ms := syncedSnap(domain.Level{Price: 400, Size: 50}, domain.Level{Price: 650, Size: 50})
	ps := domain.PositionSnapshot{Qy: 5, Cy: 5 * 500}
	s := checkAveragingDown(ms, ps, cfg)
	if s == nil {
		t.Fatal("averaging down did not fire")
	}
	if s.Outcome != domain.OutcomeYes || s.Size != 5 {
		t.Errorf("got %s size %v, want YES size 5 (balance cap)", s.Outcome, s.Size)
	}

	// Below the floor threshold the crash is treated as decided.
	crashed := syncedSnap(domain.Level{Price: 150, Size: 50}, domain.Level{Price: 900, Size: 50})
	if s := checkAveragingDown(crashed, ps, cfg); s != nil {
		t.Error("averaged down below the floor threshold")
	}

	// Ask above average cost is not a drawdown.
	up := syncedSnap(domain.Level{Price: 550, Size: 50}, domain.Level{Price: 500, Size: 50})
	if s := checkAveragingDown(up, ps, cfg); s != nil {
		t.Error("averaged down with price above average cost")
	}
}
