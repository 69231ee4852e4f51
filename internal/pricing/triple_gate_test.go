package pricing

import (
	"math"
	"testing"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

func engineCfg() config.EngineConfig {
	cfg := config.Defaults().Engine
	cfg.MaxPosition = 75
	cfg.BaseSize = 10
	cfg.BaseMarginTicks = 20
	cfg.Gamma = 0.5
	cfg.MaxSkewTicks = 50
	cfg.SlippageTolTicks = 20
	cfg.TickSizeTicks = 10
	cfg.MinPriceTicks = 10
	cfg.LadderDepth = 5
	cfg.LadderStepTicks = 10
	return cfg
}

func snapWithAsks(askYes, askNo domain.Tick) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID: "m1",
		YesAsks:  []domain.Level{{Price: askYes, Size: 100}},
		NoAsks:   []domain.Level{{Price: askNo, Size: 100}},
		SyncYes:  true,
		SyncNo:   true,
	}
}

func TestAccountantPriceHeavy(t *testing.T) {
	cfg := engineCfg()
	// Heavy on YES with NO avg cost 450: ceiling is 1000-450-20.
	ps := domain.PositionSnapshot{Qy: 30, Cy: 30 * 400, Qn: 10, Cn: 10 * 450}
	got := AccountantPrice(domain.OutcomeYes, ps, cfg)
	if got != 530 {
		t.Errorf("P_acct heavy = %v, want 530", got)
	}
}

func TestAccountantPriceLight(t *testing.T) {
	cfg := engineCfg()
	// 30 YES @ 400, 130 NO @ 450; YES is light by 100 shares.
	ps := domain.PositionSnapshot{Qy: 30, Cy: 30 * 400, Qn: 130, Cn: 130 * 450}
	got := AccountantPrice(domain.OutcomeYes, ps, cfg)
	want := (130*(1000-450.0) - 30*400.0) / 100
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("P_acct light = %v, want %v", got, want)
	}
}

func TestAccountantPriceLightDegenerate(t *testing.T) {
	cfg := engineCfg()
	// Light but nothing held on the heavy side: falls back to the ceiling.
	ps := domain.PositionSnapshot{}
	got := AccountantPrice(domain.OutcomeYes, ps, cfg)
	if got != 1000-0-20 {
		t.Errorf("P_acct balanced-empty = %v, want 980", got)
	}
}

func TestMarketPriceSkewDirection(t *testing.T) {
	cfg := engineCfg()
	ms := snapWithAsks(500, 480)

	neutral := MarketPrice(domain.OutcomeYes, ms, domain.PositionSnapshot{}, cfg)
	heavy := MarketPrice(domain.OutcomeYes, ms, domain.PositionSnapshot{Qy: 40}, cfg)
	light := MarketPrice(domain.OutcomeYes, ms, domain.PositionSnapshot{Qn: 40}, cfg)

	if !(heavy < neutral) {
		t.Errorf("heavy skew must reduce the bid: heavy=%v neutral=%v", heavy, neutral)
	}
	if !(light > neutral) {
		t.Errorf("light skew must raise the bid: light=%v neutral=%v", light, neutral)
	}
}

func TestMarketPriceSkewClamp(t *testing.T) {
	cfg := engineCfg()
	ms := snapWithAsks(500, 480)
	// Net +200 at gamma 0.5 would be 100 ticks of skew; clamp holds at 50.
	far := MarketPrice(domain.OutcomeYes, ms, domain.PositionSnapshot{Qy: 200}, cfg)
	anchor := 1000 - 480.0 - 20
	if math.Abs(far-(anchor-50)) > 1e-9 {
		t.Errorf("skew not clamped: got %v, want %v", far, anchor-50)
	}
}

func TestExecutionCap(t *testing.T) {
	cfg := engineCfg()
	ms := snapWithAsks(500, 480)

	// Heavy/neutral: maker only, one venue tick under own ask.
	maker := ExecutionCap(domain.OutcomeYes, ms, domain.PositionSnapshot{Qy: 10}, cfg)
	if maker != 490 {
		t.Errorf("maker cap = %v, want 490", maker)
	}

	// Light: may cross up to the slippage tolerance.
	taker := ExecutionCap(domain.OutcomeYes, ms, domain.PositionSnapshot{Qn: 10}, cfg)
	if taker != 520 {
		t.Errorf("taker cap = %v, want 520", taker)
	}
}

func TestFinalPriceClamp(t *testing.T) {
	cfg := engineCfg()
	// Empty book pushes Cap_exec and P_mkt to extremes; result must stay
	// inside [min, 990].
	p := FinalPrice(domain.OutcomeYes, domain.MarketSnapshot{}, domain.PositionSnapshot{}, cfg)
	if p < domain.Tick(cfg.MinPriceTicks) || p > 990 {
		t.Errorf("final price %d outside [%d, 990]", p, cfg.MinPriceTicks)
	}
}

func TestTargetSizeScaling(t *testing.T) {
	cfg := engineCfg()
	tests := []struct {
		name string
		ps   domain.PositionSnapshot
		side domain.Outcome
		want float64
	}{
		{"neutral", domain.PositionSnapshot{}, domain.OutcomeYes, 10},
		{"net 37 of 75", domain.PositionSnapshot{Qy: 37}, domain.OutcomeYes, 5},
		{"at max heavy", domain.PositionSnapshot{Qy: 75}, domain.OutcomeYes, 0},
		{"beyond max heavy", domain.PositionSnapshot{Qy: 90}, domain.OutcomeYes, 0},
		{"fully light", domain.PositionSnapshot{Qn: 75}, domain.OutcomeYes, 20},
		{"beyond max light clamps at 2x", domain.PositionSnapshot{Qn: 150}, domain.OutcomeYes, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TargetSize(tt.side, tt.ps, cfg); got != tt.want {
				t.Errorf("TargetSize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildLadderShape(t *testing.T) {
	cfg := engineCfg()
	ms := snapWithAsks(500, 480)
	ladder := BuildLadder(domain.OutcomeYes, ms, domain.PositionSnapshot{}, cfg)

	if len(ladder) != cfg.LadderDepth {
		t.Fatalf("ladder depth = %d, want %d", len(ladder), cfg.LadderDepth)
	}
	top := FinalPrice(domain.OutcomeYes, ms, domain.PositionSnapshot{}, cfg)
	for i, rung := range ladder {
		wantPrice := top - domain.Tick(i*cfg.LadderStepTicks)
		if rung.Price != wantPrice {
			t.Errorf("rung %d price = %d, want %d", i, rung.Price, wantPrice)
		}
		if rung.Size != 10 {
			t.Errorf("rung %d size = %v, want 10", i, rung.Size)
		}
	}
}

func TestBuildLadderBoundsPreFillExposure(t *testing.T) {
	cfg := engineCfg()
	cfg.MaxPosition = 75
	cfg.BaseSize = 30
	ms := snapWithAsks(500, 480)

	// Holding 40 YES leaves a 35-share budget; rungs stop once the
	// resting ladder would push exposure past MaxPosition.
	ps := domain.PositionSnapshot{Qy: 40}
	ladder := BuildLadder(domain.OutcomeYes, ms, ps, cfg)

	size := TargetSize(domain.OutcomeYes, ps, cfg)
	total := 0.0
	for _, rung := range ladder {
		total += rung.Size
	}
	if ps.Qy+total > cfg.MaxPosition {
		t.Errorf("ladder exposure %v + held %v exceeds max %v", total, ps.Qy, cfg.MaxPosition)
	}
	if len(ladder) == 0 && size > 0 && cfg.MaxPosition-ps.Qy >= size {
		t.Error("ladder empty despite available budget")
	}
}

func TestBuildLadderEmptyWhenHeavyAtMax(t *testing.T) {
	cfg := engineCfg()
	ms := snapWithAsks(500, 480)
	ladder := BuildLadder(domain.OutcomeYes, ms, domain.PositionSnapshot{Qy: 80}, cfg)
	if len(ladder) != 0 {
		t.Errorf("expected empty ladder at max position, got %d rungs", len(ladder))
	}
}
