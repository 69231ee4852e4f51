package position

import (
	"math"
	"testing"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

func TestApplyFillAverageCostInvariant(t *testing.T) {
	fills := []struct {
		size  float64
		price domain.Tick
	}{
		{10, 450},
		{5, 480},
		{2.5, 300},
		{7, 510},
	}

	l := NewLedger("m1")
	totalSize, totalCost := 0.0, 0.0
	for _, f := range fills {
		if err := l.ApplyFill(domain.OutcomeYes, domain.DirectionBuy, f.size, f.price); err != nil {
			t.Fatalf("ApplyFill(%v, %v): %v", f.size, f.price, err)
		}
		totalSize += f.size
		totalCost += f.size * float64(f.price)
	}

	snap := l.Snapshot()
	avg, ok := snap.AvgCost(domain.OutcomeYes)
	if !ok {
		t.Fatal("AvgCost reported empty position")
	}
	want := totalCost / totalSize
	if math.Abs(avg-want) > 1e-9 {
		t.Errorf("Cy/Qy = %v, want size-weighted mean %v", avg, want)
	}
	if snap.Qn != 0 || snap.Cn != 0 {
		t.Errorf("NO side mutated by YES fills: Qn=%v Cn=%v", snap.Qn, snap.Cn)
	}
}

func TestApplyFillRejectsInvalid(t *testing.T) {
	l := NewLedger("m1")
	tests := []struct {
		name  string
		size  float64
		price domain.Tick
	}{
		{"zero size", 0, 500},
		{"negative size", -3, 500},
		{"price above range", 5, 1001},
		{"negative price", 5, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := l.ApplyFill(domain.OutcomeNo, domain.DirectionBuy, tt.size, tt.price); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
	if snap := l.Snapshot(); !snap.Empty() {
		t.Errorf("ledger mutated by rejected fills: %+v", snap)
	}
}

func TestSellReducesAtAverageCost(t *testing.T) {
	l := NewLedger("m1")
	l.ApplyFill(domain.OutcomeYes, domain.DirectionBuy, 10, 400)
	l.ApplyFill(domain.OutcomeYes, domain.DirectionBuy, 10, 600)

	if err := l.ApplyFill(domain.OutcomeYes, domain.DirectionSell, 5, 450); err != nil {
		t.Fatalf("sell: %v", err)
	}
	snap := l.Snapshot()
	if snap.Qy != 15 {
		t.Errorf("Qy = %v, want 15", snap.Qy)
	}
	avg, _ := snap.AvgCost(domain.OutcomeYes)
	if math.Abs(avg-500) > 1e-9 {
		t.Errorf("avg cost after sell = %v, want unchanged 500", avg)
	}

	// Selling more than held is an invariant violation.
	if err := l.ApplyFill(domain.OutcomeYes, domain.DirectionSell, 100, 450); err == nil {
		t.Error("oversell accepted")
	}
}

func TestPendingFlags(t *testing.T) {
	l := NewLedger("m1")
	l.SetPending(domain.OutcomeYes, true)
	snap := l.Snapshot()
	if !snap.PendingYes || snap.PendingNo {
		t.Errorf("pending = (%v,%v), want (true,false)", snap.PendingYes, snap.PendingNo)
	}
	l.SetPending(domain.OutcomeYes, false)
	l.SetPending(domain.OutcomeNo, true)
	snap = l.Snapshot()
	if snap.PendingYes || !snap.PendingNo {
		t.Errorf("pending = (%v,%v), want (false,true)", snap.PendingYes, snap.PendingNo)
	}
}

func TestSnapshotIsValueCopy(t *testing.T) {
	l := NewLedger("m1")
	l.ApplyFill(domain.OutcomeNo, domain.DirectionBuy, 4, 300)
	before := l.Snapshot()
	l.ApplyFill(domain.OutcomeNo, domain.DirectionBuy, 4, 700)
	if before.Qn != 4 || before.Cn != 1200 {
		t.Errorf("snapshot mutated by later fill: %+v", before)
	}
}
