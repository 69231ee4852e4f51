package orders

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addOrder(t *testing.T, l *Ledger, id string, size float64, price domain.Tick) {
	t.Helper()
	err := l.Add(domain.Order{
		ID:        id,
		Outcome:   domain.OutcomeYes,
		Direction: domain.DirectionBuy,
		Price:     price,
		Size:      size,
	})
	if err != nil {
		t.Fatalf("Add(%q): %v", id, err)
	}
}

func TestFillLifecycle(t *testing.T) {
	l := NewLedger(testLogger())
	addOrder(t, l, "o1", 10, 450)

	o, err := l.ApplyFill("o1", domain.Fill{Size: 3, Price: 450})
	if err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if o.Status != domain.OrderStatusPartiallyFilled {
		t.Errorf("status after 3/10 = %s, want partially_filled", o.Status)
	}

	o, err = l.ApplyFill("o1", domain.Fill{Size: 7, Price: 460})
	if err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if o.Status != domain.OrderStatusFilled {
		t.Errorf("status after 10/10 = %s, want filled", o.Status)
	}
	if o.FilledSize != 10 {
		t.Errorf("filled size = %v, want 10", o.FilledSize)
	}
	wantAvg := (3*450.0 + 7*460.0) / 10
	if math.Abs(o.AvgFillPrice-wantAvg) > 1e-9 {
		t.Errorf("avg fill price = %v, want %v", o.AvgFillPrice, wantAvg)
	}
}

func TestFillOnTerminalOrderIsProtocolError(t *testing.T) {
	l := NewLedger(testLogger())
	addOrder(t, l, "o1", 10, 450)
	if _, err := l.Cancel("o1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := l.ApplyFill("o1", domain.Fill{Size: 5, Price: 450})
	if !errors.Is(err, domain.ErrTerminalOrder) {
		t.Fatalf("err = %v, want ErrTerminalOrder", err)
	}

	o, _ := l.Get("o1")
	if o.FilledSize != 0 || o.Status != domain.OrderStatusCancelled {
		t.Errorf("ledger mutated by dropped fill: %+v", o)
	}
}

func TestFillValidation(t *testing.T) {
	l := NewLedger(testLogger())
	addOrder(t, l, "o1", 10, 450)

	tests := []struct {
		name string
		fill domain.Fill
	}{
		{"zero size", domain.Fill{Size: 0, Price: 450}},
		{"negative size", domain.Fill{Size: -2, Price: 450}},
		{"price out of range", domain.Fill{Size: 2, Price: 1200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.ApplyFill("o1", tt.fill); !errors.Is(err, domain.ErrInvalidFill) {
				t.Errorf("err = %v, want ErrInvalidFill", err)
			}
		})
	}
}

func TestCancelAfterFillIsNoop(t *testing.T) {
	l := NewLedger(testLogger())
	addOrder(t, l, "o1", 5, 450)
	l.ApplyFill("o1", domain.Fill{Size: 5, Price: 450})

	o, err := l.Cancel("o1")
	if err != nil {
		t.Fatalf("cancel filled order: %v", err)
	}
	if o.Status != domain.OrderStatusFilled {
		t.Errorf("status = %s, cancel must not demote a filled order", o.Status)
	}
}

func TestRejectOnlyDemotesPending(t *testing.T) {
	l := NewLedger(testLogger())
	addOrder(t, l, "o1", 10, 450)
	l.ApplyFill("o1", domain.Fill{Size: 4, Price: 450})

	o, err := l.Reject("o1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if o.Status != domain.OrderStatusPartiallyFilled {
		t.Errorf("status = %s, reject must not touch a partially filled order", o.Status)
	}
}

func TestAPIOrderIDCorrelation(t *testing.T) {
	l := NewLedger(testLogger())
	addOrder(t, l, "o1", 10, 450)
	if err := l.SetAPIOrderID("o1", "venue-123"); err != nil {
		t.Fatalf("SetAPIOrderID: %v", err)
	}

	o, ok := l.GetByAPIOrderID("venue-123")
	if !ok || o.ID != "o1" {
		t.Errorf("GetByAPIOrderID = (%+v, %v), want o1", o, ok)
	}
	if _, ok := l.GetByAPIOrderID("venue-999"); ok {
		t.Error("resolved an unknown venue id")
	}
}

func TestLiveFiltersTerminalAndOutcome(t *testing.T) {
	l := NewLedger(testLogger())
	addOrder(t, l, "o1", 10, 450)
	addOrder(t, l, "o2", 10, 440)
	l.Add(domain.Order{ID: "o3", Outcome: domain.OutcomeNo, Direction: domain.DirectionBuy, Price: 500, Size: 5})
	l.Cancel("o2")

	live := l.Live(domain.OutcomeYes)
	if len(live) != 1 || live[0].ID != "o1" {
		t.Errorf("Live(YES) = %+v, want only o1", live)
	}
	if n := l.LiveCount(); n != 2 {
		t.Errorf("LiveCount = %d, want 2", n)
	}

	l.Reset()
	if n := l.LiveCount(); n != 0 {
		t.Errorf("LiveCount after reset = %d, want 0", n)
	}
}
