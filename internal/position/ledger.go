// Package position tracks inventory and cost basis for one market window.
package position

import (
	"sync"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// Ledger holds the quantities and cumulative cost paid on each side of a
// market, plus the per-side pending flags that gate duplicate submission.
// It is mutated only by the execution boundary (on fills and order
// submission) and replaced wholesale at rollover: fills from the previous
// window are final and never carried forward.
type Ledger struct {
	mu sync.Mutex

	marketID string
	qy, qn   float64
	cy, cn   float64

	pendingYes bool
	pendingNo  bool
}

// NewLedger creates a zeroed ledger for the given market.
func NewLedger(marketID string) *Ledger {
	return &Ledger{marketID: marketID}
}

// MarketID returns the market this ledger belongs to.
func (l *Ledger) MarketID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.marketID
}

// ApplyFill adds a fill to the inventory: size shares at price ticks on the
// given outcome. Sells reduce inventory at average cost. It returns
// domain.ErrInvalidFill for non-positive sizes or out-of-range prices; the
// ledger is left untouched in that case.
func (l *Ledger) ApplyFill(o domain.Outcome, dir domain.Direction, size float64, price domain.Tick) error {
	if size <= 0 || !price.Valid() {
		return domain.ErrInvalidFill
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir == domain.DirectionSell {
		return l.reduceLocked(o, size)
	}

	cost := float64(price) * size
	if o == domain.OutcomeYes {
		l.qy += size
		l.cy += cost
	} else {
		l.qn += size
		l.cn += cost
	}
	return nil
}

// reduceLocked removes size shares from the outcome at the side's average
// cost, keeping the avg-cost invariant intact for the remainder.
func (l *Ledger) reduceLocked(o domain.Outcome, size float64) error {
	q, c := l.qy, l.cy
	if o == domain.OutcomeNo {
		q, c = l.qn, l.cn
	}
	if size > q+domain.SizeEpsilon {
		return domain.ErrInvalidFill
	}
	var avg float64
	if q > 0 {
		avg = c / q
	}
	q -= size
	c -= avg * size
	if q < domain.SizeEpsilon {
		q, c = 0, 0
	}
	if o == domain.OutcomeYes {
		l.qy, l.cy = q, c
	} else {
		l.qn, l.cn = q, c
	}
	return nil
}

// SetPending marks or clears the in-flight flag for one side. Set the
// instant an order is submitted; cleared when it reaches a terminal state.
func (l *Ledger) SetPending(o domain.Outcome, pending bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o == domain.OutcomeYes {
		l.pendingYes = pending
	} else {
		l.pendingNo = pending
	}
}

// Snapshot returns an immutable value copy for strategy evaluation.
func (l *Ledger) Snapshot() domain.PositionSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.PositionSnapshot{
		MarketID:   l.marketID,
		Qy:         l.qy,
		Qn:         l.qn,
		Cy:         l.cy,
		Cn:         l.cn,
		PendingYes: l.pendingYes,
		PendingNo:  l.pendingNo,
	}
}
