// Package orders tracks submitted order state and reconciles live orders
// against the ideal quote ladder.
package orders

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// Ledger is the in-memory registry of orders for the active market. It is the
// single source of truth for order status; stores and caches observe it, they
// never drive it.
type Ledger struct {
	mu     sync.Mutex
	logger *slog.Logger

	orders map[string]*domain.Order
	byAPI  map[string]string // venue order id -> internal id
}

// NewLedger creates an empty order ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{
		logger: logger.With(slog.String("component", "order_ledger")),
		orders: make(map[string]*domain.Order),
		byAPI:  make(map[string]string),
	}
}

// Add registers a new order in Pending status.
func (l *Ledger) Add(o domain.Order) error {
	if o.ID == "" || o.Size <= 0 || !o.Price.Valid() {
		return fmt.Errorf("orders: add %q: %w", o.ID, domain.ErrInvalidOrder)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.orders[o.ID]; exists {
		return fmt.Errorf("orders: add %q: duplicate id", o.ID)
	}

	o.Status = domain.OrderStatusPending
	o.FilledSize = 0
	o.AvgFillPrice = 0
	o.Fills = nil
	l.orders[o.ID] = &o
	if o.APIOrderID != "" {
		l.byAPI[o.APIOrderID] = o.ID
	}
	return nil
}

// SetAPIOrderID records the venue-assigned identifier after live submission.
func (l *Ledger) SetAPIOrderID(id, apiID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("orders: set api id %q: %w", id, domain.ErrNotFound)
	}
	o.APIOrderID = apiID
	l.byAPI[apiID] = id
	return nil
}

// ApplyFill applies one execution to an order and recomputes its status and
// size-weighted average fill price. A fill against a Cancelled or Rejected
// order is a protocol error: it is logged and the ledger is left untouched.
func (l *Ledger) ApplyFill(id string, f domain.Fill) (domain.Order, error) {
	if f.Size <= 0 || !f.Price.Valid() {
		return domain.Order{}, fmt.Errorf("orders: fill on %q: size=%v price=%d: %w", id, f.Size, f.Price, domain.ErrInvalidFill)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("orders: fill on %q: %w", id, domain.ErrNotFound)
	}
	if o.Status.Terminal() {
		l.logger.Error("fill for terminal order dropped",
			slog.String("order_id", id),
			slog.String("status", string(o.Status)),
			slog.Float64("fill_size", f.Size),
		)
		return domain.Order{}, fmt.Errorf("orders: fill on %q in status %s: %w", id, o.Status, domain.ErrTerminalOrder)
	}

	o.AvgFillPrice = (o.AvgFillPrice*o.FilledSize + float64(f.Price)*f.Size) / (o.FilledSize + f.Size)
	o.FilledSize += f.Size
	o.Fills = append(o.Fills, f)

	if o.FilledSize >= o.Size-domain.SizeEpsilon {
		o.Status = domain.OrderStatusFilled
	} else {
		o.Status = domain.OrderStatusPartiallyFilled
	}

	return *o, nil
}

// Cancel marks a live order Cancelled. Cancelling an order already terminal
// is a no-op success; the venue may have resolved it first.
func (l *Ledger) Cancel(id string) (domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("orders: cancel %q: %w", id, domain.ErrNotFound)
	}
	if !o.Status.Terminal() {
		o.Status = domain.OrderStatusCancelled
	}
	return *o, nil
}

// Reject marks a pending order Rejected.
func (l *Ledger) Reject(id string) (domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("orders: reject %q: %w", id, domain.ErrNotFound)
	}
	if o.Status == domain.OrderStatusPending {
		o.Status = domain.OrderStatusRejected
	}
	return *o, nil
}

// Get returns a copy of the order with the given internal id.
func (l *Ledger) Get(id string) (domain.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// GetByAPIOrderID resolves a venue order id to a copy of the order. Used to
// correlate asynchronous fill notifications in live mode.
func (l *Ledger) GetByAPIOrderID(apiID string) (domain.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byAPI[apiID]
	if !ok {
		return domain.Order{}, false
	}
	o, ok := l.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Live returns copies of all live orders on the given outcome, in no
// particular order.
func (l *Ledger) Live(o domain.Outcome) []domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Order
	for _, ord := range l.orders {
		if ord.Outcome == o && ord.Live() {
			out = append(out, *ord)
		}
	}
	return out
}

// LiveCount returns the number of live orders across both outcomes.
func (l *Ledger) LiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ord := range l.orders {
		if ord.Live() {
			n++
		}
	}
	return n
}

// Reset drops every order. Called at market rollover; the previous window's
// orders are final.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = make(map[string]*domain.Order)
	l.byAPI = make(map[string]string)
}
