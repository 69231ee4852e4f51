package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// Sim is the simulated execution adapter. Orders experience a fixed network
// latency, then fill fully when the snapshot shows enough depth at their
// price, or partially (a configured fraction) with the remainder arriving
// after a second delay, modeling a resting order catching further flow.
type Sim struct {
	cfg    config.ExecutionConfig
	fills  chan<- domain.FillEvent
	logger *slog.Logger

	mu        sync.Mutex
	cancelled map[string]bool
	filled    map[string]bool
	resting   map[string]bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSim creates a simulated adapter that delivers fills on the given
// channel.
func NewSim(cfg config.ExecutionConfig, fills chan<- domain.FillEvent, logger *slog.Logger) *Sim {
	return &Sim{
		cfg:       cfg,
		fills:     fills,
		logger:    logger.With(slog.String("component", "sim_executor")),
		cancelled: make(map[string]bool),
		filled:    make(map[string]bool),
		resting:   make(map[string]bool),
		done:      make(chan struct{}),
	}
}

// Submit schedules the order's simulated fills. The returned venue id is
// always empty; simulation correlates by internal order id.
func (s *Sim) Submit(_ context.Context, o domain.Order, ms domain.MarketSnapshot) (string, error) {
	if o.Size <= 0 || !o.Price.Valid() {
		return "", fmt.Errorf("sim: submit %q: %w", o.ID, domain.ErrOrderRejected)
	}

	var depth float64
	if o.Direction == domain.DirectionBuy {
		depth = ms.AskDepthAt(o.Outcome, o.Price)
	} else {
		depth = ms.BidDepthAt(o.Outcome, o.Price)
	}

	s.mu.Lock()
	s.resting[o.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(o, depth)
	return "", nil
}

func (s *Sim) run(o domain.Order, depth float64) {
	defer s.wg.Done()

	if !s.sleep(s.cfg.Latency.Duration) {
		return
	}

	if depth >= o.Size {
		if s.emit(o, o.Size) {
			s.markFilled(o.ID)
		}
		return
	}

	// Thin book: a first print for the configured fraction, then the rest
	// after the order has rested a while.
	first := o.Size * s.cfg.PartialFillFraction
	if !s.emit(o, first) {
		return
	}
	if !s.sleep(s.cfg.PartialFillDelay.Duration) {
		return
	}
	if s.emit(o, o.Size-first) {
		s.markFilled(o.ID)
	}
}

func (s *Sim) markFilled(id string) {
	s.mu.Lock()
	s.filled[id] = true
	delete(s.resting, id)
	s.mu.Unlock()
}

// emit delivers one fill unless the order was cancelled in the meantime. It
// reports whether delivery happened.
func (s *Sim) emit(o domain.Order, size float64) bool {
	s.mu.Lock()
	if s.cancelled[o.ID] {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	ev := domain.FillEvent{
		OrderID:   o.ID,
		Size:      size,
		Price:     o.Price,
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case s.fills <- ev:
	case <-s.done:
		return false
	}
	return true
}

func (s *Sim) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.done:
		return false
	}
}

// Cancel stops any scheduled fills for the order. An order that already
// filled completely reports domain.ErrNotFound, mirroring a venue ghost
// cancel.
func (s *Sim) Cancel(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filled[o.ID] {
		return fmt.Errorf("sim: cancel %q: %w", o.ID, domain.ErrNotFound)
	}
	s.cancelled[o.ID] = true
	delete(s.resting, o.ID)
	return nil
}

// CancelAll cancels every order that has not fully filled yet.
func (s *Sim) CancelAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.resting {
		s.cancelled[id] = true
		delete(s.resting, id)
	}
	return nil
}

// Close stops all in-flight fill timers and waits for their goroutines.
func (s *Sim) Close() error {
	close(s.done)
	s.wg.Wait()
	return nil
}
