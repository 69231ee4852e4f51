package polymarket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/trader"
)

// MarketSetter is anything that must retarget when the window rolls: the two
// websocket feeds and the order client.
type MarketSetter interface {
	SetMarket(meta domain.MarketMetadata) error
}

// prefetchLead is how long before expiry the watcher starts asking discovery
// for the successor window. The venue lists it a few minutes ahead of the
// switch, so by expiry the rollover usually needs no discovery round trip.
const prefetchLead = 2 * time.Minute

// Watcher drives window rollovers. It polls discovery on a fixed cadence,
// prefetches the successor window shortly before expiry, and once the active
// window has expired pushes a Rollover event to the trader and retargets
// every registered setter.
type Watcher struct {
	client  *GammaClient
	cfg     config.PolymarketConfig
	events  chan<- trader.Event
	setters []MarketSetter
	logger  *slog.Logger

	current domain.MarketMetadata
	next    domain.MarketMetadata
}

// NewWatcher creates a rollover watcher starting from the given window.
func NewWatcher(client *GammaClient, cfg config.PolymarketConfig, start domain.MarketMetadata, events chan<- trader.Event, logger *slog.Logger) *Watcher {
	return &Watcher{
		client:  client,
		cfg:     cfg,
		events:  events,
		logger:  logger.With(slog.String("component", "rollover")),
		current: start,
	}
}

// Register adds a component to retarget at each rollover. Not safe after Run
// has started.
func (w *Watcher) Register(s MarketSetter) {
	w.setters = append(w.setters, s)
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.RolloverCheck.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	now := time.Now().UTC()
	if now.Before(w.current.Expiry) {
		if w.next.MarketID == "" && !now.Before(w.current.Expiry.Add(-prefetchLead)) {
			w.prefetch(ctx, now)
		}
		return
	}

	next := w.next
	if next.MarketID == "" {
		var err error
		next, err = w.client.CurrentWindow(ctx, w.cfg.SeriesSlug, now)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				w.logger.Warn("next window not yet listed",
					slog.String("series", w.cfg.SeriesSlug),
				)
				return
			}
			w.logger.Error("window discovery failed", slog.String("error", err.Error()))
			return
		}
	}
	if next.MarketID == w.current.MarketID {
		return
	}

	w.logger.Info("rolling over",
		slog.String("from", w.current.Slug),
		slog.String("to", next.Slug),
	)

	// The trader resets first so the feeds' fresh snapshots land on the
	// new window, not the stale one.
	select {
	case w.events <- trader.Rollover{Meta: next}:
	case <-ctx.Done():
		return
	}
	for _, s := range w.setters {
		if err := s.SetMarket(next); err != nil {
			w.logger.Error("retarget failed", slog.String("error", err.Error()))
		}
	}
	w.current = next
	w.next = domain.MarketMetadata{}
}

// prefetch caches the successor window once discovery lists it. ErrNotFound
// means not listed yet; the next tick retries.
func (w *Watcher) prefetch(ctx context.Context, now time.Time) {
	meta, err := w.client.NextWindow(ctx, w.cfg.SeriesSlug, now)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			w.logger.Warn("next window prefetch failed", slog.String("error", err.Error()))
		}
		return
	}
	w.next = meta
	w.logger.Info("next window prefetched", slog.String("slug", meta.Slug))
}
