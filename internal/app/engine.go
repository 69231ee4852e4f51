package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbalest-labs/ticktrader/internal/book"
	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/executor"
	"github.com/arbalest-labs/ticktrader/internal/journal"
	"github.com/arbalest-labs/ticktrader/internal/orders"
	"github.com/arbalest-labs/ticktrader/internal/platform/coinbase"
	"github.com/arbalest-labs/ticktrader/internal/platform/polymarket"
	"github.com/arbalest-labs/ticktrader/internal/position"
	"github.com/arbalest-labs/ticktrader/internal/recorder"
	"github.com/arbalest-labs/ticktrader/internal/server"
	"github.com/arbalest-labs/ticktrader/internal/server/handler"
	"github.com/arbalest-labs/ticktrader/internal/strategy"
	"github.com/arbalest-labs/ticktrader/internal/trader"
)

const (
	// discoveryRetry paces the startup poll for the first tradable window.
	discoveryRetry = 5 * time.Second

	// lockTTL is the series lock lease; it is refreshed at half-life.
	lockTTL = 2 * time.Minute
)

// runEngine builds the full engine around the current market window and runs
// every component until the context is cancelled.
func (a *App) runEngine(ctx context.Context, deps *Dependencies) error {
	cfg := a.cfg
	logger := a.logger
	live := strings.ToLower(cfg.Mode) == "live"

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, logger)
	meta, err := a.waitForWindow(ctx, gamma)
	if err != nil {
		return err
	}
	logger.Info("trading window discovered",
		slog.String("market_id", meta.MarketID),
		slog.String("slug", meta.Slug),
		slog.Time("expiry", meta.Expiry),
	)

	state := book.New(meta)
	orderLedger := orders.NewLedger(logger)
	positions := position.NewLedger(meta.MarketID)
	engine := strategy.New(cfg.Engine, logger)
	diff := orders.NewDiff(cfg.Engine, logger)

	var (
		adapter  executor.Adapter
		sim      *executor.Sim
		simFills chan domain.FillEvent
		clob     *polymarket.ClobClient
	)
	if live {
		clob = polymarket.NewClobClient(cfg.Polymarket, logger)
		if err := clob.SetMarket(meta); err != nil {
			return err
		}
		adapter = executor.NewLive(clob, logger)
	} else {
		simFills = make(chan domain.FillEvent, 64)
		sim = executor.NewSim(cfg.Execution, simFills, logger)
		adapter = sim
		a.closers = append(a.closers, func() { _ = sim.Close() })
	}

	exec := executor.New(adapter, orderLedger, positions, logger)
	tr := trader.New(cfg, state, engine, diff, orderLedger, exec, positions, logger)

	jnl := journal.New(journal.Stores{
		Orders: deps.OrderStore,
		Fills:  deps.FillStore,
		Rounds: deps.RoundStore,
	}, deps.BookCache, busOrNil(deps), logger)
	tr.AddObserver(jnl)

	if cfg.Recorder.Enabled {
		rec := recorder.New(cfg.Recorder, deps.Blob, logger)
		tr.AddObserver(rec)
		a.closers = append(a.closers, rec.Close)
	}
	tr.AddObserver(&alertObserver{notifier: deps.Notifier})

	marketFeed := polymarket.NewMarketFeed(cfg.Polymarket.WsHost, tr.Events(), logger)
	if err := marketFeed.SetMarket(meta); err != nil {
		return err
	}
	oracleFeed := coinbase.NewOracleFeed(cfg.Oracle, tr.Events(), logger)

	watcher := polymarket.NewWatcher(gamma, cfg.Polymarket, meta, tr.Events(), logger)
	watcher.Register(marketFeed)

	var userFeed *polymarket.UserFeed
	if live {
		userFeed = polymarket.NewUserFeed(cfg.Polymarket, orderLedger, tr.Events(), logger)
		if err := userFeed.SetMarket(meta); err != nil {
			return err
		}
		watcher.Register(userFeed)
		watcher.Register(clob)
	}

	g, ctx := errgroup.WithContext(ctx)

	// Only one live engine may trade a series at a time.
	if live && deps.Lock != nil {
		release, err := deps.Lock.Acquire(ctx, cfg.Polymarket.SeriesSlug, lockTTL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, release)
		g.Go(func() error { return a.refreshLock(ctx, deps) })
	}

	g.Go(func() error { return tr.Run(ctx) })
	g.Go(func() error { return marketFeed.Run(ctx) })
	g.Go(func() error { return oracleFeed.Run(ctx) })
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error { return jnl.Run(ctx) })
	if userFeed != nil {
		g.Go(func() error { return userFeed.Run(ctx) })
	}
	if sim != nil {
		g.Go(func() error { return pumpFills(ctx, simFills, tr.Events()) })
	}

	if cfg.Server.Enabled {
		srv := a.buildServer(deps, tr)
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return ctx.Err()
		})
	}

	return g.Wait()
}

// waitForWindow polls discovery until the series' current window is listed.
func (a *App) waitForWindow(ctx context.Context, gamma *polymarket.GammaClient) (domain.MarketMetadata, error) {
	for {
		meta, err := gamma.CurrentWindow(ctx, a.cfg.Polymarket.SeriesSlug, time.Now().UTC())
		if err == nil {
			return meta, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			a.logger.Warn("current window not listed yet",
				slog.String("series", a.cfg.Polymarket.SeriesSlug),
			)
		} else {
			a.logger.Error("window discovery failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return domain.MarketMetadata{}, ctx.Err()
		case <-time.After(discoveryRetry):
		}
	}
}

func (a *App) refreshLock(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(lockTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := deps.Lock.Refresh(ctx, a.cfg.Polymarket.SeriesSlug, lockTTL); err != nil {
				a.logger.Error("lock refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *App) buildServer(deps *Dependencies, tr *trader.Trader) *server.Server {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(),
		Status: handler.NewStatusHandler(tr),
	}
	if deps.RoundStore != nil {
		handlers.Rounds = handler.NewRoundsHandler(deps.RoundStore, a.logger)
	}
	if deps.OrderStore != nil {
		handlers.Orders = handler.NewOrdersHandler(deps.OrderStore, deps.FillStore, tr, a.logger)
	}
	return server.NewServer(a.cfg.Server, handlers, a.logger)
}

// pumpFills forwards simulated fills onto the trader's event channel.
func pumpFills(ctx context.Context, fills <-chan domain.FillEvent, events chan<- trader.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-fills:
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// busOrNil unwraps the typed bus field into the journal's interface without
// smuggling a typed nil inside a non-nil interface value.
func busOrNil(deps *Dependencies) journal.Bus {
	if deps.Bus == nil {
		return nil
	}
	return deps.Bus
}
