package app

import (
	"context"
	"fmt"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/notify"
)

const alertTimeout = 10 * time.Second

// alertObserver bridges trader lifecycle events to operator notifications.
// Delivery runs on its own goroutine; observer callbacks must not block the
// trading loop on an HTTP round trip.
type alertObserver struct {
	notifier *notify.Notifier
}

func (a *alertObserver) OnSnapshot(context.Context, domain.MarketSnapshot) {}
func (a *alertObserver) OnDelta(context.Context, domain.PriceDeltaEvent, domain.MarketSnapshot) {
}
func (a *alertObserver) OnFill(context.Context, domain.FillEvent, domain.Order) {
}
func (a *alertObserver) OnSignal(context.Context, domain.TradeSignal) {}

func (a *alertObserver) OnHalt(ctx context.Context, reason string) {
	a.send(ctx, "halt", "Trading halted", fmt.Sprintf("Reason: %s", reason))
}

func (a *alertObserver) OnRollover(ctx context.Context, round domain.Round) {
	a.send(ctx, "rollover", "Window closed",
		fmt.Sprintf("%s realized $%.2f (yes %.1f / no %.1f)", round.Slug, round.RealizedUSD, round.Qy, round.Qn))
}

func (a *alertObserver) send(ctx context.Context, event, title, message string) {
	sendCtx := context.WithoutCancel(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(sendCtx, alertTimeout)
		defer cancel()
		_ = a.notifier.Notify(sendCtx, event, title, message)
	}()
}
