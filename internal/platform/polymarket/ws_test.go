package polymarket

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/trader"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMeta() domain.MarketMetadata {
	return domain.MarketMetadata{
		MarketID:   "0xcond",
		Slug:       "btc-updown-15m-1767126600",
		Expiry:     time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC),
		YesAssetID: "tok-yes",
		NoAssetID:  "tok-no",
	}
}

func newTestMarketFeed(t *testing.T) (*MarketFeed, chan trader.Event) {
	t.Helper()
	events := make(chan trader.Event, 16)
	f := NewMarketFeed("wss://example", events, testLogger())
	if err := f.SetMarket(testMeta()); err != nil {
		t.Fatalf("SetMarket: %v", err)
	}
	return f, events
}

func drain(ch chan trader.Event) []trader.Event {
	var out []trader.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBookMessageBecomesSnapshot(t *testing.T) {
	f, events := newTestMarketFeed(t)

	msg := `[{"event_type":"book","asset_id":"tok-yes","market":"0xcond",
		"bids":[{"price":"0.44","size":"50"},{"price":"0.43","size":"20"}],
		"asks":[{"price":"0.47","size":"30"}],
		"timestamp":"1767126605000"}]`
	f.handleMessage(context.Background(), []byte(msg))

	got := drain(events)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	snap, ok := got[0].(domain.BookSnapshotEvent)
	if !ok {
		t.Fatalf("event type = %T, want BookSnapshotEvent", got[0])
	}
	if snap.Outcome != domain.OutcomeYes {
		t.Errorf("outcome = %s, want yes", snap.Outcome)
	}
	if len(snap.Bids) != 2 || snap.Bids[0].Price != 440 || snap.Bids[0].Size != 50 {
		t.Errorf("bids = %+v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 470 {
		t.Errorf("asks = %+v", snap.Asks)
	}
	if snap.Timestamp != 1767126605000 {
		t.Errorf("timestamp = %d", snap.Timestamp)
	}
}

func TestPriceChangeBecomesDeltas(t *testing.T) {
	f, events := newTestMarketFeed(t)

	msg := `{"event_type":"price_change","asset_id":"tok-no","market":"0xcond",
		"changes":[
			{"price":"0.52","side":"BUY","size":"40"},
			{"price":"0.55","side":"SELL","size":"0"}
		],
		"timestamp":"1767126606000"}`
	f.handleMessage(context.Background(), []byte(msg))

	got := drain(events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}

	bid := got[0].(domain.PriceDeltaEvent)
	if bid.Outcome != domain.OutcomeNo || bid.Side != domain.BookSideBid || bid.Price != 520 || bid.NewSize != 40 {
		t.Errorf("bid delta = %+v", bid)
	}
	ask := got[1].(domain.PriceDeltaEvent)
	if ask.Side != domain.BookSideAsk || ask.Price != 550 || ask.NewSize != 0 {
		t.Errorf("ask delta = %+v", ask)
	}
}

func TestUnknownAssetIsDiscarded(t *testing.T) {
	f, events := newTestMarketFeed(t)

	msg := `{"event_type":"book","asset_id":"tok-stale","market":"0xold",
		"bids":[{"price":"0.44","size":"50"}],"asks":[],"timestamp":"1"}`
	f.handleMessage(context.Background(), []byte(msg))

	if got := drain(events); len(got) != 0 {
		t.Errorf("stale-asset message produced %d events", len(got))
	}
}

func TestNonBookEventsAreIgnored(t *testing.T) {
	f, events := newTestMarketFeed(t)

	f.handleMessage(context.Background(), []byte(`{"event_type":"last_trade_price","asset_id":"tok-yes","price":"0.47"}`))
	f.handleMessage(context.Background(), []byte(`not json`))
	f.handleMessage(context.Background(), []byte(``))

	if got := drain(events); len(got) != 0 {
		t.Errorf("noise produced %d events", len(got))
	}
}

func TestTickConversionRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want domain.Tick
	}{
		{"0.485", 485},
		{"0.01", 10},
		{"0.999", 999},
		{"1", 1000},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := parseTick(tc.in)
		if err != nil {
			t.Fatalf("parseTick(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("parseTick(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}

	if s := tickToPrice(485); s != "0.485" {
		t.Errorf("tickToPrice(485) = %q", s)
	}
	if _, err := parseTick("abc"); err == nil {
		t.Error("parseTick accepted garbage")
	}
}
