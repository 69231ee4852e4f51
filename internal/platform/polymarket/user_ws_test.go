package polymarket

import (
	"context"
	"testing"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/trader"
)

type fakeIndex struct {
	known map[string]bool
}

func (f *fakeIndex) GetByAPIOrderID(apiID string) (domain.Order, bool) {
	if f.known[apiID] {
		return domain.Order{APIOrderID: apiID}, true
	}
	return domain.Order{}, false
}

func newTestUserFeed(known ...string) (*UserFeed, chan trader.Event) {
	idx := &fakeIndex{known: make(map[string]bool)}
	for _, id := range known {
		idx.known[id] = true
	}
	events := make(chan trader.Event, 16)
	cfg := config.PolymarketConfig{UserWsHost: "wss://example", APIKey: "k"}
	f := NewUserFeed(cfg, idx, events, testLogger())
	_ = f.SetMarket(testMeta())
	return f, events
}

const tradeJSON = `{"event_type":"trade","id":"t1","asset_id":"tok-yes",
	"side":"BUY","size":"10","price":"0.47","status":"MATCHED",
	"taker_order_id":"api-taker",
	"maker_orders":[
		{"order_id":"api-ours","matched_amount":"4","price":"0.46","asset_id":"tok-yes"},
		{"order_id":"api-theirs","matched_amount":"6","price":"0.47","asset_id":"tok-yes"}
	],
	"timestamp":"1767126607000"}`

func TestUserFeedEmitsOnlyOurFills(t *testing.T) {
	f, events := newTestUserFeed("api-ours")

	f.handleMessage(context.Background(), []byte(tradeJSON))

	got := drain(events)
	if len(got) != 1 {
		t.Fatalf("got %d fills, want 1", len(got))
	}
	fill := got[0].(domain.FillEvent)
	if fill.OrderID != "api-ours" || fill.Size != 4 || fill.Price != 460 {
		t.Errorf("fill = %+v", fill)
	}
}

func TestUserFeedEmitsTakerAndMakerFills(t *testing.T) {
	f, events := newTestUserFeed("api-taker", "api-ours")

	f.handleMessage(context.Background(), []byte(tradeJSON))

	got := drain(events)
	if len(got) != 2 {
		t.Fatalf("got %d fills, want 2", len(got))
	}
	taker := got[0].(domain.FillEvent)
	if taker.OrderID != "api-taker" || taker.Size != 10 || taker.Price != 470 {
		t.Errorf("taker fill = %+v", taker)
	}
}

func TestUserFeedDedupesSettlementResends(t *testing.T) {
	f, events := newTestUserFeed("api-taker")

	f.handleMessage(context.Background(), []byte(tradeJSON))
	f.handleMessage(context.Background(), []byte(tradeJSON))

	if got := drain(events); len(got) != 1 {
		t.Errorf("resend produced %d fills, want 1", len(got))
	}
}

func TestUserFeedIgnoresNonMatchedStatuses(t *testing.T) {
	f, events := newTestUserFeed("api-taker")

	mined := `{"event_type":"trade","id":"t2","status":"MINED","size":"10","price":"0.47","taker_order_id":"api-taker","timestamp":"1"}`
	f.handleMessage(context.Background(), []byte(mined))

	if got := drain(events); len(got) != 0 {
		t.Errorf("MINED status produced %d fills", len(got))
	}
}

func TestUserFeedIgnoresOrderAcks(t *testing.T) {
	f, events := newTestUserFeed("api-taker")

	ack := `{"event_type":"order","id":"api-taker","type":"PLACEMENT","status":"LIVE"}`
	f.handleMessage(context.Background(), []byte(ack))

	if got := drain(events); len(got) != 0 {
		t.Errorf("order ack produced %d events", len(got))
	}
}
