package book

import (
	"testing"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

func testMeta() domain.MarketMetadata {
	return domain.MarketMetadata{
		MarketID:   "cond-1",
		Slug:       "btc-updown-1200",
		Expiry:     time.UnixMilli(1_700_000_900_000),
		YesAssetID: "asset-yes",
		NoAssetID:  "asset-no",
	}
}

func TestApplySnapshotSetsSyncAndLadders(t *testing.T) {
	st := New(testMeta())

	snap := st.ApplySnapshot(domain.BookSnapshotEvent{
		Outcome: domain.OutcomeYes,
		Bids: []domain.Level{
			{Price: 450, Size: 10},
			{Price: 470, Size: 5},
		},
		Asks: []domain.Level{
			{Price: 510, Size: 3},
			{Price: 490, Size: 8},
		},
		Timestamp: 1_700_000_000_000,
	})

	if !snap.SyncYes || snap.SyncNo {
		t.Fatalf("sync flags = (%v,%v), want (true,false)", snap.SyncYes, snap.SyncNo)
	}
	if got, _ := snap.BestBid(domain.OutcomeYes); got.Price != 470 {
		t.Errorf("best bid = %d, want 470", got.Price)
	}
	if got, _ := snap.BestAsk(domain.OutcomeYes); got.Price != 490 {
		t.Errorf("best ask = %d, want 490", got.Price)
	}
	if snap.MarketID != "cond-1" || snap.Slug != "btc-updown-1200" {
		t.Errorf("identifiers missing from snapshot: %q %q", snap.MarketID, snap.Slug)
	}
}

func TestBestBidBelowBestAsk(t *testing.T) {
	st := New(testMeta())
	st.ApplySnapshot(domain.BookSnapshotEvent{
		Outcome: domain.OutcomeNo,
		Bids:    []domain.Level{{Price: 480, Size: 1}, {Price: 400, Size: 2}},
		Asks:    []domain.Level{{Price: 495, Size: 1}, {Price: 520, Size: 2}},
	})
	snap := st.Snapshot()
	bid, okB := snap.BestBid(domain.OutcomeNo)
	ask, okA := snap.BestAsk(domain.OutcomeNo)
	if !okB || !okA {
		t.Fatal("expected both sides populated")
	}
	if bid.Price >= ask.Price {
		t.Errorf("best bid %d >= best ask %d", bid.Price, ask.Price)
	}
}

func TestDeltaIgnoredBeforeSnapshot(t *testing.T) {
	st := New(testMeta())

	snap, applied := st.ApplyDelta(domain.PriceDeltaEvent{
		Outcome: domain.OutcomeYes,
		Side:    domain.BookSideBid,
		Price:   450,
		NewSize: 12,
	})
	if applied {
		t.Fatal("delta applied before any snapshot for the outcome")
	}
	if len(snap.YesBids) != 0 {
		t.Fatalf("unsynced ladder mutated: %v", snap.YesBids)
	}
}

func TestDeltaSetAndRemoveLevels(t *testing.T) {
	st := New(testMeta())
	st.ApplySnapshot(domain.BookSnapshotEvent{
		Outcome: domain.OutcomeYes,
		Bids:    []domain.Level{{Price: 450, Size: 10}},
		Asks:    []domain.Level{{Price: 500, Size: 4}},
	})

	snap, applied := st.ApplyDelta(domain.PriceDeltaEvent{
		Outcome: domain.OutcomeYes,
		Side:    domain.BookSideBid,
		Price:   460,
		NewSize: 7,
	})
	if !applied {
		t.Fatal("delta not applied after snapshot")
	}
	if got, _ := snap.BestBid(domain.OutcomeYes); got.Price != 460 || got.Size != 7 {
		t.Errorf("best bid = %+v, want 460@7", got)
	}

	snap, _ = st.ApplyDelta(domain.PriceDeltaEvent{
		Outcome: domain.OutcomeYes,
		Side:    domain.BookSideBid,
		Price:   460,
		NewSize: 0,
	})
	if got, _ := snap.BestBid(domain.OutcomeYes); got.Price != 450 {
		t.Errorf("level not removed, best bid = %+v", got)
	}
	// Sync flags are untouched by deltas.
	if !snap.SyncYes {
		t.Error("delta cleared sync flag")
	}
}

func TestSnapshotIsValueCopy(t *testing.T) {
	st := New(testMeta())
	st.ApplySnapshot(domain.BookSnapshotEvent{
		Outcome: domain.OutcomeYes,
		Bids:    []domain.Level{{Price: 450, Size: 10}},
		Asks:    []domain.Level{{Price: 500, Size: 4}},
	})
	before := st.Snapshot()

	st.ApplyDelta(domain.PriceDeltaEvent{
		Outcome: domain.OutcomeYes,
		Side:    domain.BookSideBid,
		Price:   450,
		NewSize: 0,
	})

	if got, ok := before.BestBid(domain.OutcomeYes); !ok || got.Price != 450 || got.Size != 10 {
		t.Errorf("earlier snapshot mutated by later delta: %+v", got)
	}
}

func TestResetClearsLaddersAndFlagsTogether(t *testing.T) {
	st := New(testMeta())
	st.ApplySnapshot(domain.BookSnapshotEvent{
		Outcome: domain.OutcomeYes,
		Bids:    []domain.Level{{Price: 450, Size: 10}},
	})
	st.ApplySnapshot(domain.BookSnapshotEvent{
		Outcome: domain.OutcomeNo,
		Asks:    []domain.Level{{Price: 510, Size: 2}},
	})

	next := testMeta()
	next.MarketID = "cond-2"
	st.Reset(next)

	snap := st.Snapshot()
	if snap.SyncYes || snap.SyncNo {
		t.Error("sync flags survived reset")
	}
	if len(snap.YesBids)+len(snap.YesAsks)+len(snap.NoBids)+len(snap.NoAsks) != 0 {
		t.Error("ladders survived reset")
	}
	if snap.MarketID != "cond-2" {
		t.Errorf("market id = %q, want cond-2", snap.MarketID)
	}

	// Deltas are no-ops again until a fresh baseline arrives.
	if _, applied := st.ApplyDelta(domain.PriceDeltaEvent{
		Outcome: domain.OutcomeYes,
		Side:    domain.BookSideAsk,
		Price:   500,
		NewSize: 1,
	}); applied {
		t.Error("delta applied after reset without baseline")
	}
}

func TestAskDepthAt(t *testing.T) {
	st := New(testMeta())
	snap := st.ApplySnapshot(domain.BookSnapshotEvent{
		Outcome: domain.OutcomeYes,
		Asks: []domain.Level{
			{Price: 490, Size: 5},
			{Price: 500, Size: 10},
			{Price: 520, Size: 100},
		},
	})
	if got := snap.AskDepthAt(domain.OutcomeYes, 500); got != 15 {
		t.Errorf("depth at 500 = %v, want 15", got)
	}
	if got := snap.AskDepthAt(domain.OutcomeYes, 489); got != 0 {
		t.Errorf("depth at 489 = %v, want 0", got)
	}
}
