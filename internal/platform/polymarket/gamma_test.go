package polymarket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

const marketJSON = `{
	"id": "516712",
	"question": "Bitcoin Up or Down?",
	"slug": "btc-updown-15m-1767126600",
	"conditionId": "0xcond",
	"endDate": "2026-01-01T00:15:00Z",
	"clobTokenIds": "[\"tok-yes\",\"tok-no\"]",
	"outcomes": "[\"Up\",\"Down\"]",
	"active": true,
	"closed": false
}`

func TestMarketBySlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/slug/btc-updown-15m-1767126600" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(marketJSON))
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL, testLogger())
	meta, err := c.MarketBySlug(context.Background(), "btc-updown-15m-1767126600")
	if err != nil {
		t.Fatalf("MarketBySlug: %v", err)
	}

	if meta.MarketID != "0xcond" {
		t.Errorf("market id = %q", meta.MarketID)
	}
	if meta.YesAssetID != "tok-yes" || meta.NoAssetID != "tok-no" {
		t.Errorf("tokens = %q / %q", meta.YesAssetID, meta.NoAssetID)
	}
	want := time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC)
	if !meta.Expiry.Equal(want) {
		t.Errorf("expiry = %v, want %v", meta.Expiry, want)
	}
}

func TestMarketBySlugNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewGammaClient(srv.URL, testLogger())
	_, err := c.MarketBySlug(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestWindowSlugs(t *testing.T) {
	// 1767126600 is already on a 15-minute boundary.
	now := time.Unix(1767126600+427, 0)

	if got := windowSlug("btc-updown-15m", floorToWindow(now.Unix())); got != "btc-updown-15m-1767126600" {
		t.Errorf("current slug = %q", got)
	}
	if got := windowSlug("btc-updown-15m", floorToWindow(now.Unix())+windowSeconds); got != "btc-updown-15m-1767127500" {
		t.Errorf("next slug = %q", got)
	}
}

func TestMetadataRejectsMalformedTokenList(t *testing.T) {
	m := apiMarket{Slug: "s", ClobTokenIDs: `["only-one"]`, EndDate: "2026-01-01T00:15:00Z"}
	if _, err := m.metadata(); err == nil {
		t.Error("single-token market accepted")
	}

	m = apiMarket{Slug: "s", ClobTokenIDs: `not json`, EndDate: "2026-01-01T00:15:00Z"}
	if _, err := m.metadata(); err == nil {
		t.Error("malformed token list accepted")
	}
}
