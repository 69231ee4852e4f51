package polymarket

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// Wire DTOs for the CLOB websocket and the Gamma REST API. Prices and sizes
// travel as decimal strings; prices are dollars in [0, 1].

type wsCommand struct {
	Type      string   `json:"type,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	AssetsIDs []string `json:"assets_ids,omitempty"`
	Auth      *wsAuth  `json:"auth,omitempty"`
	Markets   []string `json:"markets,omitempty"`
}

type wsAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type wsEnvelope struct {
	EventType string `json:"event_type"`
}

type wsLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookMessage struct {
	EventType string    `json:"event_type"`
	AssetID   string    `json:"asset_id"`
	Market    string    `json:"market"`
	Bids      []wsLevel `json:"bids"`
	Asks      []wsLevel `json:"asks"`
	Timestamp string    `json:"timestamp"`
}

type priceChange struct {
	Price string `json:"price"`
	Side  string `json:"side"` // BUY or SELL
	Size  string `json:"size"`
}

type priceChangeMessage struct {
	EventType string        `json:"event_type"`
	AssetID   string        `json:"asset_id"`
	Market    string        `json:"market"`
	Changes   []priceChange `json:"changes"`
	Timestamp string        `json:"timestamp"`
}

type userTradeMaker struct {
	OrderID       string `json:"order_id"`
	MatchedAmount string `json:"matched_amount"`
	Price         string `json:"price"`
	AssetID       string `json:"asset_id"`
}

type userTradeMessage struct {
	EventType    string           `json:"event_type"`
	ID           string           `json:"id"`
	AssetID      string           `json:"asset_id"`
	Side         string           `json:"side"`
	Size         string           `json:"size"`
	Price        string           `json:"price"`
	Status       string           `json:"status"`
	TakerOrderID string           `json:"taker_order_id"`
	MakerOrders  []userTradeMaker `json:"maker_orders"`
	MatchTime    string           `json:"match_time"`
	Timestamp    string           `json:"timestamp"`
}

// apiMarket is the Gamma market document. clobTokenIds and outcomes arrive as
// JSON-encoded strings inside the JSON document.
type apiMarket struct {
	ID           string `json:"id"`
	Question     string `json:"question"`
	Slug         string `json:"slug"`
	ConditionID  string `json:"conditionId"`
	EndDate      string `json:"endDate"`
	ClobTokenIDs string `json:"clobTokenIds"`
	Outcomes     string `json:"outcomes"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
}

// metadata converts a Gamma market document into window metadata. The venue
// lists the YES (Up) token first.
func (m apiMarket) metadata() (domain.MarketMetadata, error) {
	var tokens []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokens); err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("polymarket: market %s: decode clobTokenIds: %w", m.Slug, err)
	}
	if len(tokens) != 2 {
		return domain.MarketMetadata{}, fmt.Errorf("polymarket: market %s: expected 2 tokens, got %d", m.Slug, len(tokens))
	}

	expiry, err := time.Parse(time.RFC3339, m.EndDate)
	if err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("polymarket: market %s: parse endDate %q: %w", m.Slug, m.EndDate, err)
	}

	return domain.MarketMetadata{
		MarketID:   m.ConditionID,
		Slug:       m.Slug,
		Expiry:     expiry.UTC(),
		YesAssetID: tokens[0],
		NoAssetID:  tokens[1],
	}, nil
}

type apiOrderRequest struct {
	TokenID string `json:"tokenID"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
}

type apiOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

// parseTick converts a dollar price string to ticks.
func parseTick(s string) (domain.Tick, error) {
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket: parse price %q: %w", s, err)
	}
	return domain.Tick(math.Round(p * 1000)), nil
}

func parseSize(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket: parse size %q: %w", s, err)
	}
	return v, nil
}

// parseTimestampMS parses the venue's millisecond timestamp string. Returns 0
// when the field is missing or malformed; consumers treat 0 as "no venue
// time".
func parseTimestampMS(s string) int64 {
	if s == "" {
		return 0
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// tickToPrice renders a tick price as the dollar string the CLOB expects.
func tickToPrice(t domain.Tick) string {
	return strconv.FormatFloat(float64(t)/1000, 'f', 3, 64)
}

func formatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
