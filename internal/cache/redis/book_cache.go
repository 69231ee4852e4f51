package redis

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/arbalest-labs/ticktrader/internal/domain"
)

//go:embed scripts/book_update.lua
var bookUpdateLua string

// BookCache mirrors the live orderbook into Redis so external monitors can
// read quotes without touching the trading process.
//
// Key schema, per market and outcome:
//
//	book:{marketID}:{outcome}:bids     - zset of bid prices (score = ticks)
//	book:{marketID}:{outcome}:asks     - zset of ask prices (score = ticks)
//	book:{marketID}:{outcome}:bid:size - hash price -> size
//	book:{marketID}:{outcome}:ask:size - hash price -> size
//	book:{marketID}:{outcome}:bbo      - hash with "bid" and "ask" fields
//	book:{marketID}:{outcome}:meta     - hash with "ts" field (venue ms)
type BookCache struct {
	rdb        *redis.Client
	bookUpdate *redis.Script
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{
		rdb:        c.Underlying(),
		bookUpdate: redis.NewScript(bookUpdateLua),
	}
}

func bookKey(marketID string, o domain.Outcome, suffix string) string {
	return "book:" + marketID + ":" + string(o) + ":" + suffix
}

// SetSnapshot atomically replaces one outcome's mirrored book.
func (bc *BookCache) SetSnapshot(ctx context.Context, marketID string, o domain.Outcome, bids, asks []domain.Level, ts int64) error {
	bidsKey := bookKey(marketID, o, "bids")
	asksKey := bookKey(marketID, o, "asks")
	bidSizeKey := bookKey(marketID, o, "bid:size")
	askSizeKey := bookKey(marketID, o, "ask:size")
	bboKey := bookKey(marketID, o, "bbo")
	metaKey := bookKey(marketID, o, "meta")

	pipe := bc.rdb.TxPipeline()
	pipe.Del(ctx, bidsKey, asksKey, bidSizeKey, askSizeKey, bboKey, metaKey)

	for _, lvl := range bids {
		priceStr := strconv.Itoa(int(lvl.Price))
		pipe.ZAdd(ctx, bidsKey, redis.Z{Score: float64(lvl.Price), Member: priceStr})
		pipe.HSet(ctx, bidSizeKey, priceStr, strconv.FormatFloat(lvl.Size, 'f', -1, 64))
	}
	for _, lvl := range asks {
		priceStr := strconv.Itoa(int(lvl.Price))
		pipe.ZAdd(ctx, asksKey, redis.Z{Score: float64(lvl.Price), Member: priceStr})
		pipe.HSet(ctx, askSizeKey, priceStr, strconv.FormatFloat(lvl.Size, 'f', -1, 64))
	}

	if len(bids) > 0 {
		pipe.HSet(ctx, bboKey, "bid", strconv.Itoa(int(bids[0].Price)))
	}
	if len(asks) > 0 {
		pipe.HSet(ctx, bboKey, "ask", strconv.Itoa(int(asks[0].Price)))
	}
	pipe.HSet(ctx, metaKey, "ts", strconv.FormatInt(ts, 10))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book snapshot %s/%s: %w", marketID, o, err)
	}
	return nil
}

// UpdateLevel applies one level change atomically and recomputes the cached
// BBO in the same script.
func (bc *BookCache) UpdateLevel(ctx context.Context, marketID string, o domain.Outcome, side domain.BookSide, price domain.Tick, size float64) error {
	sideArg := "bid"
	zKey := bookKey(marketID, o, "bids")
	hKey := bookKey(marketID, o, "bid:size")
	if side == domain.BookSideAsk {
		sideArg = "ask"
		zKey = bookKey(marketID, o, "asks")
		hKey = bookKey(marketID, o, "ask:size")
	}

	keys := []string{zKey, hKey, bookKey(marketID, o, "bbo")}
	args := []any{strconv.Itoa(int(price)), strconv.FormatFloat(size, 'f', -1, 64), sideArg}

	if err := bc.bookUpdate.Run(ctx, bc.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis: update level %s/%s %s@%d: %w", marketID, o, sideArg, price, err)
	}
	return nil
}

var _ domain.BookCache = (*BookCache)(nil)
