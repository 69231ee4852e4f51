package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another process already trades the series.
var ErrLockHeld = errors.New("redis: lock held")

// unlockLua deletes a lock key only if its value matches the caller's token,
// so one holder cannot release another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// TradingLock guards a market series against concurrent engine instances.
// Two engines quoting the same series would fight each other's ladders, so
// live mode takes the lock at startup and refreshes it while running.
type TradingLock struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

// NewTradingLock creates a TradingLock backed by the given Client.
func NewTradingLock(c *Client) *TradingLock {
	return &TradingLock{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(series string) string {
	return "trading_lock:" + series
}

// Acquire takes the series lock with the given TTL. On success it returns a
// release function, safe to call more than once. Returns ErrLockHeld when
// another instance holds the series.
func (tl *TradingLock) Acquire(ctx context.Context, series string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	key := lockKey(series)

	ok, err := tl.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", series, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		// Background context so release succeeds after the run context is
		// cancelled on shutdown.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tl.unlockSc.Run(unlockCtx, tl.rdb, []string{key}, token).Err()
	}
	return release, nil
}

// Refresh extends the TTL while the engine keeps running.
func (tl *TradingLock) Refresh(ctx context.Context, series string, ttl time.Duration) error {
	if err := tl.rdb.Expire(ctx, lockKey(series), ttl).Err(); err != nil {
		return fmt.Errorf("redis: refresh lock %s: %w", series, err)
	}
	return nil
}
