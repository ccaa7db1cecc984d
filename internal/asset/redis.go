package asset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "custody:asset:"

// moveScript credits before it debits: a failing HINCRBY aborts the script
// before anything is written, and the debit cannot fail once the balance
// check passed. Balances are compared as decimal strings because Lua
// numbers lose precision above 2^53.
var moveScript = redis.NewScript(`
local function less(a, b)
  if #a ~= #b then return #a < #b end
  return a < b
end
local from = redis.call('HGET', KEYS[1], ARGV[1]) or '0'
if less(from, ARGV[3]) then
  return 0
end
if ARGV[1] == ARGV[2] then
  return 1
end
redis.call('HINCRBY', KEYS[1], ARGV[2], ARGV[3])
redis.call('HINCRBY', KEYS[1], ARGV[1], '-' .. ARGV[3])
return 1
`)

// RedisBook keeps balances in a Redis hash, one field per holder. Redis
// integers are signed, so balances, moves and credits are capped at
// MaxInt64 smallest units (about 9.22e12 whole units at 6 decimals, 9.22 at
// 18). Larger moves report false and larger credits fail.
type RedisBook struct {
	client *redis.Client
	key    string
}

// NewRedisBook returns a book for the asset id backed by client.
func NewRedisBook(client *redis.Client, assetID string) *RedisBook {
	return &RedisBook{client: client, key: redisKeyPrefix + assetID + ":balances"}
}

// BalanceOf reads the holder's balance; absent holders hold zero.
func (b *RedisBook) BalanceOf(ctx context.Context, holder common.Address) (uint64, error) {
	v, err := b.client.HGet(ctx, b.key, holder.Hex()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return v, nil
}

// Move runs the transfer atomically inside Redis.
func (b *RedisBook) Move(ctx context.Context, from, to common.Address, amount uint64) (bool, error) {
	if amount == 0 {
		return false, ErrInvalidAmount
	}
	if amount > math.MaxInt64 {
		return false, nil
	}
	moved, err := moveScript.Run(ctx, b.client, []string{b.key}, from.Hex(), to.Hex(), strconv.FormatUint(amount, 10)).Int()
	if err != nil {
		return false, fmt.Errorf("move balance: %w", err)
	}
	return moved == 1, nil
}

// Credit increases the holder's balance.
func (b *RedisBook) Credit(ctx context.Context, holder common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > math.MaxInt64 {
		return ErrRejected
	}
	if err := b.client.HIncrBy(ctx, b.key, holder.Hex(), int64(amount)).Err(); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}
