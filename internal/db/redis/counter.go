package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/lawrag/internal/db"
)

// KEYS[1] counter, ARGV[1] amount, ARGV[2] initial. Returns {taken, value}.
var takeScript = rueidis.NewLuaScript(`
local v = redis.call('GET', KEYS[1])
if not v then v = ARGV[2] end
v = tonumber(v)
local n = tonumber(ARGV[1])
if v < n then return {0, v} end
redis.call('SET', KEYS[1], v - n)
return {1, v - n}
`)

// KEYS[1] counter, ARGV[1] amount, ARGV[2] initial. Returns the new value.
var addScript = rueidis.NewLuaScript(`
local v = redis.call('GET', KEYS[1])
if not v then v = ARGV[2] end
v = tonumber(v) + tonumber(ARGV[1])
redis.call('SET', KEYS[1], v)
return v
`)

// CounterGet returns the counter value, or initial when the key is absent.
func (s *Store) CounterGet(ctx context.Context, key string, initial int64) (int64, error) {
	cmd := s.b().Get().Key(key).Build()
	raw, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return initial, nil
		}
		return 0, &db.Error{Op: db.OpGet, Key: key, Err: err}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &db.Error{Op: db.OpGet, Key: key, Err: fmt.Errorf("not a counter: %w", err)}
	}
	return v, nil
}

// CounterTake atomically subtracts amount when the counter holds at least amount.
func (s *Store) CounterTake(ctx context.Context, key string, amount, initial int64) (int64, bool, error) {
	res, err := takeScript.Exec(ctx, s.client, []string{key}, []string{
		strconv.FormatInt(amount, 10), strconv.FormatInt(initial, 10),
	}).AsIntSlice()
	if err != nil {
		return 0, false, &db.Error{Op: db.OpEval, Key: key, Err: err}
	}
	if len(res) != 2 {
		return 0, false, &db.Error{Op: db.OpEval, Err: fmt.Errorf("unexpected reply length %d", len(res))}
	}
	return res[1], res[0] == 1, nil
}

// CounterAdd atomically adds amount and returns the new value.
func (s *Store) CounterAdd(ctx context.Context, key string, amount, initial int64) (int64, error) {
	v, err := addScript.Exec(ctx, s.client, []string{key}, []string{
		strconv.FormatInt(amount, 10), strconv.FormatInt(initial, 10),
	}).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpEval, Key: key, Err: err}
	}
	return v, nil
}
