package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/poscart/fulfillment/internal/redisx"
)

// Line is one cart entry. Name and price are snapshotted from the catalog at
// add time. Quantity is always > 0; a line that would reach zero is deleted.
type Line struct {
	Barcode  string  `json:"barcode"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Repository is the per-user cart document store. Each mutation is a single
// atomic operation against the user's document; concurrent operations on the
// same user/barcode serialize inside the store, never in application code.
type Repository interface {
	// AddLine increments the matching line or inserts a new one.
	// Returns the recomputed total item count across the cart.
	AddLine(ctx context.Context, identity string, line Line) (int, error)
	// RemoveLine decrements the matching line, deleting it at zero.
	// When the line holds fewer than qty items it reports ok=false and the
	// available count, with no mutation.
	RemoveLine(ctx context.Context, identity, barcode string, qty int) (ok bool, available, total int, err error)
	Lines(ctx context.Context, identity string) ([]Line, error)
	TotalItems(ctx context.Context, identity string) (int, error)
}

// Store keeps one redis hash per user: field = barcode, value = line JSON.
// Lua scripts make each mutation one server-side atomic step, the moral
// equivalent of a document store's conditional update.
type Store struct {
	RDB *redis.Client
}

var addScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
local qty = tonumber(ARGV[2])
local line
if cur then
  line = cjson.decode(cur)
  line.quantity = line.quantity + qty
else
  line = {barcode=ARGV[1], name=ARGV[3], price=tonumber(ARGV[4]), quantity=qty}
end
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(line))
local total = 0
for _, v in ipairs(redis.call('HVALS', KEYS[1])) do
  total = total + cjson.decode(v).quantity
end
return total
`)

var removeScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
local want = tonumber(ARGV[2])
local have = 0
local line
if cur then
  line = cjson.decode(cur)
  have = line.quantity
end
if have < want then
  return {0, have, 0}
end
if have == want then
  redis.call('HDEL', KEYS[1], ARGV[1])
else
  line.quantity = have - want
  redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(line))
end
local total = 0
for _, v in ipairs(redis.call('HVALS', KEYS[1])) do
  total = total + cjson.decode(v).quantity
end
return {1, have, total}
`)

func cartKey(identity string) string { return fmt.Sprintf(redisx.KeyCart, identity) }

func (s *Store) AddLine(ctx context.Context, identity string, line Line) (int, error) {
	res, err := addScript.Run(ctx, s.RDB, []string{cartKey(identity)},
		line.Barcode, line.Quantity, line.Name, line.Price).Int()
	if err != nil {
		return 0, err
	}
	return res, nil
}

func (s *Store) RemoveLine(ctx context.Context, identity, barcode string, qty int) (bool, int, int, error) {
	res, err := removeScript.Run(ctx, s.RDB, []string{cartKey(identity)}, barcode, qty).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(res) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected script reply: %v", res)
	}
	return res[0] == 1, int(res[1]), int(res[2]), nil
}

func (s *Store) Lines(ctx context.Context, identity string) ([]Line, error) {
	vals, err := s.RDB.HVals(ctx, cartKey(identity)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(vals))
	for _, v := range vals {
		var l Line
		if err := json.Unmarshal([]byte(v), &l); err != nil {
			return nil, fmt.Errorf("decode cart line: %w", err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) TotalItems(ctx context.Context, identity string) (int, error) {
	lines, err := s.Lines(ctx, identity)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total, nil
}
